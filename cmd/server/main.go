package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"
	"github.com/ytakahashi/firetodo/internal/auth"
	"github.com/ytakahashi/firetodo/internal/backend"
	"github.com/ytakahashi/firetodo/internal/config"
	"github.com/ytakahashi/firetodo/internal/handlers"
	"github.com/ytakahashi/firetodo/internal/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
	log.Info().Msg("Server stopped")
}

func run() error {
	c := config.Load()
	logging.Setup(c.GetLogLevel(), false, os.Stdout)
	displayAppname(c.GetAppName())

	ctx := context.Background()

	b, err := backend.Open(ctx, c)
	if err != nil {
		return err
	}
	defer b.Close()
	log.Info().Str("backend", b.Name).Msg("Store backend ready")
	if b.Name == config.BackendMemory {
		log.Warn().Msg("Using in-memory backend, data is lost on exit")
	}

	secret, err := c.GetJWTSecret()
	if err != nil {
		return err
	}
	if string(secret) == config.DevJWTSecret {
		log.Warn().Msg("JWT_SECRET is not set, using the development secret")
	}
	tokens := auth.NewTokenIssuer(secret, c.GetTokenTTL())

	e := handlers.NewServer(b.Accounts, tokens, b.Store)

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.GetPort()).Msg("Server starting")
		if err := e.Start(c.GetPort()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("e.Start: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errs:
		return err
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("e.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
