package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ytakahashi/firetodo/internal/auth"
	"github.com/ytakahashi/firetodo/internal/logging"
	"github.com/ytakahashi/firetodo/internal/services"
)

// NewServer wires the HTTP API onto a new echo instance.
func NewServer(accounts auth.AccountRepo, tokens *auth.TokenIssuer, store services.RemoteStore) *echo.Echo {
	authHandler := NewAuthHandler(accounts, tokens, store)
	todoHandler := NewTodoHandler(store)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(logging.RequestLogger())
	e.Use(middleware.Recover())

	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	g := e.Group("/todos", authHandler.RequireToken)
	g.GET("", todoHandler.List)
	g.POST("", todoHandler.Create)
	g.DELETE("", todoHandler.DeleteAll)
	g.GET("/stream", todoHandler.Stream)
	g.PATCH("/:id", todoHandler.UpdateText)
	g.DELETE("/:id", todoHandler.Delete)
	g.POST("/:id/toggle", todoHandler.Toggle)
	g.POST("/:id/flip", todoHandler.Flip)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}
