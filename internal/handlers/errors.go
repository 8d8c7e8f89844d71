package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/ytakahashi/firetodo/internal/auth"
	"github.com/ytakahashi/firetodo/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Internal failures are logged and not exposed.
func fail(c echo.Context, err error) error {
	status := errorStatus(err)
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	} else {
		var ae *auth.AuthError
		if errors.As(err, &ae) && status != http.StatusInternalServerError {
			msg = ae.Err.Error()
		}
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		msg = http.StatusText(status)
	}
	return c.JSON(status, errorResponse{Error: msg})
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
