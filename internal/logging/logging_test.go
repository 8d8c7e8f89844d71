package logging_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/firetodo/internal/logging"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, logging.ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, logging.ParseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, logging.ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, logging.ParseLevel("loud"))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logging.Setup("info", false, &buf)
	defer logging.Setup("info", false, &bytes.Buffer{})

	e := echo.New()
	e.Use(logging.RequestLogger())
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health?token=eyJhbGciOiJIUzI1NiJ9.session", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/health", entry["path"])
	assert.NotContains(t, buf.String(), "eyJhbGciOiJIUzI1NiJ9")
	assert.EqualValues(t, 200, entry["status"])
}
