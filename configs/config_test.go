package config

import (
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "")
	assert.Equal(t, defaultOrigins, AllowedOrigins())

	t.Setenv("CORS_ORIGINS", "https://draw.example.com, ,https://admin.example.com")
	assert.Equal(t, []string{"https://draw.example.com", "https://admin.example.com"}, AllowedOrigins())
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, log.InfoLevel, logLevel(""))
	assert.Equal(t, log.DebugLevel, logLevel("debug"))
	assert.Equal(t, log.InfoLevel, logLevel("loud"))
}

func TestCustomLoggerMiddlewarePassesThrough(t *testing.T) {
	h := CustomLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/cron/announce?secret=x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
