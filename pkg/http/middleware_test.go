package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carverauto/feedsync/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyMiddleware(t *testing.T) {
	log := logger.NewTestLogger()

	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
	}{
		{"valid key", "secret-key", "secret-key", http.StatusOK},
		{"wrong key", "secret-key", "nope", http.StatusUnauthorized},
		{"missing key", "secret-key", "", http.StatusUnauthorized},
		{"no key configured locks surface", "", "anything", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyMiddleware(tt.configured, log)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/admin/devices", nil)
			if tt.sent != "" {
				req.Header.Set("X-API-Key", tt.sent)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequestLoggingPassesThrough(t *testing.T) {
	handler := RequestLogging(logger.NewTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/device/poll", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
