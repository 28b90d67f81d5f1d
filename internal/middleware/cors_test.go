package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS_Origins(t *testing.T) {
	cfg := DefaultCORSConfig("production", "biashara.co.ke", []string{"https://console.partner.com"})
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://console.partner.com", true},
		{"https://mamamboga.biashara.co.ke", true},
		{"https://biashara.co.ke", true},
		{"http://mamamboga.biashara.co.ke", false},
		{"https://evilbiashara.co.ke", false},
		{"https://biashara.co.ke.evil.com", false},
		{"null", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ai/chat", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if tt.allowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultCORSConfig("development", "localhost", nil)
	called := false
	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodOptions, "/auth/tenant/login", nil)
	req.Header.Set("Origin", "http://acme.localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://acme.localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)
}
