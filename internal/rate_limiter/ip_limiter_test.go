package ratelimiter

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiterMiddleware(t *testing.T) {
	rl := NewIPRateLimiter(2, time.Minute, CleanupOpts{})
	defer rl.Cancel()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := rl.Middleware(next)

	do := func(remote string, htmx bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/rooms/1/messages", nil)
		req.RemoteAddr = remote
		if htmx {
			req.Header.Set("HX-Request", "true")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234", false).Code)
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1235", false).Code)

	rec := do("10.0.0.1:1236", false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"detail"`)

	rec = do("10.0.0.1:1237", true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Too many requests"))

	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234", false).Code, "other addresses are unaffected")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"peer_address", "192.0.2.1:5555", "", "192.0.2.1"},
		{"last_forwarded_hop", "192.0.2.1:5555", "203.0.113.9, 198.51.100.7", "198.51.100.7"},
		{"empty_trailing_hop_falls_back", "192.0.2.1:5555", "203.0.113.9, ", "192.0.2.1"},
		{"remote_without_port", "192.0.2.1", "", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
