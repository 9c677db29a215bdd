// Package ratelimiter throttles writers: a per-IP request guard for the REST
// API and the per-user, per-room chat cooldown.
package ratelimiter

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	viewChat "github.com/johndosdos/synapse/components/chat"
	"github.com/johndosdos/synapse/internal/model"
)

const ipLimitDetail = "Too many requests. Try again later."

// IPRateLimiter allows each client address a burst of requests per window,
// refilled evenly across it.
type IPRateLimiter struct {
	buckets *buckets[string]
	Cancel  func()
}

func NewIPRateLimiter(requests int, window time.Duration, cleanupOpts CleanupOpts) *IPRateLimiter {
	b := newBuckets[string](rate.Every(window/time.Duration(requests)), requests, max(cleanupOpts.TTL, window))
	return &IPRateLimiter{
		buckets: b,
		Cancel:  b.startSweeper(cleanupOpts.Interval),
	}
}

// ClientIP is the address a request is attributed to: the last
// X-Forwarded-For hop, appended by our own proxy, or the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		if hop := strings.TrimSpace(hops[len(hops)-1]); hop != "" {
			return hop
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Allow consumes one request for ip. When the bucket is empty it returns
// false and the time until the next request is admitted.
func (rl *IPRateLimiter) Allow(ip string) (bool, time.Duration) {
	wait := rl.buckets.take(ip)
	return wait == 0, wait
}

// Middleware rejects requests over the limit with 429 and Retry-After.
// htmx requests get an HTML notice instead of JSON.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		ok, wait := rl.Allow(ip)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		slog.WarnContext(r.Context(), "ip rate limit exceeded",
			"ip", ip,
			"path", r.URL.Path,
			"retry_after", wait)

		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))

		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusTooManyRequests)
			if err := viewChat.ErrorNotice(ipLimitDetail).Render(r.Context(), w); err != nil {
				slog.ErrorContext(r.Context(), "failed to render error component", "error", err)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(model.ErrorResponse{Detail: ipLimitDetail})
	})
}
