package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/johndosdos/synapse/internal"
	"github.com/johndosdos/synapse/internal/chat"
	ratelimiter "github.com/johndosdos/synapse/internal/rate_limiter"
	ws "github.com/johndosdos/synapse/internal/websocket"
)

// Deps are the collaborators the HTTP surface is built from. IPLimiter may
// be nil. An empty JWTIssuer skips the iss check.
type Deps struct {
	Service   *chat.Service
	Hub       *ws.Hub
	JWTSecret string
	JWTIssuer string
	IPLimiter *ratelimiter.IPRateLimiter
	Health    []Pinger
}

// NewRouter mounts every route of the chat API.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", ServeHealth(d.Health...))

	// The socket authenticates itself so a rejected client gets a close
	// frame instead of a failed upgrade.
	r.Get("/rooms/{roomID}/ws", ServeWs(d.Hub, d.Service, d.JWTSecret, d.JWTIssuer))

	r.Group(func(r chi.Router) {
		if d.IPLimiter != nil {
			r.Use(d.IPLimiter.Middleware)
		}
		r.Use(internal.Middleware(d.JWTSecret, d.JWTIssuer))

		r.Get("/rooms/{roomID}/messages", ServeHistory(d.Service))
		r.Post("/rooms/{roomID}/messages", ServeSend(d.Service))
		r.Post("/rooms/{roomID}/join", ServeJoin(d.Service))
		r.Delete("/rooms/{roomID}/join", ServeLeave(d.Service))
	})

	return r
}
