package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/johndosdos/synapse/internal/auth"
	"github.com/johndosdos/synapse/internal/model"
)

// Middleware validates the client's bearer JWT and stores the caller's
// identity on the request context. An empty issuer accepts any iss claim.
func Middleware(jwtSecret, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromRequest(r)
			if err == nil {
				var id auth.Identity
				id, err = auth.ValidateJWT(token, jwtSecret, issuer)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
					return
				}
			}

			slog.DebugContext(r.Context(), "rejected credential",
				"error", err,
				"path", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(model.ErrorResponse{Detail: "Could not validate credentials"})
		})
	}
}
