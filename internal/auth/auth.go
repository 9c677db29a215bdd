// Package auth validates the bearer credentials issued by the identity
// provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type ContextKey string

const UserIDKey ContextKey = "userID"

var ErrNoCredential = errors.New("internal/auth: no credential supplied")

// Identity is the authenticated user as described by the token.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// Claims are the JWT claims issued by the identity provider. The display
// name rides along so messages can snapshot it without a user lookup.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func MakeJWT(id Identity, issuer, tokenSecret string, expiresIn time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	})

	return token.SignedString([]byte(tokenSecret))
}

// ValidateJWT checks the signature and expiry of tokenString. When issuer
// is set the token's iss claim must equal it.
func ValidateJWT(tokenString, tokenSecret, issuer string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(tokenSecret), nil },
		opts...,
	)
	if err != nil {
		return Identity{}, fmt.Errorf("internal/auth: failed to parse token: %w", err)
	}

	if !token.Valid {
		return Identity{}, errors.New("internal/auth: token is invalid")
	}

	if claims.Subject == "" {
		return Identity{}, errors.New("internal/auth: subject claim is missing")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("internal/auth: subject is not a user id: %w", err)
	}

	name := claims.Name
	if name == "" {
		name = userID.String()
	}

	return Identity{UserID: userID, Username: name}, nil
}

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the token query parameter used by websocket handshakes.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			return "", fmt.Errorf("internal/auth: malformed authorization header")
		}
		return strings.TrimSpace(tok), nil
	}

	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}

	return "", ErrNoCredential
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// GetUserFromContext returns the identity stored by the auth middleware.
func GetUserFromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(UserIDKey).(Identity)
	if !ok || id.UserID == uuid.Nil {
		return Identity{}, errors.New("internal/auth: no user in context")
	}

	return id, nil
}
