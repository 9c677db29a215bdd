package client

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAccessDenied means the caller may not write to, or connect to, the
	// room. It is terminal for the room view.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnauthorized means the credential was missing or rejected.
	ErrUnauthorized = errors.New("could not validate credentials")
	// ErrEmptyContent is returned without a network round trip.
	ErrEmptyContent = errors.New("message content is empty")
)

// RateLimitError is a send rejected by the server cooldown. Detail is the
// server's human readable wait and is informational only.
type RateLimitError struct {
	Detail     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Detail == "" {
		return "too many requests"
	}
	return "too many requests: " + e.Detail
}

// HistoryFetchError wraps a failed history load for a room.
type HistoryFetchError struct {
	RoomID int64
	Err    error
}

func (e *HistoryFetchError) Error() string {
	return fmt.Sprintf("fetch history of room %d: %v", e.RoomID, e.Err)
}

func (e *HistoryFetchError) Unwrap() error {
	return e.Err
}

// StatusError is an unexpected HTTP response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Detail)
}
