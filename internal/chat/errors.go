package chat

import (
	"errors"
	"time"

	ratelimiter "github.com/johndosdos/synapse/internal/rate_limiter"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrEmptyContent = errors.New("message content is empty")
	ErrRoomNotFound = errors.New("room not found")
)

// RateLimitError reports a send rejected by the sender's cooldown.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return ratelimiter.WaitDescription(e.Wait)
}

func (e *RateLimitError) Unwrap() error {
	return ratelimiter.ErrRateLimited
}
