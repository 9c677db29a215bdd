package chatview

import (
	"fmt"
	"math"
	"time"
)

const defaultPlaceholder = "Type a message..."

// RateLimitState is the client side send cooldown, counted in whole
// seconds.
type RateLimitState struct {
	remaining int
}

// Start begins a countdown of d rounded up to whole seconds.
func (r *RateLimitState) Start(d time.Duration) {
	r.remaining = int(math.Ceil(d.Seconds()))
}

// Tick counts down one second. It reports whether the countdown just
// reached zero.
func (r *RateLimitState) Tick() bool {
	if r.remaining <= 0 {
		return false
	}
	r.remaining--
	return r.remaining == 0
}

func (r *RateLimitState) Reset() {
	r.remaining = 0
}

func (r *RateLimitState) Remaining() int {
	return r.remaining
}

func (r *RateLimitState) CanSend() bool {
	return r.remaining <= 0
}

func (r *RateLimitState) Placeholder() string {
	if r.remaining > 0 {
		return fmt.Sprintf("Wait %ds...", r.remaining)
	}
	return defaultPlaceholder
}
