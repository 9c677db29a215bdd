package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a write arrives before the sender's
// cooldown for the room has elapsed.
var ErrRateLimited = errors.New("too many requests")

// Key identifies a sender within a room.
type Key struct {
	UserID uuid.UUID
	RoomID int64
}

func (k Key) String() string {
	return strconv.FormatInt(k.RoomID, 10) + ":" + k.UserID.String()
}

// Cooldown enforces a minimum interval between consecutive writes of one
// user in one room. Allow consumes the slot when it returns true; when it
// returns false wait is the time left until the next write is accepted.
type Cooldown interface {
	Allow(ctx context.Context, key Key) (ok bool, wait time.Duration, err error)
}

// WaitDescription renders a remaining wait the way clients display it.
func WaitDescription(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	if secs == 1 {
		return "Please wait 1 second"
	}
	return fmt.Sprintf("Please wait %d seconds", secs)
}

// MemoryCooldown keeps one token bucket per (user, room) with a burst of
// one, so a slot refills exactly one interval after it was used.
type MemoryCooldown struct {
	buckets  *buckets[Key]
	interval time.Duration
	Cancel   context.CancelFunc
}

// NewMemoryCooldown builds an in-process cooldown. Keys idle for
// cleanupOpts.TTL, and never less than one interval, are forgotten.
func NewMemoryCooldown(interval time.Duration, cleanupOpts CleanupOpts) *MemoryCooldown {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	b := newBuckets[Key](limit, 1, max(cleanupOpts.TTL, interval))
	return &MemoryCooldown{
		buckets:  b,
		interval: interval,
		Cancel:   b.startSweeper(cleanupOpts.Interval),
	}
}

func (c *MemoryCooldown) Allow(_ context.Context, key Key) (bool, time.Duration, error) {
	if c.interval <= 0 {
		return true, 0, nil
	}
	if wait := c.buckets.take(key); wait > 0 {
		return false, wait, nil
	}
	return true, 0, nil
}
