package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one token bucket per key and forgets keys that stay idle
// longer than ttl. An idle bucket refills to its burst, so forgetting it
// is invisible to callers as long as ttl covers a full refill.
type buckets[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

func newBuckets[K comparable](limit rate.Limit, burst int, ttl time.Duration) *buckets[K] {
	return &buckets[K]{
		entries: make(map[K]*bucket),
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

// take consumes one token for key. When none is available it consumes
// nothing and returns how long until one is.
func (b *buckets[K]) take(key K) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	e, ok := b.entries[key]
	if !ok {
		e = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay
	}
	return 0
}

func (b *buckets[K]) sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for key, e := range b.entries {
		if now.Sub(e.lastSeen) > b.ttl {
			delete(b.entries, key)
		}
	}
}

func (b *buckets[K]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// startSweeper sweeps every interval until the returned cancel is called.
// A non-positive interval disables sweeping.
func (b *buckets[K]) startSweeper(interval time.Duration) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		return cancel
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.sweep()
			}
		}
	}()
	return cancel
}
