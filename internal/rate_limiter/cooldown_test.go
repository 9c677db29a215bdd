package ratelimiter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCooldown(interval time.Duration) (*MemoryCooldown, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCooldown(interval, CleanupOpts{})
	c.buckets.now = clock.Now
	return c, clock
}

func TestMemoryCooldown(t *testing.T) {
	ctx := context.Background()
	alice := Key{UserID: uuid.New(), RoomID: 1}

	t.Run("second_write_inside_interval_rejected", func(t *testing.T) {
		c, clock := newTestCooldown(4 * time.Second)

		ok, _, err := c.Allow(ctx, alice)
		require.NoError(t, err)
		assert.True(t, ok)

		clock.Advance(time.Second)
		ok, wait, err := c.Allow(ctx, alice)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.InDelta(t, float64(3*time.Second), float64(wait), float64(time.Millisecond))
	})

	t.Run("rejection_does_not_extend_cooldown", func(t *testing.T) {
		c, clock := newTestCooldown(4 * time.Second)

		ok, _, _ := c.Allow(ctx, alice)
		require.True(t, ok)

		for range 7 {
			clock.Advance(500 * time.Millisecond)
			ok, _, _ = c.Allow(ctx, alice)
			assert.False(t, ok)
		}

		clock.Advance(500 * time.Millisecond)
		ok, _, _ = c.Allow(ctx, alice)
		assert.True(t, ok, "slot should refill exactly one interval after the accepted write")
	})

	t.Run("keyed_by_user_and_room", func(t *testing.T) {
		c, _ := newTestCooldown(time.Minute)

		ok, _, _ := c.Allow(ctx, alice)
		require.True(t, ok)

		otherRoom := Key{UserID: alice.UserID, RoomID: 2}
		ok, _, _ = c.Allow(ctx, otherRoom)
		assert.True(t, ok, "same user in another room is independent")

		otherUser := Key{UserID: uuid.New(), RoomID: 1}
		ok, _, _ = c.Allow(ctx, otherUser)
		assert.True(t, ok, "another user in the same room is independent")
	})

	t.Run("zero_interval_never_limits", func(t *testing.T) {
		c, _ := newTestCooldown(0)
		for range 10 {
			ok, _, _ := c.Allow(ctx, alice)
			assert.True(t, ok)
		}
	})

	t.Run("sweep_drops_idle_keys", func(t *testing.T) {
		c, clock := newTestCooldown(time.Second)
		c.buckets.ttl = time.Minute

		_, _, _ = c.Allow(ctx, alice)
		clock.Advance(2 * time.Minute)
		c.buckets.sweep()

		assert.Zero(t, c.buckets.len())
	})
}

func TestWaitDescription(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want string
	}{
		{0, "Please wait 1 second"},
		{300 * time.Millisecond, "Please wait 1 second"},
		{1500 * time.Millisecond, "Please wait 2 seconds"},
		{30 * time.Second, "Please wait 30 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.wait.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, WaitDescription(tt.wait))
		})
	}
}

func TestRedisCooldownKey(t *testing.T) {
	key := Key{UserID: uuid.MustParse("6f1c2f9e-8a43-4c6b-9d3e-2b7a1f0c5d88"), RoomID: 12}
	want := "synapse:cooldown:12:6f1c2f9e-8a43-4c6b-9d3e-2b7a1f0c5d88"

	for _, prefix := range []string{"synapse:cooldown", "synapse:cooldown:", "synapse:cooldown::"} {
		t.Run(prefix, func(t *testing.T) {
			c := NewRedisCooldown(nil, prefix, time.Second)
			assert.Equal(t, want, c.redisKey(key))
		})
	}

	t.Run("default_prefix", func(t *testing.T) {
		c := NewRedisCooldown(nil, "", time.Second)
		assert.Equal(t, "chat:cooldown:12:6f1c2f9e-8a43-4c6b-9d3e-2b7a1f0c5d88", c.redisKey(key))
	})
}

func TestRedisCooldown(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL environment variable is not set")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)

	ctx := context.Background()
	c := NewRedisCooldown(redis.NewClient(opts), "test:cooldown:"+uuid.NewString(), 2*time.Second)
	defer c.Close()

	key := Key{UserID: uuid.New(), RoomID: 9}

	ok, _, err := c.Allow(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, wait, err := c.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 2*time.Second)
}
