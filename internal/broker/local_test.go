package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/synapse/internal/model"
)

func TestLocalDeliversInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewLocal()
	a, c := make(chan model.ChatMessage, 8), make(chan model.ChatMessage, 8)
	require.NoError(t, b.Subscribe(ctx, a))
	require.NoError(t, b.Subscribe(ctx, c))

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, b.Publish(ctx, model.ChatMessage{ID: id, RoomID: 4}))
	}

	for _, ch := range []chan model.ChatMessage{a, c} {
		for want := int64(1); want <= 3; want++ {
			got := <-ch
			assert.Equal(t, want, got.ID)
		}
	}
}

func TestLocalUnsubscribesOnCancel(t *testing.T) {
	b := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan model.ChatMessage)
	require.NoError(t, b.Subscribe(ctx, ch))
	cancel()

	assert.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return len(b.subs) == 0
	}, time.Second, 10*time.Millisecond)

	// An unbuffered channel nobody reads would block if still subscribed.
	require.NoError(t, b.Publish(context.Background(), model.ChatMessage{ID: 1}))
}

func TestSubjectRoom(t *testing.T) {
	assert.Equal(t, "MESSAGES.room.42", SubjectRoom(42))
}
