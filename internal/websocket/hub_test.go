package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/synapse/internal/broker"
	"github.com/johndosdos/synapse/internal/model"
)

func runHub(t *testing.T) (*Hub, *broker.Local) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	b := broker.NewLocal()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx, b)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, b
}

func register(t *testing.T, h *Hub, userID uuid.UUID, roomID int64) *Client {
	t.Helper()
	c := NewClient(nil, userID, "user", roomID)
	reg := Registration{Client: c, Done: make(chan struct{})}
	h.Register <- reg
	<-reg.Done
	return c
}

func receive(t *testing.T, c *Client) (model.ChatMessage, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.MessageCh:
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client channel")
		return model.ChatMessage{}, false
	}
}

func TestHubFanOutIsPerRoomAndOrdered(t *testing.T) {
	h, b := runHub(t)
	ctx := context.Background()

	inRoom := register(t, h, uuid.New(), 1)
	otherRoom := register(t, h, uuid.New(), 2)

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, b.Publish(ctx, model.ChatMessage{ID: id, RoomID: 1}))
	}
	require.NoError(t, b.Publish(ctx, model.ChatMessage{ID: 4, RoomID: 2}))

	for want := int64(1); want <= 3; want++ {
		msg, ok := receive(t, inRoom)
		require.True(t, ok)
		assert.Equal(t, want, msg.ID)
	}

	msg, ok := receive(t, otherRoom)
	require.True(t, ok)
	assert.Equal(t, int64(4), msg.ID)
	assert.Empty(t, inRoom.MessageCh)
}

func TestHubDropsSlowClient(t *testing.T) {
	h, b := runHub(t)
	ctx := context.Background()

	slow := register(t, h, uuid.New(), 1)
	bystander := register(t, h, uuid.New(), 2)
	capacity := cap(slow.MessageCh)

	for id := 1; id <= capacity+1; id++ {
		require.NoError(t, b.Publish(ctx, model.ChatMessage{ID: int64(id), RoomID: 1}))
	}
	// The broker channel is FIFO, so once the bystander sees its message the
	// overflowing one has been handled.
	require.NoError(t, b.Publish(ctx, model.ChatMessage{ID: 1000, RoomID: 2}))
	_, ok := receive(t, bystander)
	require.True(t, ok)

	for range capacity {
		_, ok := receive(t, slow)
		require.True(t, ok)
	}
	_, ok = receive(t, slow)
	assert.False(t, ok, "slow client should have been dropped")
	assert.Equal(t, websocket.StatusTryAgainLater, slow.closeStatus)
}

func TestHubEvict(t *testing.T) {
	h, _ := runHub(t)

	userID := uuid.New()
	evicted := register(t, h, userID, 1)
	sameUserOtherRoom := register(t, h, userID, 2)
	otherUser := register(t, h, uuid.New(), 1)

	h.Evict(1, userID, "membership revoked")

	_, ok := receive(t, evicted)
	assert.False(t, ok)
	assert.Equal(t, websocket.StatusPolicyViolation, evicted.closeStatus)
	assert.Equal(t, "membership revoked", evicted.closeReason)

	// Unregistering an already removed client is a no-op.
	h.Unregister <- evicted

	assert.Empty(t, sameUserOtherRoom.MessageCh)
	assert.Empty(t, otherUser.MessageCh)
	h.Unregister <- otherUser
	_, ok = receive(t, otherUser)
	assert.False(t, ok)
	assert.Equal(t, websocket.StatusNormalClosure, otherUser.closeStatus)
}

func TestHubShutdownClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx, broker.NewLocal())
	}()

	c := register(t, h, uuid.New(), 1)
	cancel()
	<-done

	_, ok := receive(t, c)
	assert.False(t, ok)
	assert.Equal(t, websocket.StatusGoingAway, c.closeStatus)

	// Evict after shutdown must not block.
	h.Evict(1, c.UserID, "late")
}
