package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/synapse/internal/chat"
	"github.com/johndosdos/synapse/internal/database"
	"github.com/johndosdos/synapse/internal/testutil"
)

func TestPostgresStore(t *testing.T) {
	pool := testutil.DbInit(t)
	queries := database.New(pool)
	store := chat.NewPostgresStore(queries)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	room, err := queries.CreateRoom(ctx, database.CreateRoomParams{Name: "algebra", Description: "study group"})
	require.NoError(t, err)

	userID := uuid.New()

	t.Run("membership", func(t *testing.T) {
		ok, err := store.IsMember(ctx, room.ID, userID)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.AddMember(ctx, room.ID, userID))
		require.NoError(t, store.AddMember(ctx, room.ID, userID), "joining twice is a no-op")

		ok, err = store.IsMember(ctx, room.ID, userID)
		require.NoError(t, err)
		assert.True(t, ok)

		exists, err := store.RoomExists(ctx, room.ID+1000)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("messages_ascending_and_limited", func(t *testing.T) {
		for _, c := range []string{"one", "two", "three"} {
			_, err := store.CreateMessage(ctx, chat.NewMessage{
				RoomID: room.ID, UserID: userID, Username: "ann", Content: c,
			})
			require.NoError(t, err)
		}

		msgs, err := store.ListRoomMessages(ctx, room.ID, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "two", msgs[0].Content)
		assert.Equal(t, "three", msgs[1].Content)
		assert.Less(t, msgs[0].ID, msgs[1].ID)
		assert.Equal(t, "ann", msgs[1].AuthorName())
		assert.Equal(t, userID, msgs[1].UserID)
	})

	t.Run("remove_member", func(t *testing.T) {
		require.NoError(t, store.RemoveMember(ctx, room.ID, userID))
		ok, err := store.IsMember(ctx, room.ID, userID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
