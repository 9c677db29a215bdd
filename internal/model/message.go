package model

import (
	"time"

	"github.com/google/uuid"
)

// Owner is the author snapshot embedded in every chat message.
type Owner struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// ChatMessage represents a single room chat message, used for REST
// responses, broker payloads and websocket frames alike.
type ChatMessage struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UserID    uuid.UUID `json:"user_id"`
	Owner     Owner     `json:"owner"`
}

// AuthorName returns the display name captured at send time.
func (m ChatMessage) AuthorName() string {
	return m.Owner.Username
}
