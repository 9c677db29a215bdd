package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"

	"github.com/coder/websocket"

	"github.com/johndosdos/synapse/internal/chat"
	"github.com/johndosdos/synapse/internal/model"
)

// ReadMessage reads the incoming data from the websocket stream until the
// connection ends. Accepted messages reach this client again through the
// hub like everyone else's.
func (c *Client) ReadMessage(ctx context.Context, send SendFunc) {
	defer func() {
		c.Hub.unregister(c)
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				log.Printf("%v", err)
			}
			return
		}

		// The app only supports text format for now...
		if msgType != websocket.MessageText {
			continue
		}

		var req model.SendRequest
		if err := json.Unmarshal(p, &req); err != nil {
			slog.DebugContext(ctx, "failed to process payload from client", "error", err)
			c.reply(model.CodeEmptyContent, "Malformed message")
			continue
		}

		_, err = send(ctx, c.RoomID, req.Content)

		var rl *chat.RateLimitError
		switch {
		case err == nil:
		case errors.As(err, &rl):
			c.reply(model.CodeRateLimited, rl.Error())
		case errors.Is(err, chat.ErrEmptyContent):
			c.reply(model.CodeEmptyContent, "Message cannot be empty")
		case errors.Is(err, chat.ErrAccessDenied):
			c.conn.Close(websocket.StatusPolicyViolation, "Access Denied")
			return
		default:
			slog.ErrorContext(ctx, "failed to send message",
				"error", err,
				"room_id", c.RoomID,
				"user_id", c.UserID.String())
			c.reply(model.CodeInternal, "Failed to send message")
		}
	}
}

// SendFunc submits content to a room on behalf of the connected user.
type SendFunc func(ctx context.Context, roomID int64, content string) (model.ChatMessage, error)
