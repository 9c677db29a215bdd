package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/johndosdos/synapse/internal/model"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

type Client struct {
	UserID    uuid.UUID
	Username  string
	RoomID    int64
	conn      *websocket.Conn
	Hub       *Hub
	MessageCh chan model.ChatMessage

	// replyCh carries error frames from the reader; unlike MessageCh it is
	// never closed.
	replyCh chan model.FrameError

	// Set by the hub before it closes MessageCh.
	closeStatus websocket.StatusCode
	closeReason string
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, username string, roomID int64) *Client {
	return &Client{
		conn:      conn,
		MessageCh: make(chan model.ChatMessage, 64),
		replyCh:   make(chan model.FrameError, 8),
		UserID:    userID,
		Username:  username,
		RoomID:    roomID,
	}
}

// reply queues an error frame for the writer, dropping it if the client is
// not keeping up.
func (c *Client) reply(code, detail string) {
	select {
	case c.replyCh <- model.FrameError{Code: code, Detail: detail}:
	default:
	}
}

// WriteMessage writes every frame for this client to the socket. It is the
// only goroutine that writes frames.
func (c *Client) WriteMessage(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var frame model.ServerFrame

		select {
		case payload, ok := <-c.MessageCh:
			// We don't want to continue processing when the channel has already been
			// closed.
			if !ok {
				c.conn.Close(c.closeStatus, c.closeReason)
				return
			}
			frame.ChatMessage = payload

		case fe := <-c.replyCh:
			frame.Error = &fe

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.DebugContext(ctx, "ping failed", "error", err, "user_id", c.UserID.String())
				c.conn.CloseNow()
				return
			}
			continue

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "context cancelled")
			return
		}

		writeCtx, cancel := context.WithTimeout(ctx, writeWait)
		err := wsjson.Write(writeCtx, c.conn, frame)
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "failed to write frame",
				"error", err,
				"room_id", c.RoomID,
				"user_id", c.UserID.String())
			c.conn.CloseNow()
			return
		}
	}
}
