// Package websocket is the server side of the push delivery channel: one
// socket per open room view, fanned out per room by a single hub loop.
package websocket

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/johndosdos/synapse/internal/broker"
	"github.com/johndosdos/synapse/internal/model"
)

type Registration struct {
	Client *Client
	Done   chan struct{}
}

type eviction struct {
	roomID int64
	userID uuid.UUID
	reason string
}

// Hub owns the room -> clients index. Only Run touches it, so fan-out to
// a room happens in the order messages arrive from the broker.
type Hub struct {
	rooms      map[int64]map[*Client]struct{}
	Register   chan Registration
	Unregister chan *Client
	BrokerMsg  chan model.ChatMessage
	evict      chan eviction
	done       chan struct{}
}

// NewHub returns a new instance of Hub.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]struct{}),
		Register:   make(chan Registration),
		Unregister: make(chan *Client),
		BrokerMsg:  make(chan model.ChatMessage, 1024),
		evict:      make(chan eviction, 16),
		done:       make(chan struct{}),
	}
}

// Run manages incoming and outgoing hub traffic until ctx is done.
func (h *Hub) Run(ctx context.Context, b broker.Broker) error {
	defer close(h.done)

	if err := b.Subscribe(ctx, h.BrokerMsg); err != nil {
		return fmt.Errorf("failed to subscribe to broker: %w", err)
	}

	for {
		select {
		case reg := <-h.Register:
			client := reg.Client
			room, ok := h.rooms[client.RoomID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.RoomID] = room
			}
			room[client] = struct{}{}
			client.Hub = h
			close(reg.Done)

		case client := <-h.Unregister:
			h.remove(client, websocket.StatusNormalClosure, "")

		case payload := <-h.BrokerMsg:
			for client := range h.rooms[payload.RoomID] {
				select {
				case client.MessageCh <- payload:
				default:
					slog.Warn("dropping slow client",
						"room_id", payload.RoomID,
						"user_id", client.UserID.String())
					h.remove(client, websocket.StatusTryAgainLater, "client too slow")
				}
			}

		case ev := <-h.evict:
			for client := range h.rooms[ev.roomID] {
				if client.UserID == ev.userID {
					h.remove(client, websocket.StatusPolicyViolation, ev.reason)
				}
			}

		case <-ctx.Done():
			log.Printf("context cancelled: %v", ctx.Err())
			for _, room := range h.rooms {
				for client := range room {
					h.remove(client, websocket.StatusGoingAway, "server shutting down")
				}
			}
			return nil
		}
	}
}

// Evict closes every socket userID holds on roomID with the access denied
// status.
func (h *Hub) Evict(roomID int64, userID uuid.UUID, reason string) {
	select {
	case h.evict <- eviction{roomID: roomID, userID: userID, reason: reason}:
	case <-h.done:
	}
}

// remove drops client from its room and closes its outbound channel. The
// writer closes the socket with the given status once it drains.
func (h *Hub) remove(client *Client, status websocket.StatusCode, reason string) {
	room, ok := h.rooms[client.RoomID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}

	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, client.RoomID)
	}

	client.closeStatus, client.closeReason = status, reason
	close(client.MessageCh)
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}
