// Package chat implements the server side of room chat: history, gated and
// rate limited sends, and membership changes.
package chat

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/johndosdos/synapse/internal/auth"
	"github.com/johndosdos/synapse/internal/broker"
	"github.com/johndosdos/synapse/internal/model"
	ratelimiter "github.com/johndosdos/synapse/internal/rate_limiter"
)

// NewMessage is a message accepted for persistence. The store assigns the
// id and timestamp.
type NewMessage struct {
	RoomID   int64
	UserID   uuid.UUID
	Username string
	Content  string
}

// MessageStore is the append-only per-room message log.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg NewMessage) (model.ChatMessage, error)
	ListRoomMessages(ctx context.Context, roomID int64, limit int32) ([]model.ChatMessage, error)
}

// MembershipOracle answers whether a user may write to a room.
type MembershipOracle interface {
	IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error)
}

// MembershipStore changes room membership.
type MembershipStore interface {
	MembershipOracle
	RoomExists(ctx context.Context, roomID int64) (bool, error)
	AddMember(ctx context.Context, roomID int64, userID uuid.UUID) error
	RemoveMember(ctx context.Context, roomID int64, userID uuid.UUID) error
}

// Evictor closes a user's live connections to a room.
type Evictor interface {
	Evict(roomID int64, userID uuid.UUID, reason string)
}

type sanitizer interface {
	Sanitize(s string) string
}

type Service struct {
	store        MessageStore
	members      MembershipStore
	cooldown     ratelimiter.Cooldown
	broker       broker.Broker
	evictor      Evictor
	sanitizer    sanitizer
	historyLimit int32

	mu        sync.Mutex
	roomLocks map[int64]*sync.Mutex
}

// NewService wires the chat service. evictor may be nil when no live
// connections exist to close.
func NewService(store MessageStore, members MembershipStore, cooldown ratelimiter.Cooldown,
	b broker.Broker, evictor Evictor, historyLimit int32) *Service {
	return &Service{
		store:        store,
		members:      members,
		cooldown:     cooldown,
		broker:       b,
		evictor:      evictor,
		sanitizer:    bluemonday.StrictPolicy(),
		historyLimit: historyLimit,
		roomLocks:    make(map[int64]*sync.Mutex),
	}
}

// SetEvictor sets the connection evictor once the hub exists.
func (s *Service) SetEvictor(e Evictor) {
	s.evictor = e
}

// History returns the most recent messages of a room in ascending id order.
// Reads are open to any authenticated user.
func (s *Service) History(ctx context.Context, roomID int64) ([]model.ChatMessage, error) {
	msgs, err := s.store.ListRoomMessages(ctx, roomID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("internal/chat: list messages: %w", err)
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}

// CanWrite reports whether id is a member of roomID.
func (s *Service) CanWrite(ctx context.Context, id auth.Identity, roomID int64) (bool, error) {
	ok, err := s.members.IsMember(ctx, roomID, id.UserID)
	if err != nil {
		return false, fmt.Errorf("internal/chat: membership check: %w", err)
	}
	return ok, nil
}

// Send validates, rate limits, persists and publishes a message. Membership
// is checked on every send, independent of what the client believes.
func (s *Service) Send(ctx context.Context, id auth.Identity, roomID int64, content string) (model.ChatMessage, error) {
	// Markup is stripped to prevent XSS; entities are decoded again because
	// content is plain text and every renderer escapes it.
	sanitized := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(content)))
	if sanitized == "" {
		return model.ChatMessage{}, ErrEmptyContent
	}

	ok, err := s.CanWrite(ctx, id, roomID)
	if err != nil {
		return model.ChatMessage{}, err
	}
	if !ok {
		return model.ChatMessage{}, ErrAccessDenied
	}

	allowed, wait, err := s.cooldown.Allow(ctx, ratelimiter.Key{UserID: id.UserID, RoomID: roomID})
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("internal/chat: cooldown: %w", err)
	}
	if !allowed {
		return model.ChatMessage{}, &RateLimitError{Wait: wait}
	}

	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := s.store.CreateMessage(ctx, NewMessage{
		RoomID:   roomID,
		UserID:   id.UserID,
		Username: id.Username,
		Content:  sanitized,
	})
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("internal/chat: store message: %w", err)
	}

	// The message is durable at this point; a failed publish only delays
	// push delivery until the next history fetch.
	if err := s.broker.Publish(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "failed to publish message",
			"error", err,
			"room_id", roomID,
			"message_id", msg.ID)
	}

	return msg, nil
}

// Join adds id to a room's members.
func (s *Service) Join(ctx context.Context, id auth.Identity, roomID int64) error {
	exists, err := s.members.RoomExists(ctx, roomID)
	if err != nil {
		return fmt.Errorf("internal/chat: room lookup: %w", err)
	}
	if !exists {
		return ErrRoomNotFound
	}

	if err := s.members.AddMember(ctx, roomID, id.UserID); err != nil {
		return fmt.Errorf("internal/chat: add member: %w", err)
	}
	return nil
}

// Leave removes id from a room's members and closes their live
// connections to it.
func (s *Service) Leave(ctx context.Context, id auth.Identity, roomID int64) error {
	if err := s.members.RemoveMember(ctx, roomID, id.UserID); err != nil {
		return fmt.Errorf("internal/chat: remove member: %w", err)
	}

	if s.evictor != nil {
		s.evictor.Evict(roomID, id.UserID, "membership revoked")
	}
	return nil
}

// roomLock serializes persist-then-publish per room so fan-out order
// matches id order.
func (s *Service) roomLock(roomID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.roomLocks[roomID] = l
	}
	return l
}
