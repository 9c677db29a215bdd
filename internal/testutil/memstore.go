package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/synapse/internal/chat"
	"github.com/johndosdos/synapse/internal/model"
)

// MemoryStore is an in-memory chat.MessageStore and chat.MembershipStore.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	rooms    map[int64]bool
	members  map[int64]map[uuid.UUID]bool
	messages map[int64][]model.ChatMessage
	Now      func() time.Time
}

func NewMemoryStore(roomIDs ...int64) *MemoryStore {
	s := &MemoryStore{
		rooms:    make(map[int64]bool),
		members:  make(map[int64]map[uuid.UUID]bool),
		messages: make(map[int64][]model.ChatMessage),
		Now:      time.Now,
	}
	for _, id := range roomIDs {
		s.rooms[id] = true
	}
	return s
}

func (s *MemoryStore) CreateMessage(_ context.Context, msg chat.NewMessage) (model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	m := model.ChatMessage{
		ID:        s.nextID,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		CreatedAt: s.Now().UTC(),
		UserID:    msg.UserID,
		Owner:     model.Owner{ID: msg.UserID, Username: msg.Username},
	}
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], m)
	return m, nil
}

func (s *MemoryStore) ListRoomMessages(_ context.Context, roomID int64, limit int32) ([]model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[roomID]
	if n := int(limit); n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]model.ChatMessage(nil), msgs...), nil
}

func (s *MemoryStore) IsMember(_ context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[roomID][userID], nil
}

func (s *MemoryStore) RoomExists(_ context.Context, roomID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID], nil
}

func (s *MemoryStore) AddMember(_ context.Context, roomID int64, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[roomID] == nil {
		s.members[roomID] = make(map[uuid.UUID]bool)
	}
	s.members[roomID][userID] = true
	return nil
}

func (s *MemoryStore) RemoveMember(_ context.Context, roomID int64, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[roomID], userID)
	return nil
}
