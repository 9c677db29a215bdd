package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/synapse/internal/database"
	"github.com/johndosdos/synapse/internal/model"
)

// PostgresStore adapts the generated queries to MessageStore and
// MembershipStore.
type PostgresStore struct {
	q *database.Queries
}

func NewPostgresStore(q *database.Queries) *PostgresStore {
	return &PostgresStore{q: q}
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func toModel(m database.ChatMessage) model.ChatMessage {
	userID := uuid.UUID(m.UserID.Bytes)
	return model.ChatMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Time.UTC(),
		UserID:    userID,
		Owner:     model.Owner{ID: userID, Username: m.Username},
	}
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg NewMessage) (model.ChatMessage, error) {
	created, err := s.q.CreateMessage(ctx, database.CreateMessageParams{
		RoomID:   msg.RoomID,
		UserID:   pgUUID(msg.UserID),
		Username: msg.Username,
		Content:  msg.Content,
	})
	if err != nil {
		return model.ChatMessage{}, err
	}
	return toModel(created), nil
}

func (s *PostgresStore) ListRoomMessages(ctx context.Context, roomID int64, limit int32) ([]model.ChatMessage, error) {
	rows, err := s.q.ListRoomMessages(ctx, database.ListRoomMessagesParams{RoomID: roomID, Limit: limit})
	if err != nil {
		return nil, err
	}

	msgs := make([]model.ChatMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, toModel(r))
	}
	return msgs, nil
}

func (s *PostgresStore) IsMember(ctx context.Context, roomID int64, userID uuid.UUID) (bool, error) {
	return s.q.IsRoomMember(ctx, database.IsRoomMemberParams{RoomID: roomID, UserID: pgUUID(userID)})
}

func (s *PostgresStore) RoomExists(ctx context.Context, roomID int64) (bool, error) {
	return s.q.RoomExists(ctx, roomID)
}

func (s *PostgresStore) AddMember(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return s.q.AddRoomMember(ctx, database.AddRoomMemberParams{RoomID: roomID, UserID: pgUUID(userID)})
}

func (s *PostgresStore) RemoveMember(ctx context.Context, roomID int64, userID uuid.UUID) error {
	return s.q.RemoveRoomMember(ctx, database.RemoveRoomMemberParams{RoomID: roomID, UserID: pgUUID(userID)})
}
