package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type GroupRepository interface {
	// FindOrCreate returns the group stored under g.PairKey, inserting g if
	// none exists. The boolean reports whether g was inserted. Concurrent
	// calls for one pair all return the same group.
	FindOrCreate(ctx context.Context, g *ChatGroup) (*ChatGroup, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ChatGroup, error)
	// ListByParticipant returns the most recently updated groups first.
	ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ChatGroup, int, error)
	SetLastMessage(ctx context.Context, id uuid.UUID, lm *LastMessage, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	// ListByGroup returns messages oldest first.
	ListByGroup(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*Message, int, error)
	MarkRead(ctx context.Context, groupID, recipientID uuid.UUID) (int, error)
	CountUnread(ctx context.Context, groupID, recipientID uuid.UUID) (int, error)
}
