package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ListByUser returns the most recent notifications first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	// MarkRead reports whether the row changed.
	MarkRead(ctx context.Context, id uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)

	// ClaimPending moves up to limit due rows to dispatching and returns
	// them oldest first. A row is due when it is pending with
	// next_attempt_at <= now, or when it was claimed before staleBefore and
	// never settled. Concurrent callers never receive the same row.
	ClaimPending(ctx context.Context, limit int, now, staleBefore time.Time) ([]*Notification, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordFailure releases a claim after a failed attempt. A pending row is
	// not claimed again before nextAttempt.
	RecordFailure(ctx context.Context, id uuid.UUID, attempts int, status, lastError string, nextAttempt time.Time) error
}
