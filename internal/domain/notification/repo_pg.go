package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const cols = `id, user_id, type, message, appointment_id, read, delivery_status,
	attempts, last_error, next_attempt_at, claimed_at, delivered_at, created_at`

func (r *repoPG) scan(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.AppointmentID, &n.Read,
		&n.DeliveryStatus, &n.Attempts, &n.LastError, &n.NextAttemptAt, &n.ClaimedAt, &n.DeliveredAt, &n.CreatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &n, nil
}

func (r *repoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*Notification, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Notification
	for rows.Next() {
		n, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, n *Notification) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, type, message, appointment_id, read, delivery_status, attempts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING next_attempt_at, created_at`,
		n.ID, n.UserID, n.Type, n.Message, n.AppointmentID, n.Read, n.DeliveryStatus, n.Attempts,
	).Scan(&n.NextAttemptAt, &n.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	return r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM notifications WHERE id = $1`, id))
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Notification, error) {
	return r.list(ctx, `SELECT `+cols+` FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
}

func (r *repoPG) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&n)
	return n, err
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND NOT read`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repoPG) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ClaimPending locks due rows with SKIP LOCKED so concurrent dispatchers
// split the outbox instead of sharing it.
func (r *repoPG) ClaimPending(ctx context.Context, limit int, now, staleBefore time.Time) ([]*Notification, error) {
	return r.list(ctx, `
		WITH claimed AS (
			UPDATE notifications SET delivery_status = 'dispatching', claimed_at = $2
			WHERE id IN (
				SELECT id FROM notifications
				WHERE (delivery_status = 'pending' AND next_attempt_at <= $2)
				   OR (delivery_status = 'dispatching' AND claimed_at < $3)
				ORDER BY created_at
				LIMIT $1
				FOR UPDATE SKIP LOCKED)
			RETURNING `+cols+`)
		SELECT `+cols+` FROM claimed ORDER BY created_at`, limit, now, staleBefore)
}

func (r *repoPG) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET delivery_status = 'delivered', delivered_at = $2,
			claimed_at = NULL, attempts = attempts + 1
		WHERE id = $1`, id, at)
	return err
}

func (r *repoPG) RecordFailure(ctx context.Context, id uuid.UUID, attempts int, status, lastError string, nextAttempt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE notifications SET attempts = $2, delivery_status = $3, last_error = $4,
			next_attempt_at = $5, claimed_at = NULL
		WHERE id = $1`, id, attempts, status, lastError, nextAttempt)
	return err
}
