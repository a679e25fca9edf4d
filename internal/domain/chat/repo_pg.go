package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/apperr"
	"github.com/ashirxD/Hospital-App-sub000/internal/platform/db"
)

// =========== Group Repository ===========

type groupRepoPG struct{ pool *pgxpool.Pool }

func NewGroupRepoPG(pool *pgxpool.Pool) GroupRepository { return &groupRepoPG{pool: pool} }

func (r *groupRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const groupCols = `id, participant_a, participant_b, pair_key, last_message, created_at, updated_at`

func (r *groupRepoPG) scanGroup(row pgx.Row) (*ChatGroup, error) {
	var g ChatGroup
	var a, b uuid.UUID
	err := row.Scan(&g.ID, &a, &b, &g.PairKey, &g.LastMessage, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	g.Participants = []uuid.UUID{a, b}
	return &g, nil
}

func (r *groupRepoPG) FindOrCreate(ctx context.Context, g *ChatGroup) (*ChatGroup, bool, error) {
	created, err := r.scanGroup(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chat_groups (id, participant_a, participant_b, pair_key)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (pair_key) DO NOTHING
		RETURNING `+groupCols,
		g.ID, g.Participants[0], g.Participants[1], g.PairKey))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, false, err
	}

	existing, err := r.scanGroup(r.conn(ctx).QueryRow(ctx,
		`SELECT `+groupCols+` FROM chat_groups WHERE pair_key = $1`, g.PairKey))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *groupRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ChatGroup, error) {
	return r.scanGroup(r.conn(ctx).QueryRow(ctx, `SELECT `+groupCols+` FROM chat_groups WHERE id = $1`, id))
}

func (r *groupRepoPG) ListByParticipant(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ChatGroup, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM chat_groups WHERE participant_a = $1 OR participant_b = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+groupCols+` FROM chat_groups
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ChatGroup
	for rows.Next() {
		g, err := r.scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *groupRepoPG) SetLastMessage(ctx context.Context, id uuid.UUID, lm *LastMessage, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE chat_groups SET last_message = $2, updated_at = $3 WHERE id = $1`, id, lm, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// =========== Message Repository ===========

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository { return &messageRepoPG{pool: pool} }

func (r *messageRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const msgCols = `id, chat_group_id, sender_id, recipient_id, content, attachment, read, created_at`

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO messages (id, chat_group_id, sender_id, recipient_id, content, attachment, read)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		m.ID, m.ChatGroupID, m.SenderID, m.RecipientID, m.Content, m.Attachment, m.Read,
	).Scan(&m.CreatedAt)
	return db.MapError(err)
}

func (r *messageRepoPG) ListByGroup(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE chat_group_id = $1`, groupID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+msgCols+` FROM messages WHERE chat_group_id = $1
		ORDER BY created_at, id LIMIT $2 OFFSET $3`, groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatGroupID, &m.SenderID, &m.RecipientID, &m.Content,
			&m.Attachment, &m.Read, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &m)
	}
	return items, total, rows.Err()
}

func (r *messageRepoPG) MarkRead(ctx context.Context, groupID, recipientID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE messages SET read = TRUE
		WHERE chat_group_id = $1 AND recipient_id = $2 AND NOT read`, groupID, recipientID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *messageRepoPG) CountUnread(ctx context.Context, groupID, recipientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE chat_group_id = $1 AND recipient_id = $2 AND NOT read`, groupID, recipientID).Scan(&n)
	return n, err
}
