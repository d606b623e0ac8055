package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newatumwa/backend/internal/models"
)

type BroadcastRepo struct {
	pool *pgxpool.Pool
}

func NewBroadcastRepo(pool *pgxpool.Pool) *BroadcastRepo {
	return &BroadcastRepo{pool: pool}
}

// Insert assigns the broadcast its strictly increasing id from the BIGSERIAL
// column.
func (r *BroadcastRepo) Insert(ctx context.Context, b *models.Broadcast) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO broadcasts (audience, kind, title, message, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, b.Audience, b.Kind, b.Title, b.Message, b.CreatedBy).Scan(&b.ID, &b.CreatedAt)
}

// Poll returns, in id order, every broadcast above the subscriber's stored
// watermark whose audience matches the role, excluding the subscriber's own
// broadcasts, and advances the watermark in the same transaction. Re-polling
// therefore yields nothing until new broadcasts arrive: at-most-once per
// subscriber.
func (r *BroadcastRepo) Poll(ctx context.Context, userID uuid.UUID, role string) ([]*models.Broadcast, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var lastSeen int64
	err = tx.QueryRow(ctx, `
		INSERT INTO broadcast_cursors (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET last_seen_id = broadcast_cursors.last_seen_id
		RETURNING last_seen_id
	`, userID).Scan(&lastSeen)
	if err != nil {
		return nil, err
	}

	audiences := []string{models.AudienceAll}
	switch role {
	case models.RoleClient:
		audiences = append(audiences, models.AudienceClients)
	case models.RoleMessenger:
		audiences = append(audiences, models.AudienceMessengers)
	}

	rows, err := tx.Query(ctx, `
		SELECT id, audience, kind, title, message, created_by, created_at
		FROM broadcasts
		WHERE id > $1 AND audience = ANY($2) AND created_by <> $3
		ORDER BY id
	`, lastSeen, audiences, userID)
	if err != nil {
		return nil, err
	}
	var out []*models.Broadcast
	for rows.Next() {
		var b models.Broadcast
		if err := rows.Scan(&b.ID, &b.Audience, &b.Kind, &b.Title, &b.Message, &b.CreatedBy, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, &b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) > 0 {
		_, err = tx.Exec(ctx, `
			UPDATE broadcast_cursors SET last_seen_id = $2 WHERE user_id = $1
		`, userID, out[len(out)-1].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, tx.Commit(ctx)
}
