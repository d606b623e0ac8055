package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newatumwa/backend/internal/models"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

const threadColumns = `id, participant_a, participant_b, related_gig_id, last_message, last_message_time, unread_a, unread_b, created_at`

func scanThread(row pgx.Row) (*models.ChatThread, error) {
	var t models.ChatThread
	err := row.Scan(&t.ID, &t.ParticipantA, &t.ParticipantB, &t.RelatedGigID, &t.LastMessage, &t.LastMessageTime, &t.UnreadA, &t.UnreadB, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetOrCreateThread returns the thread between the two participants for the
// given gig, creating it if absent. Participant order does not matter for
// lookup.
func (r *ChatRepo) GetOrCreateThread(ctx context.Context, a, b uuid.UUID, gigID *uuid.UUID) (*models.ChatThread, error) {
	t, err := scanThread(r.pool.QueryRow(ctx, `
		SELECT `+threadColumns+` FROM chat_threads
		WHERE ((participant_a = $1 AND participant_b = $2) OR (participant_a = $2 AND participant_b = $1))
		  AND related_gig_id IS NOT DISTINCT FROM $3
	`, a, b, gigID))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	t = &models.ChatThread{ID: uuid.New(), ParticipantA: a, ParticipantB: b, RelatedGigID: gigID}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO chat_threads (id, participant_a, participant_b, related_gig_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, t.ID, t.ParticipantA, t.ParticipantB, t.RelatedGigID).Scan(&t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *ChatRepo) GetThread(ctx context.Context, id uuid.UUID) (*models.ChatThread, error) {
	return scanThread(r.pool.QueryRow(ctx, `SELECT `+threadColumns+` FROM chat_threads WHERE id = $1`, id))
}

// ThreadForGig returns the thread bound to the gig, or nil when none exists.
func (r *ChatRepo) ThreadForGig(ctx context.Context, gigID uuid.UUID) (*models.ChatThread, error) {
	t, err := scanThread(r.pool.QueryRow(ctx, `SELECT `+threadColumns+` FROM chat_threads WHERE related_gig_id = $1`, gigID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *ChatRepo) ListThreads(ctx context.Context, userID uuid.UUID) ([]*models.ChatThread, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+threadColumns+` FROM chat_threads
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY last_message_time DESC NULLS LAST
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ChatThread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AppendMessage inserts the message and, in the same transaction, bumps the
// thread's last-message fields and the unread counter of every participant
// except the sender.
func (r *ChatRepo) AppendMessage(ctx context.Context, m *models.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, thread_id, sender_id, text, system)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, m.ID, m.ThreadID, m.SenderID, m.Text, m.System).Scan(&m.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE chat_threads
		SET last_message = $2,
		    last_message_time = $3,
		    unread_a = unread_a + CASE WHEN participant_a = $4 THEN 0 ELSE 1 END,
		    unread_b = unread_b + CASE WHEN participant_b = $4 THEN 0 ELSE 1 END
		WHERE id = $1
	`, m.ThreadID, m.Text, m.CreatedAt, m.SenderID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ChatRepo) ListMessages(ctx context.Context, threadID uuid.UUID) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, thread_id, sender_id, text, system, created_at
		FROM messages WHERE thread_id = $1 ORDER BY created_at
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Text, &m.System, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MarkRead zeroes the reader's unread counter.
func (r *ChatRepo) MarkRead(ctx context.Context, threadID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE chat_threads
		SET unread_a = CASE WHEN participant_a = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = $2 THEN 0 ELSE unread_b END
		WHERE id = $1
	`, threadID, userID)
	return err
}
