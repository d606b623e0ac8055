package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/models"
)

// GigRepo covers the gig aggregate: the gigs row plus its owned stops,
// delivery proofs, and checklist items.
type GigRepo struct {
	pool *pgxpool.Pool
}

func NewGigRepo(pool *pgxpool.Pool) *GigRepo {
	return &GigRepo{pool: pool}
}

func (r *GigRepo) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const gigColumns = `id, order_number, title, description, type, price, payment_method, urgency, status, location_start, location_end, lat, lng, posted_by, assigned_to, posted_at, assigned_at, completed_at, expires_at, client_rating, client_review, tip_amount, created_at, updated_at`

func scanGig(row pgx.Row) (*models.Gig, error) {
	var g models.Gig
	err := row.Scan(&g.ID, &g.OrderNumber, &g.Title, &g.Description, &g.Type, &g.Price, &g.PaymentMethod, &g.Urgency, &g.Status, &g.LocationStart, &g.LocationEnd, &g.Lat, &g.Lng, &g.PostedBy, &g.AssignedTo, &g.PostedAt, &g.AssignedAt, &g.CompletedAt, &g.ExpiresAt, &g.ClientRating, &g.ClientReview, &g.TipAmount, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts the gig together with its stops and checklist items, and
// assigns a display order number from the order_numbers sequence.
func (r *GigRepo) Create(ctx context.Context, g *models.Gig) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO gigs (id, order_number, title, description, type, price, payment_method, urgency, status, location_start, location_end, lat, lng, posted_by, expires_at)
		VALUES ($1, 'NT-' || nextval('order_numbers'), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING order_number, posted_at, created_at, updated_at
	`, g.ID, g.Title, g.Description, g.Type, g.Price, g.PaymentMethod, g.Urgency, g.Status, g.LocationStart, g.LocationEnd, g.Lat, g.Lng, g.PostedBy, g.ExpiresAt).
		Scan(&g.OrderNumber, &g.PostedAt, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return err
	}

	for i, s := range g.Stops {
		s.ID = uuid.New()
		s.GigID = g.ID
		s.Seq = i
		_, err = tx.Exec(ctx, `
			INSERT INTO stops (id, gig_id, seq, kind, location, address, instructions, contact_name, contact_phone)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, s.ID, s.GigID, s.Seq, s.Kind, s.Location, s.Address, s.Instructions, s.ContactName, s.ContactPhone)
		if err != nil {
			return err
		}
	}
	for _, c := range g.Checklist {
		c.ID = uuid.New()
		c.GigID = g.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO checklist_items (id, gig_id, text, required)
			VALUES ($1, $2, $3, $4)
		`, c.ID, c.GigID, c.Text, c.Required)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// GetByID loads the gig row; stops and checklist are loaded separately by the
// accessors below to keep listing queries cheap.
func (r *GigRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	return scanGig(r.pool.QueryRow(ctx, `SELECT `+gigColumns+` FROM gigs WHERE id = $1`, id))
}

func (r *GigRepo) list(ctx context.Context, where string, args ...any) ([]*models.Gig, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+gigColumns+` FROM gigs `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Gig
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListOpen returns the open-gig board. Reads are lock-free snapshots and may
// be stale by one refresh interval.
func (r *GigRepo) ListOpen(ctx context.Context) ([]*models.Gig, error) {
	return r.list(ctx, `WHERE status = 'open' ORDER BY posted_at DESC`)
}

func (r *GigRepo) ListByPoster(ctx context.Context, posterID uuid.UUID) ([]*models.Gig, error) {
	return r.list(ctx, `WHERE posted_by = $1 ORDER BY posted_at DESC`, posterID)
}

func (r *GigRepo) ListByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]*models.Gig, error) {
	return r.list(ctx, `WHERE assigned_to = $1 ORDER BY assigned_at DESC`, assigneeID)
}

// TryAssign is the assignment compare-and-swap. Under concurrent acceptance
// attempts the WHERE clause guarantees at most one UPDATE lands; everyone
// else sees zero rows affected.
func (r *GigRepo) TryAssign(ctx context.Context, gigID, messengerID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE gigs
		SET assigned_to = $2, status = 'in-progress', assigned_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'open' AND assigned_to IS NULL
	`, gigID, messengerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SwapStatus atomically moves the gig from one of the allowed statuses to the
// target status. completed_at is stamped when the target is a completion
// state. Returns false when the current status is not in from (lost race or
// illegal transition).
func (r *GigRepo) SwapStatus(ctx context.Context, gigID uuid.UUID, from []string, to string) (bool, error) {
	return r.swapStatus(ctx, r.pool, gigID, from, to)
}

// SwapStatusTx is SwapStatus inside the caller's transaction, for transitions
// that must commit together with ledger writes.
func (r *GigRepo) SwapStatusTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, from []string, to string) (bool, error) {
	return r.swapStatus(ctx, tx, gigID, from, to)
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *GigRepo) swapStatus(ctx context.Context, q execer, gigID uuid.UUID, from []string, to string) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE gigs
		SET status = $2,
		    completed_at = CASE WHEN $2 = 'completed' THEN now() ELSE completed_at END,
		    assigned_to = CASE WHEN $2 IN ('cancelled', 'expired') THEN NULL ELSE assigned_to END,
		    updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, gigID, to, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Rate records the poster's rating and advances completed -> verified in one
// conditional update.
func (r *GigRepo) Rate(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, rating int, review *string) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE gigs
		SET client_rating = $2, client_review = $3, status = 'verified', updated_at = now()
		WHERE id = $1 AND status = 'completed'
	`, gigID, rating, review)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdatePriceTx is the explicit repricing action, inside the caller's
// transaction so the price change and the escrow hold resize commit together.
// Price is immutable once the gig leaves the open pool, enforced by the WHERE
// clause.
func (r *GigRepo) UpdatePriceTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, price decimal.Decimal) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE gigs SET price = $2, updated_at = now() WHERE id = $1 AND status = 'open'
	`, gigID, price)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *GigRepo) SetTip(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx, `UPDATE gigs SET tip_amount = tip_amount + $2, updated_at = now() WHERE id = $1`, gigID, amount)
	return err
}

// ListOverdue returns every non-terminal, unassigned gig whose deadline has
// passed. The sweep expires each one in its own transaction so the status
// swap and the escrow refund commit together. now is supplied by the caller;
// the repo holds no clock.
func (r *GigRepo) ListOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM gigs
		WHERE status IN ('draft', 'open') AND expires_at IS NOT NULL AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- checklist ---

func (r *GigRepo) Checklist(ctx context.Context, gigID uuid.UUID) ([]*models.ChecklistItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, gig_id, text, required, completed FROM checklist_items WHERE gig_id = $1 ORDER BY id
	`, gigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ChecklistItem
	for rows.Next() {
		var c models.ChecklistItem
		if err := rows.Scan(&c.ID, &c.GigID, &c.Text, &c.Required, &c.Completed); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *GigRepo) SetChecklistItem(ctx context.Context, gigID, itemID uuid.UUID, completed bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE checklist_items SET completed = $3 WHERE id = $2 AND gig_id = $1
	`, gigID, itemID, completed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RequiredIncomplete counts required checklist items that are still open.
// A non-zero count blocks the delivered transition.
func (r *GigRepo) RequiredIncomplete(ctx context.Context, gigID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM checklist_items WHERE gig_id = $1 AND required AND NOT completed
	`, gigID).Scan(&n)
	return n, err
}

// --- stops & proofs ---

func (r *GigRepo) Stops(ctx context.Context, gigID uuid.UUID) ([]*models.Stop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, gig_id, seq, kind, location, address, instructions, contact_name, contact_phone, completed, completed_at
		FROM stops WHERE gig_id = $1 ORDER BY seq
	`, gigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Stop
	for rows.Next() {
		var s models.Stop
		if err := rows.Scan(&s.ID, &s.GigID, &s.Seq, &s.Kind, &s.Location, &s.Address, &s.Instructions, &s.ContactName, &s.ContactPhone, &s.Completed, &s.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *GigRepo) GetStop(ctx context.Context, stopID uuid.UUID) (*models.Stop, error) {
	var s models.Stop
	err := r.pool.QueryRow(ctx, `
		SELECT id, gig_id, seq, kind, location, address, instructions, contact_name, contact_phone, completed, completed_at
		FROM stops WHERE id = $1
	`, stopID).Scan(&s.ID, &s.GigID, &s.Seq, &s.Kind, &s.Location, &s.Address, &s.Instructions, &s.ContactName, &s.ContactPhone, &s.Completed, &s.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GigRepo) CompleteStop(ctx context.Context, stopID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE stops SET completed = TRUE, completed_at = now() WHERE id = $1`, stopID)
	return err
}

// AddProof appends an immutable delivery proof record to a stop.
func (r *GigRepo) AddProof(ctx context.Context, p *models.DeliveryProof) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO delivery_proofs (id, stop_id, type, url, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, p.ID, p.StopID, p.Type, p.URL, p.Data).Scan(&p.CreatedAt)
}

func (r *GigRepo) Proofs(ctx context.Context, stopID uuid.UUID) ([]*models.DeliveryProof, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, stop_id, type, url, data, created_at FROM delivery_proofs WHERE stop_id = $1 ORDER BY created_at
	`, stopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.DeliveryProof
	for rows.Next() {
		var p models.DeliveryProof
		if err := rows.Scan(&p.ID, &p.StopID, &p.Type, &p.URL, &p.Data, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
