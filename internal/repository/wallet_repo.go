package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/models"
)

// WalletRepo is the read side of the ledger. All writes go through the ledger
// package so escrow invariants cannot be bypassed.
type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, gig_id, tx_type, kind, amount, description, reverses_id, created_at
		FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.GigID, &t.Type, &t.Kind, &t.Amount, &t.Description, &t.ReversesID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Balance derives the user's balance from the ledger: credits minus debits.
func (r *WalletRepo) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN tx_type = 'credit' THEN amount ELSE -amount END), 0)
		FROM wallet_transactions WHERE user_id = $1
	`, userID).Scan(&balance)
	return balance, err
}
