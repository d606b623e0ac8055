package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	errInsufficientFunds = errors.New("insufficient funds")
	errAlreadySettled    = errors.New("escrow already settled")
	errNothingToReverse  = errors.New("no released escrow to reverse")
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PlaceHold runs inside the caller's publish transaction. It:
// a) verifies the client's balance covers the price (atomic conditional UPDATE)
// b) moves the amount from balance to hold on the client row
// c) inserts a HELD record into escrow_holds
// d) writes the client's escrow_payment debit row, so the ledger sum tracks
//    the balance the hold was taken from
func (r *Repository) PlaceHold(ctx context.Context, tx pgx.Tx, gigID, clientID uuid.UUID, amount decimal.Decimal) error {
	result, err := tx.Exec(ctx, `
		UPDATE users
		SET balance = balance - $1, hold = hold + $1
		WHERE id = $2 AND balance >= $1
	`, amount, clientID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errInsufficientFunds
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO escrow_holds (gig_id, client_id, amount, status)
		VALUES ($1, $2, $3, 'HELD')
	`, gigID, clientID, amount)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description)
		VALUES ($1, $2, $3, 'debit', 'escrow_payment', $4, 'Payment held in escrow')
	`, uuid.New(), clientID, gigID, amount)
	return err
}

// Release runs inside the caller's confirmation transaction. It credits the
// messenger the held price, debits the platform fee, and marks the hold
// RELEASED. A gig without a HELD row was settled (or refunded) already, so a
// second caller gets errAlreadySettled and writes nothing.
func (r *Repository) Release(ctx context.Context, tx pgx.Tx, gigID, messengerID uuid.UUID, feeRate decimal.Decimal) error {
	var clientID uuid.UUID
	var amount decimal.Decimal
	row := tx.QueryRow(ctx, `
		SELECT client_id, amount FROM escrow_holds WHERE gig_id = $1 AND status = 'HELD' FOR UPDATE
	`, gigID)
	if err := row.Scan(&clientID, &amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errAlreadySettled
		}
		return err
	}

	var releaseTxID uuid.UUID
	row = tx.QueryRow(ctx, `
		INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description)
		VALUES ($1, $2, $3, 'credit', 'escrow_release', $4, 'Payment for delivered gig')
		RETURNING id
	`, uuid.New(), messengerID, gigID, amount)
	if err := row.Scan(&releaseTxID); err != nil {
		return err
	}

	fee := amount.Mul(feeRate).Round(2)
	if fee.IsPositive() {
		_, err := tx.Exec(ctx, `
			INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description)
			VALUES ($1, $2, $3, 'debit', 'platform_fee', $4, 'Platform fee')
		`, uuid.New(), messengerID, gigID, fee)
		if err != nil {
			return err
		}
	}

	_, err := tx.Exec(ctx, `
		UPDATE escrow_holds SET status = 'RELEASED', release_tx_id = $1 WHERE gig_id = $2
	`, releaseTxID, gigID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE users SET hold = hold - $1 WHERE id = $2`, amount, clientID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE users SET balance = balance + $1 WHERE id = $2`, amount.Sub(fee), messengerID)
	return err
}

// RefundTx returns held funds to the client when a published gig is cancelled
// or expires. Runs inside the caller's transaction so the status swap and the
// refund commit together. A gig that was never funded, or was settled, is
// left untouched. The escrow_refund credit row offsets the escrow_payment
// debit written by PlaceHold.
func (r *Repository) RefundTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID) error {
	var clientID uuid.UUID
	var amount decimal.Decimal
	row := tx.QueryRow(ctx, `
		SELECT client_id, amount FROM escrow_holds WHERE gig_id = $1 AND status = 'HELD' FOR UPDATE
	`, gigID)
	if err := row.Scan(&clientID, &amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE escrow_holds SET status = 'REFUNDED' WHERE gig_id = $1`, gigID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE users SET hold = hold - $1, balance = balance + $1 WHERE id = $2`, amount, clientID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description)
		VALUES ($1, $2, $3, 'credit', 'escrow_refund', $4, 'Escrow refunded')
	`, uuid.New(), clientID, gigID, amount)
	return err
}

// AdjustHold resizes a HELD escrow when an open gig is repriced. The delta
// moves between the client's balance and hold; raising the hold fails with
// errInsufficientFunds when the balance cannot cover the difference.
func (r *Repository) AdjustHold(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, newAmount decimal.Decimal) error {
	var clientID uuid.UUID
	var oldAmount decimal.Decimal
	row := tx.QueryRow(ctx, `
		SELECT client_id, amount FROM escrow_holds WHERE gig_id = $1 AND status = 'HELD' FOR UPDATE
	`, gigID)
	if err := row.Scan(&clientID, &oldAmount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errAlreadySettled
		}
		return err
	}
	delta := newAmount.Sub(oldAmount)
	if delta.IsZero() {
		return nil
	}
	result, err := tx.Exec(ctx, `
		UPDATE users
		SET balance = balance - $1, hold = hold + $1
		WHERE id = $2 AND balance >= $1
	`, delta, clientID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errInsufficientFunds
	}
	_, err = tx.Exec(ctx, `UPDATE escrow_holds SET amount = $2 WHERE gig_id = $1`, gigID, newAmount)
	if err != nil {
		return err
	}
	// The ledger row for the delta keeps credits-minus-debits equal to the
	// client's balance after the resize.
	if delta.IsPositive() {
		_, err = tx.Exec(ctx, `
			INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description)
			VALUES ($1, $2, $3, 'debit', 'escrow_payment', $4, 'Escrow hold increased')
		`, uuid.New(), clientID, gigID, delta)
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description)
			VALUES ($1, $2, $3, 'credit', 'escrow_refund', $4, 'Escrow hold decreased')
		`, uuid.New(), clientID, gigID, delta.Neg())
	}
	return err
}

// Tip moves an extra amount from client to messenger inside the caller's
// transaction. The gig price is untouched; a tip is its own pair of rows.
func (r *Repository) Tip(ctx context.Context, tx pgx.Tx, gigID, clientID, messengerID uuid.UUID, amount decimal.Decimal) error {
	result, err := tx.Exec(ctx, `
		UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1
	`, amount, clientID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errInsufficientFunds
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description)
		VALUES ($1, $2, $3, 'debit', 'tip', $4, 'Tip sent')
	`, uuid.New(), clientID, gigID, amount)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description)
		VALUES ($1, $2, $3, 'credit', 'tip', $4, 'Tip received')
	`, uuid.New(), messengerID, gigID, amount)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, messengerID)
	return err
}

// Reverse offsets a released payment during dispute resolution. The original
// credit row is never mutated; an offsetting debit referencing it is written
// against the messenger and the client is re-credited the full price.
func (r *Repository) Reverse(ctx context.Context, gigID uuid.UUID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var origTxID, messengerID, clientID uuid.UUID
	var amount decimal.Decimal
	row := tx.QueryRow(ctx, `
		SELECT h.release_tx_id, t.user_id, h.client_id, h.amount
		FROM escrow_holds h
		JOIN wallet_transactions t ON t.id = h.release_tx_id
		WHERE h.gig_id = $1 AND h.status = 'RELEASED'
	`, gigID)
	if err := row.Scan(&origTxID, &messengerID, &clientID, &amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errNothingToReverse
		}
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description, reverses_id)
		VALUES ($1, $2, $3, 'debit', 'reversal', $4, $5, $6)
	`, uuid.New(), messengerID, gigID, amount, reason, origTxID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, gig_id, tx_type, kind, amount, description, reverses_id)
		VALUES ($1, $2, $3, 'credit', 'reversal', $4, $5, $6)
	`, uuid.New(), clientID, gigID, amount, reason, origTxID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE users SET balance = balance - $1 WHERE id = $2`, amount, messengerID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, clientID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TopUp credits a deposit straight to the user's balance.
func (r *Repository) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, tx_type, kind, amount, description)
		VALUES ($1, $2, 'credit', 'top_up', $3, $4)
	`, uuid.New(), userID, amount, "Top-up via "+method)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
