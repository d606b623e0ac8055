package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Service owns every write against the wallet ledger and escrow holds. The
// rest of the system reads balances through the wallet repository but can only
// move money through here.
type Service interface {
	PlaceHold(ctx context.Context, tx pgx.Tx, gigID, clientID uuid.UUID, amount decimal.Decimal) error
	Release(ctx context.Context, tx pgx.Tx, gigID, messengerID uuid.UUID, feeRate decimal.Decimal) error
	RefundTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID) error
	AdjustHold(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, newAmount decimal.Decimal) error
	Tip(ctx context.Context, tx pgx.Tx, gigID, clientID, messengerID uuid.UUID, amount decimal.Decimal) error
	Reverse(ctx context.Context, gigID uuid.UUID, reason string) error
	TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method string) error
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) PlaceHold(ctx context.Context, tx pgx.Tx, gigID, clientID uuid.UUID, amount decimal.Decimal) error {
	return s.repo.PlaceHold(ctx, tx, gigID, clientID, amount)
}

func (s *service) Release(ctx context.Context, tx pgx.Tx, gigID, messengerID uuid.UUID, feeRate decimal.Decimal) error {
	return s.repo.Release(ctx, tx, gigID, messengerID, feeRate)
}

func (s *service) RefundTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID) error {
	return s.repo.RefundTx(ctx, tx, gigID)
}

func (s *service) AdjustHold(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, newAmount decimal.Decimal) error {
	return s.repo.AdjustHold(ctx, tx, gigID, newAmount)
}

func (s *service) Tip(ctx context.Context, tx pgx.Tx, gigID, clientID, messengerID uuid.UUID, amount decimal.Decimal) error {
	return s.repo.Tip(ctx, tx, gigID, clientID, messengerID, amount)
}

func (s *service) Reverse(ctx context.Context, gigID uuid.UUID, reason string) error {
	return s.repo.Reverse(ctx, gigID, reason)
}

func (s *service) TopUp(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, method string) error {
	return s.repo.TopUp(ctx, userID, amount, method)
}

// ErrInsufficientFunds is returned when the client's balance cannot cover the
// hold or tip.
var ErrInsufficientFunds = errInsufficientFunds

// ErrAlreadySettled is returned on a repeat release attempt for a gig whose
// escrow has already been released or refunded.
var ErrAlreadySettled = errAlreadySettled

// ErrNothingToReverse is returned when a reversal targets a gig with no
// released escrow.
var ErrNothingToReverse = errNothingToReverse
