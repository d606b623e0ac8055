package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet transaction type enums. Rows are immutable after insert; corrections
// are new offsetting entries, never updates or deletes.
const (
	TxCredit = "credit"
	TxDebit  = "debit"
)

// Wallet transaction kind enums. escrow_payment debits the client when funds
// are held, escrow_refund credits them back when the gig dies unfulfilled, so
// the ledger sum always matches the client's authoritative balance.
const (
	TxKindEscrowPayment = "escrow_payment"
	TxKindEscrowRelease = "escrow_release"
	TxKindEscrowRefund  = "escrow_refund"
	TxKindTip           = "tip"
	TxKindPlatformFee   = "platform_fee"
	TxKindReversal      = "reversal"
	TxKindTopUp         = "top_up"
)

type WalletTransaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	GigID       *uuid.UUID      `json:"gig_id,omitempty"`
	Type        string          `json:"type"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ReversesID  *uuid.UUID      `json:"reverses_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Escrow hold status enums.
const (
	HoldHeld     = "HELD"
	HoldReleased = "RELEASED"
	HoldRefunded = "REFUNDED"
)

// EscrowHold tracks funds reserved against the poster from publish until
// delivery is confirmed (released) or the gig dies (refunded).
type EscrowHold struct {
	GigID       uuid.UUID       `json:"gig_id"`
	ClientID    uuid.UUID       `json:"client_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	ReleaseTxID *uuid.UUID      `json:"release_tx_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
