package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gig status enums. The lifecycle is monotonic along this order:
// draft -> open -> in-progress -> purchased -> delivered -> completed -> verified,
// with cancelled and expired reachable from any non-terminal status.
// "completed" is the pre-rating terminal state; rating advances it to "verified".
const (
	GigStatusDraft      = "draft"
	GigStatusOpen       = "open"
	GigStatusInProgress = "in-progress"
	GigStatusPurchased  = "purchased"
	GigStatusDelivered  = "delivered"
	GigStatusCompleted  = "completed"
	GigStatusVerified   = "verified"
	GigStatusCancelled  = "cancelled"
	GigStatusExpired    = "expired"
)

// Gig type enums.
const (
	GigTypePrescription = "prescription"
	GigTypePaperwork    = "paperwork"
	GigTypeParcel       = "parcel"
	GigTypeShopping     = "shopping"
)

// Payment method enums.
const (
	PaymentEcocash = "ecocash"
	PaymentCashUSD = "cash_usd"
	PaymentZiG     = "zig"
)

// Urgency tier enums.
const (
	UrgencyStandard = "standard"
	UrgencyExpress  = "express"
	UrgencyPriority = "priority"
)

type Gig struct {
	ID            uuid.UUID       `json:"id"`
	OrderNumber   string          `json:"order_number"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Type          string          `json:"type"`
	Price         decimal.Decimal `json:"price"`
	PaymentMethod string          `json:"payment_method"`
	Urgency       string          `json:"urgency"`
	Status        string          `json:"status"`
	LocationStart string          `json:"location_start"`
	LocationEnd   string          `json:"location_end"`
	Lat           *float64        `json:"lat,omitempty"`
	Lng           *float64        `json:"lng,omitempty"`
	PostedBy      uuid.UUID       `json:"posted_by"`
	AssignedTo    *uuid.UUID      `json:"assigned_to,omitempty"`
	PostedAt      time.Time       `json:"posted_at"`
	AssignedAt    *time.Time      `json:"assigned_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	ClientRating  *int            `json:"client_rating,omitempty"`
	ClientReview  *string         `json:"client_review,omitempty"`
	TipAmount     decimal.Decimal `json:"tip_amount"`
	Stops         []*Stop         `json:"stops,omitempty"`
	Checklist     []*ChecklistItem `json:"checklist,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Terminal reports whether the gig can no longer change status.
func (g *Gig) Terminal() bool {
	switch g.Status {
	case GigStatusVerified, GigStatusCancelled, GigStatusExpired:
		return true
	}
	return false
}

// Stop is an ordered pickup/dropoff waypoint owned by exactly one gig.
// Only the assignee mutates it.
type Stop struct {
	ID           uuid.UUID        `json:"id"`
	GigID        uuid.UUID        `json:"gig_id"`
	Seq          int              `json:"seq"`
	Kind         string           `json:"kind"` // pickup | dropoff
	Location     string           `json:"location"`
	Address      string           `json:"address"`
	Instructions *string          `json:"instructions,omitempty"`
	ContactName  *string          `json:"contact_name,omitempty"`
	ContactPhone *string          `json:"contact_phone,omitempty"`
	Completed    bool             `json:"completed"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	Proofs       []*DeliveryProof `json:"proofs,omitempty"`
}

const (
	StopKindPickup  = "pickup"
	StopKindDropoff = "dropoff"
)

// DeliveryProof type enums.
const (
	ProofPhoto     = "photo"
	ProofSignature = "signature"
	ProofQRCode    = "qr_code"
	ProofBarcode   = "barcode"
	ProofNotes     = "notes"
)

// DeliveryProof records are append-only; corrections are new records.
type DeliveryProof struct {
	ID        uuid.UUID `json:"id"`
	StopID    uuid.UUID `json:"stop_id"`
	Type      string    `json:"type"`
	URL       *string   `json:"url,omitempty"`
	Data      *string   `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChecklistItem is a discrete step within a gig. Required items gate the
// delivered transition.
type ChecklistItem struct {
	ID        uuid.UUID `json:"id"`
	GigID     uuid.UUID `json:"gig_id"`
	Text      string    `json:"text"`
	Required  bool      `json:"required"`
	Completed bool      `json:"completed"`
}
