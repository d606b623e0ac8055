package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/models"
)

// Expiry windows per urgency tier. An unaccepted gig past its window is swept
// to expired and its escrow refunded.
const (
	WindowStandard = 72 * time.Hour
	WindowExpress  = 24 * time.Hour
	WindowPriority = 6 * time.Hour
)

// Policy holds the marketplace rules that are configuration rather than
// lifecycle: price bounds, expiry windows, and which gig types demand
// delivery proof.
type Policy struct {
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
}

func NewPolicy(minPrice, maxPrice decimal.Decimal) *Policy {
	return &Policy{MinPrice: minPrice, MaxPrice: maxPrice}
}

func validGigType(t string) bool {
	switch t {
	case models.GigTypePrescription, models.GigTypePaperwork, models.GigTypeParcel, models.GigTypeShopping:
		return true
	}
	return false
}

func validPaymentMethod(m string) bool {
	switch m {
	case models.PaymentEcocash, models.PaymentCashUSD, models.PaymentZiG:
		return true
	}
	return false
}

func validUrgency(u string) bool {
	switch u {
	case models.UrgencyStandard, models.UrgencyExpress, models.UrgencyPriority:
		return true
	}
	return false
}

// CheckPrice enforces the configured delivery price bounds.
func (p *Policy) CheckPrice(price decimal.Decimal) error {
	if price.LessThan(p.MinPrice) || price.GreaterThan(p.MaxPrice) {
		return fmt.Errorf("%w: price %s outside allowed range %s-%s",
			ErrPreconditionFailed, price, p.MinPrice, p.MaxPrice)
	}
	return nil
}

// ValidateNew checks a gig before it is created: enum fields, price bounds,
// and at least one pickup and one dropoff stop.
func (p *Policy) ValidateNew(g *models.Gig) error {
	if g.Title == "" {
		return fmt.Errorf("%w: title required", ErrPreconditionFailed)
	}
	if !validGigType(g.Type) {
		return fmt.Errorf("%w: unknown gig type %q", ErrPreconditionFailed, g.Type)
	}
	if !validPaymentMethod(g.PaymentMethod) {
		return fmt.Errorf("%w: unknown payment method %q", ErrPreconditionFailed, g.PaymentMethod)
	}
	if !validUrgency(g.Urgency) {
		return fmt.Errorf("%w: unknown urgency %q", ErrPreconditionFailed, g.Urgency)
	}
	if err := p.CheckPrice(g.Price); err != nil {
		return err
	}
	var pickups, dropoffs int
	for _, s := range g.Stops {
		switch s.Kind {
		case models.StopKindPickup:
			pickups++
		case models.StopKindDropoff:
			dropoffs++
		default:
			return fmt.Errorf("%w: unknown stop kind %q", ErrPreconditionFailed, s.Kind)
		}
	}
	if pickups == 0 || dropoffs == 0 {
		return fmt.Errorf("%w: a gig needs at least one pickup and one dropoff", ErrPreconditionFailed)
	}
	return nil
}

// ExpiryWindow returns how long the gig may sit unaccepted on the board.
func (p *Policy) ExpiryWindow(urgency string) time.Duration {
	switch urgency {
	case models.UrgencyPriority:
		return WindowPriority
	case models.UrgencyExpress:
		return WindowExpress
	default:
		return WindowStandard
	}
}

// ProofRequired reports whether dropoffs of this gig type must carry at least
// one delivery proof before the gig can be marked delivered. Prescriptions and
// parcels change hands physically and always need proof.
func (p *Policy) ProofRequired(gigType string) bool {
	return gigType == models.GigTypePrescription || gigType == models.GigTypeParcel
}
