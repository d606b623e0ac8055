package services

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/models"
)

func testPolicy() *Policy {
	return NewPolicy(decimal.NewFromFloat(2.50), decimal.NewFromInt(100))
}

func validDraft() *models.Gig {
	return &models.Gig{
		Title:         "Collect prescription",
		Type:          models.GigTypePrescription,
		Price:         decimal.NewFromInt(15),
		PaymentMethod: models.PaymentEcocash,
		Urgency:       models.UrgencyExpress,
		Stops: []*models.Stop{
			{Kind: models.StopKindPickup, Location: "Clinic"},
			{Kind: models.StopKindDropoff, Location: "Home"},
		},
	}
}

func TestValidateNew_OK(t *testing.T) {
	if err := testPolicy().ValidateNew(validDraft()); err != nil {
		t.Fatalf("ValidateNew: %v", err)
	}
}

func TestValidateNew_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*models.Gig)
	}{
		{"empty title", func(g *models.Gig) { g.Title = "" }},
		{"unknown type", func(g *models.Gig) { g.Type = "laundry" }},
		{"unknown payment method", func(g *models.Gig) { g.PaymentMethod = "barter" }},
		{"unknown urgency", func(g *models.Gig) { g.Urgency = "whenever" }},
		{"price below minimum", func(g *models.Gig) { g.Price = decimal.NewFromInt(1) }},
		{"price above maximum", func(g *models.Gig) { g.Price = decimal.NewFromInt(500) }},
		{"no pickup", func(g *models.Gig) { g.Stops = g.Stops[1:] }},
		{"no dropoff", func(g *models.Gig) { g.Stops = g.Stops[:1] }},
		{"unknown stop kind", func(g *models.Gig) { g.Stops[0].Kind = "waypoint" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := validDraft()
			tc.mutate(g)
			if err := testPolicy().ValidateNew(g); !errors.Is(err, ErrPreconditionFailed) {
				t.Fatalf("err = %v, want ErrPreconditionFailed", err)
			}
		})
	}
}

func TestCheckPrice_Bounds(t *testing.T) {
	p := testPolicy()
	if err := p.CheckPrice(decimal.NewFromFloat(2.50)); err != nil {
		t.Errorf("minimum price rejected: %v", err)
	}
	if err := p.CheckPrice(decimal.NewFromInt(100)); err != nil {
		t.Errorf("maximum price rejected: %v", err)
	}
	if err := p.CheckPrice(decimal.NewFromFloat(2.49)); !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("below-minimum err = %v, want ErrPreconditionFailed", err)
	}
}

func TestExpiryWindow_PerUrgency(t *testing.T) {
	p := testPolicy()
	cases := []struct {
		urgency string
		want    time.Duration
	}{
		{models.UrgencyStandard, 72 * time.Hour},
		{models.UrgencyExpress, 24 * time.Hour},
		{models.UrgencyPriority, 6 * time.Hour},
	}
	for _, tc := range cases {
		if got := p.ExpiryWindow(tc.urgency); got != tc.want {
			t.Errorf("ExpiryWindow(%s) = %s, want %s", tc.urgency, got, tc.want)
		}
	}
}

func TestProofRequired_ByType(t *testing.T) {
	p := testPolicy()
	if !p.ProofRequired(models.GigTypePrescription) || !p.ProofRequired(models.GigTypeParcel) {
		t.Error("prescriptions and parcels must require proof")
	}
	if p.ProofRequired(models.GigTypePaperwork) || p.ProofRequired(models.GigTypeShopping) {
		t.Error("paperwork and shopping must not require proof")
	}
}
