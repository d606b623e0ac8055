package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/newatumwa/backend/internal/models"
)

// ChecklistGigRepo is the gig repository interface used by fulfilment tracking.
type ChecklistGigRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	Checklist(ctx context.Context, gigID uuid.UUID) ([]*models.ChecklistItem, error)
	SetChecklistItem(ctx context.Context, gigID, itemID uuid.UUID, completed bool) (bool, error)
	Stops(ctx context.Context, gigID uuid.UUID) ([]*models.Stop, error)
	GetStop(ctx context.Context, stopID uuid.UUID) (*models.Stop, error)
	CompleteStop(ctx context.Context, stopID uuid.UUID) error
	AddProof(ctx context.Context, p *models.DeliveryProof) error
	Proofs(ctx context.Context, stopID uuid.UUID) ([]*models.DeliveryProof, error)
}

// Fulfilment covers the assignee's in-flight work: checklist toggles, stop
// completion, and delivery proofs. Everything here is assignee-only and only
// while the gig is actively being fulfilled.
type Fulfilment struct {
	Gigs   ChecklistGigRepo
	Policy *Policy
}

func NewFulfilment(gigs ChecklistGigRepo, policy *Policy) *Fulfilment {
	return &Fulfilment{Gigs: gigs, Policy: policy}
}

func activeStatus(status string) bool {
	return status == models.GigStatusInProgress || status == models.GigStatusPurchased
}

func (f *Fulfilment) assignedGig(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error) {
	g, err := f.Gigs.GetByID(ctx, gigID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if g.AssignedTo == nil || *g.AssignedTo != actor.ID || !actor.CanAct() {
		return nil, ErrUnauthorized
	}
	if !activeStatus(g.Status) {
		return nil, fmt.Errorf("%w: gig is %s", ErrInvalidTransition, g.Status)
	}
	return g, nil
}

// ToggleItem flips a checklist item. Items freeze once the gig is delivered.
func (f *Fulfilment) ToggleItem(ctx context.Context, actor *models.User, gigID, itemID uuid.UUID, completed bool) error {
	if _, err := f.assignedGig(ctx, actor, gigID); err != nil {
		return err
	}
	ok, err := f.Gigs.SetChecklistItem(ctx, gigID, itemID, completed)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// CompleteStop marks a waypoint done. A dropoff on a proof-carrying gig type
// cannot close without at least one proof attached.
func (f *Fulfilment) CompleteStop(ctx context.Context, actor *models.User, stopID uuid.UUID) error {
	stop, err := f.Gigs.GetStop(ctx, stopID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	g, err := f.assignedGig(ctx, actor, stop.GigID)
	if err != nil {
		return err
	}
	if stop.Kind == models.StopKindDropoff && f.Policy.ProofRequired(g.Type) {
		proofs, err := f.Gigs.Proofs(ctx, stopID)
		if err != nil {
			return err
		}
		if len(proofs) == 0 {
			return fmt.Errorf("%w: dropoff needs delivery proof before completion", ErrPreconditionFailed)
		}
	}
	return f.Gigs.CompleteStop(ctx, stopID)
}

// AddProof appends a proof record to a stop. Proofs are never edited or
// removed; a correction is another record.
func (f *Fulfilment) AddProof(ctx context.Context, actor *models.User, stopID uuid.UUID, proofType string, url, data *string) (*models.DeliveryProof, error) {
	switch proofType {
	case models.ProofPhoto, models.ProofSignature, models.ProofQRCode, models.ProofBarcode, models.ProofNotes:
	default:
		return nil, fmt.Errorf("%w: unknown proof type %q", ErrPreconditionFailed, proofType)
	}
	stop, err := f.Gigs.GetStop(ctx, stopID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := f.assignedGig(ctx, actor, stop.GigID); err != nil {
		return nil, err
	}
	p := &models.DeliveryProof{ID: uuid.New(), StopID: stopID, Type: proofType, URL: url, Data: data}
	if err := f.Gigs.AddProof(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Progress returns the gig's stops (with proofs) and checklist for either
// party to the gig, or staff.
func (f *Fulfilment) Progress(ctx context.Context, actor *models.User, gigID uuid.UUID) ([]*models.Stop, []*models.ChecklistItem, error) {
	g, err := f.Gigs.GetByID(ctx, gigID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	party := g.PostedBy == actor.ID || (g.AssignedTo != nil && *g.AssignedTo == actor.ID)
	staff := actor.Role == models.RoleAdmin || actor.Role == models.RoleSupport
	if !party && !staff {
		return nil, nil, ErrUnauthorized
	}
	stops, err := f.Gigs.Stops(ctx, gigID)
	if err != nil {
		return nil, nil, err
	}
	for _, s := range stops {
		if s.Proofs, err = f.Gigs.Proofs(ctx, s.ID); err != nil {
			return nil, nil, err
		}
	}
	items, err := f.Gigs.Checklist(ctx, gigID)
	if err != nil {
		return nil, nil, err
	}
	return stops, items, nil
}
