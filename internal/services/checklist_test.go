package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/newatumwa/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// memFulfilmentRepo layers the checklist/stop/proof operations over memGigRepo.
type memFulfilmentRepo struct {
	*memGigRepo
}

func (m *memFulfilmentRepo) Checklist(_ context.Context, gigID uuid.UUID) ([]*models.ChecklistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checklist[gigID], nil
}

func (m *memFulfilmentRepo) SetChecklistItem(_ context.Context, gigID, itemID uuid.UUID, completed bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.checklist[gigID] {
		if c.ID == itemID {
			c.Completed = completed
			return true, nil
		}
	}
	return false, nil
}

func (m *memFulfilmentRepo) GetStop(_ context.Context, stopID uuid.UUID) (*models.Stop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stops := range m.stops {
		for _, s := range stops {
			if s.ID == stopID {
				return s, nil
			}
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memFulfilmentRepo) CompleteStop(_ context.Context, stopID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stops := range m.stops {
		for _, s := range stops {
			if s.ID == stopID {
				now := time.Now()
				s.Completed = true
				s.CompletedAt = &now
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *memFulfilmentRepo) AddProof(_ context.Context, p *models.DeliveryProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofs[p.StopID] = append(m.proofs[p.StopID], p)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fulfilmentFixture struct {
	svc       *Fulfilment
	repo      *memFulfilmentRepo
	client    *models.User
	messenger *models.User
}

func newFulfilmentFixture(t *testing.T, gigType string) (*fulfilmentFixture, *models.Gig) {
	t.Helper()
	repo := &memFulfilmentRepo{memGigRepo: newMemGigRepo()}
	client := &models.User{ID: uuid.New(), Role: models.RoleClient, IsVerified: true}
	messenger := &models.User{ID: uuid.New(), Role: models.RoleMessenger, IsVerified: true}

	gigID := uuid.New()
	g := &models.Gig{
		ID:       gigID,
		Title:    "Deliver",
		Type:     gigType,
		Status:   models.GigStatusInProgress,
		PostedBy: client.ID,
		AssignedTo: &messenger.ID,
		Stops: []*models.Stop{
			{ID: uuid.New(), GigID: gigID, Kind: models.StopKindPickup, Location: "A"},
			{ID: uuid.New(), GigID: gigID, Kind: models.StopKindDropoff, Location: "B"},
		},
		Checklist: []*models.ChecklistItem{
			{ID: uuid.New(), Text: "Verify contents", Required: true},
		},
	}
	if err := repo.Create(context.Background(), g); err != nil {
		t.Fatalf("Create: %v", err)
	}
	svc := NewFulfilment(repo, testPolicy())
	return &fulfilmentFixture{svc: svc, repo: repo, client: client, messenger: messenger}, g
}

func dropoff(g *models.Gig) *models.Stop {
	for _, s := range g.Stops {
		if s.Kind == models.StopKindDropoff {
			return s
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Checklist
// ---------------------------------------------------------------------------

func TestToggleItem_AssigneeOnly(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypeShopping)
	itemID := g.Checklist[0].ID

	if err := f.svc.ToggleItem(context.Background(), f.client, g.ID, itemID, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("poster toggle err = %v, want ErrUnauthorized", err)
	}
	if err := f.svc.ToggleItem(context.Background(), f.messenger, g.ID, itemID, true); err != nil {
		t.Fatalf("assignee toggle: %v", err)
	}
	if !f.repo.checklist[g.ID][0].Completed {
		t.Error("item not marked completed")
	}

	// Toggling back off is allowed while the gig is active.
	if err := f.svc.ToggleItem(context.Background(), f.messenger, g.ID, itemID, false); err != nil {
		t.Fatalf("untoggle: %v", err)
	}
}

func TestToggleItem_FrozenAfterDelivered(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypeShopping)
	f.repo.swap(g.ID, []string{models.GigStatusInProgress}, models.GigStatusDelivered)

	err := f.svc.ToggleItem(context.Background(), f.messenger, g.ID, g.Checklist[0].ID, true)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestToggleItem_UnknownItem(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypeShopping)

	if err := f.svc.ToggleItem(context.Background(), f.messenger, g.ID, uuid.New(), true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Stops & proofs
// ---------------------------------------------------------------------------

func TestCompleteStop_DropoffNeedsProof(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypePrescription)
	stop := dropoff(g)

	err := f.svc.CompleteStop(context.Background(), f.messenger, stop.ID)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("err = %v, want ErrPreconditionFailed", err)
	}

	if _, err := f.svc.AddProof(context.Background(), f.messenger, stop.ID, models.ProofSignature, nil, nil); err != nil {
		t.Fatalf("AddProof: %v", err)
	}
	if err := f.svc.CompleteStop(context.Background(), f.messenger, stop.ID); err != nil {
		t.Fatalf("CompleteStop with proof: %v", err)
	}
}

func TestCompleteStop_PickupNeedsNoProof(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypePrescription)

	if err := f.svc.CompleteStop(context.Background(), f.messenger, g.Stops[0].ID); err != nil {
		t.Fatalf("CompleteStop: %v", err)
	}
}

func TestCompleteStop_NoProofNeededForShopping(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypeShopping)

	if err := f.svc.CompleteStop(context.Background(), f.messenger, dropoff(g).ID); err != nil {
		t.Fatalf("CompleteStop: %v", err)
	}
}

func TestAddProof_UnknownType(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypeParcel)

	_, err := f.svc.AddProof(context.Background(), f.messenger, dropoff(g).ID, "voice_note", nil, nil)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("err = %v, want ErrPreconditionFailed", err)
	}
}

func TestAddProof_AppendOnly(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypeParcel)
	stop := dropoff(g)

	for _, pt := range []string{models.ProofPhoto, models.ProofNotes} {
		if _, err := f.svc.AddProof(context.Background(), f.messenger, stop.ID, pt, nil, nil); err != nil {
			t.Fatalf("AddProof(%s): %v", pt, err)
		}
	}
	if got := len(f.repo.proofs[stop.ID]); got != 2 {
		t.Errorf("proofs = %d, want 2", got)
	}
}

// ---------------------------------------------------------------------------
// Progress
// ---------------------------------------------------------------------------

func TestProgress_PartiesAndStaff(t *testing.T) {
	f, g := newFulfilmentFixture(t, models.GigTypeParcel)

	for _, u := range []*models.User{
		f.client,
		f.messenger,
		{ID: uuid.New(), Role: models.RoleSupport},
	} {
		stops, items, err := f.svc.Progress(context.Background(), u, g.ID)
		if err != nil {
			t.Fatalf("Progress as %s: %v", u.Role, err)
		}
		if len(stops) != 2 || len(items) != 1 {
			t.Errorf("stops=%d items=%d, want 2/1", len(stops), len(items))
		}
	}

	stranger := &models.User{ID: uuid.New(), Role: models.RoleClient}
	if _, _, err := f.svc.Progress(context.Background(), stranger, g.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger err = %v, want ErrUnauthorized", err)
	}
}
