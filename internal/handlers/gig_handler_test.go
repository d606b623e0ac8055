package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/newatumwa/backend/internal/ledger"
	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/models"
	"github.com/newatumwa/backend/internal/services"
)

// ------ Mocks ------

type mockGigRepo struct {
	mu   sync.Mutex
	gigs map[uuid.UUID]*models.Gig
}

func newMockGigRepo() *mockGigRepo { return &mockGigRepo{gigs: make(map[uuid.UUID]*models.Gig)} }

func (m *mockGigRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gigs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *g
	return &cp, nil
}

func (m *mockGigRepo) ListOpen(_ context.Context) ([]*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Gig
	for _, g := range m.gigs {
		if g.Status == models.GigStatusOpen {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockGigRepo) ListByPoster(_ context.Context, posterID uuid.UUID) ([]*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Gig
	for _, g := range m.gigs {
		if g.PostedBy == posterID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockGigRepo) ListByAssignee(_ context.Context, assigneeID uuid.UUID) ([]*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Gig
	for _, g := range m.gigs {
		if g.AssignedTo != nil && *g.AssignedTo == assigneeID {
			out = append(out, g)
		}
	}
	return out, nil
}

// TryAssign gives the mock the same compare-and-swap the SQL repo has, so the
// real Matcher can run over it.
func (m *mockGigRepo) TryAssign(_ context.Context, gigID, messengerID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gigs[gigID]
	if !ok || g.Status != models.GigStatusOpen || g.AssignedTo != nil {
		return false, nil
	}
	g.Status = models.GigStatusInProgress
	g.AssignedTo = &messengerID
	return true, nil
}

type mockThreadOpener struct{ opened int }

func (m *mockThreadOpener) GetOrCreateThread(_ context.Context, a, b uuid.UUID, gigID *uuid.UUID) (*models.ChatThread, error) {
	m.opened++
	return &models.ChatThread{ID: uuid.New(), ParticipantA: a, ParticipantB: b, RelatedGigID: gigID}, nil
}

// ------ Helpers ------

func injectCtx(r *http.Request, u *models.User) *http.Request {
	return r.WithContext(middleware.WithUser(r.Context(), u))
}

func newHandler(repo *mockGigRepo) (*GigHandler, *mockThreadOpener) {
	threads := &mockThreadOpener{}
	return &GigHandler{
		Gigs:    repo,
		Matcher: services.NewMatcher(repo, threads, nil, slog.Default()),
		Logger:  slog.Default(),
	}, threads
}

func openGig(repo *mockGigRepo, posterID uuid.UUID) *models.Gig {
	g := &models.Gig{
		ID:       uuid.New(),
		Title:    "Fetch parcel",
		Type:     models.GigTypeParcel,
		Status:   models.GigStatusOpen,
		PostedBy: posterID,
	}
	repo.gigs[g.ID] = g
	return g
}

// ====== GET /v1/gigs ======

func TestListGigs_OpenBoard(t *testing.T) {
	repo := newMockGigRepo()
	client := &models.User{ID: uuid.New(), Role: models.RoleClient}
	openGig(repo, client.ID)
	draft := openGig(repo, client.ID)
	draft.Status = models.GigStatusDraft

	h, _ := newHandler(repo)
	req := injectCtx(httptest.NewRequest(http.MethodGet, "/v1/gigs", nil), &models.User{ID: uuid.New(), Role: models.RoleMessenger})
	rr := httptest.NewRecorder()
	h.ListGigs(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var got []*models.Gig
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("open gigs = %d, want 1 (drafts stay off the board)", len(got))
	}
}

func TestListGigs_MineByRole(t *testing.T) {
	repo := newMockGigRepo()
	client := &models.User{ID: uuid.New(), Role: models.RoleClient}
	messenger := &models.User{ID: uuid.New(), Role: models.RoleMessenger}
	g := openGig(repo, client.ID)
	g.Status = models.GigStatusInProgress
	g.AssignedTo = &messenger.ID

	h, _ := newHandler(repo)
	for _, tc := range []struct {
		user *models.User
		want int
	}{
		{client, 1},
		{messenger, 1},
		{&models.User{ID: uuid.New(), Role: models.RoleClient}, 0},
	} {
		req := injectCtx(httptest.NewRequest(http.MethodGet, "/v1/gigs?view=mine", nil), tc.user)
		rr := httptest.NewRecorder()
		h.ListGigs(rr, req)
		var got []*models.Gig
		if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != tc.want {
			t.Errorf("role %s: gigs = %d, want %d", tc.user.Role, len(got), tc.want)
		}
	}
}

// ====== GET /v1/gigs/{id} ======

func TestGetGig(t *testing.T) {
	repo := newMockGigRepo()
	client := &models.User{ID: uuid.New(), Role: models.RoleClient}
	g := openGig(repo, client.ID)
	h, _ := newHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/v1/gigs/"+g.ID.String(), nil)
	req.SetPathValue("id", g.ID.String())
	rr := httptest.NewRecorder()
	h.GetGig(rr, injectCtx(req, client))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var got models.Gig
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != g.ID {
		t.Errorf("gig id = %s, want %s", got.ID, g.ID)
	}
}

func TestGetGig_NotFound(t *testing.T) {
	h, _ := newHandler(newMockGigRepo())

	req := httptest.NewRequest(http.MethodGet, "/v1/gigs/"+uuid.NewString(), nil)
	req.SetPathValue("id", uuid.NewString())
	rr := httptest.NewRecorder()
	h.GetGig(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestGetGig_BadID(t *testing.T) {
	h, _ := newHandler(newMockGigRepo())

	req := httptest.NewRequest(http.MethodGet, "/v1/gigs/not-a-uuid", nil)
	req.SetPathValue("id", "not-a-uuid")
	rr := httptest.NewRecorder()
	h.GetGig(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

// ====== POST /v1/gigs/{id}/accept ======

func acceptReq(gigID uuid.UUID, u *models.User) *http.Request {
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/gigs/%s/accept", gigID), nil)
	req.SetPathValue("id", gigID.String())
	return injectCtx(req, u)
}

func TestAccept_Wins(t *testing.T) {
	repo := newMockGigRepo()
	g := openGig(repo, uuid.New())
	h, threads := newHandler(repo)
	msgr := &models.User{ID: uuid.New(), Role: models.RoleMessenger, IsVerified: true}

	rr := httptest.NewRecorder()
	h.Accept(rr, acceptReq(g.ID, msgr))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body)
	}
	var got models.Gig
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.AssignedTo == nil || *got.AssignedTo != msgr.ID {
		t.Errorf("assigned_to = %v, want %s", got.AssignedTo, msgr.ID)
	}
	if threads.opened != 1 {
		t.Errorf("threads opened = %d, want 1", threads.opened)
	}
}

func TestAccept_AlreadyAssigned(t *testing.T) {
	repo := newMockGigRepo()
	g := openGig(repo, uuid.New())
	h, _ := newHandler(repo)

	first := &models.User{ID: uuid.New(), Role: models.RoleMessenger, IsVerified: true}
	rr := httptest.NewRecorder()
	h.Accept(rr, acceptReq(g.ID, first))
	if rr.Code != http.StatusOK {
		t.Fatalf("first accept status = %d, want 200", rr.Code)
	}

	second := &models.User{ID: uuid.New(), Role: models.RoleMessenger, IsVerified: true}
	rr = httptest.NewRecorder()
	h.Accept(rr, acceptReq(g.ID, second))
	if rr.Code != http.StatusConflict {
		t.Fatalf("second accept status = %d, want 409: %s", rr.Code, rr.Body)
	}
}

func TestAccept_UnverifiedMessenger(t *testing.T) {
	repo := newMockGigRepo()
	g := openGig(repo, uuid.New())
	h, _ := newHandler(repo)

	rr := httptest.NewRecorder()
	h.Accept(rr, acceptReq(g.ID, &models.User{ID: uuid.New(), Role: models.RoleMessenger}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestAccept_MissingGig(t *testing.T) {
	h, _ := newHandler(newMockGigRepo())

	rr := httptest.NewRecorder()
	h.Accept(rr, acceptReq(uuid.New(), &models.User{ID: uuid.New(), Role: models.RoleMessenger, IsVerified: true}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

// ====== Error taxonomy ======

func TestWriteDomainError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrUnauthorized, http.StatusForbidden},
		{services.ErrAlreadyAssigned, http.StatusConflict},
		{services.ErrInvalidTransition, http.StatusConflict},
		{ledger.ErrAlreadySettled, http.StatusConflict},
		{services.ErrPreconditionFailed, http.StatusUnprocessableEntity},
		{ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{ledger.ErrNothingToReverse, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", services.ErrPreconditionFailed), http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		writeDomainError(rr, slog.Default(), "test", tc.err)
		if rr.Code != tc.want {
			t.Errorf("writeDomainError(%v) = %d, want %d", tc.err, rr.Code, tc.want)
		}
	}
}
