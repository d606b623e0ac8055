package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/newatumwa/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubValidator struct {
	id   uuid.UUID
	role string
	err  error
}

func (s *stubValidator) ValidateToken(context.Context, string) (uuid.UUID, string, error) {
	return s.id, s.role, s.err
}

type stubLoader struct {
	user *models.User
	err  error
}

func (s *stubLoader) GetByID(context.Context, uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

// ---------------------------------------------------------------------------
// Auth
// ---------------------------------------------------------------------------

func TestAuth_InjectsUser(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleClient}
	mw := Auth(&stubValidator{id: u.ID, role: u.Role}, &stubLoader{user: u})

	var got *models.User
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromCtx(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("ctx user = %v, want %s", got, u.ID)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	mw := Auth(&stubValidator{}, &stubLoader{})
	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached without credentials")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	mw := Auth(&stubValidator{err: errors.New("expired")}, &stubLoader{})
	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestAuth_BannedUser(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleMessenger, IsBanned: true}
	mw := Auth(&stubValidator{id: u.ID, role: u.Role}, &stubLoader{user: u})
	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached by a banned user")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// RequireRole
// ---------------------------------------------------------------------------

func TestRequireRole(t *testing.T) {
	mw := RequireRole(models.RoleAdmin, models.RoleSupport)
	ok := false
	h := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { ok = true }))

	// No user in context.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/users", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rr.Code)
	}

	// Wrong role.
	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req = req.WithContext(WithUser(req.Context(), &models.User{Role: models.RoleClient}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("client status = %d, want 403", rr.Code)
	}

	// Allowed role.
	req = httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	req = req.WithContext(WithUser(req.Context(), &models.User{Role: models.RoleSupport}))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !ok {
		t.Fatalf("support status = %d (handler ran: %v), want 200", rr.Code, ok)
	}
}
