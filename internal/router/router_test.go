package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/models"
)

func noopMW(next http.Handler) http.Handler { return next }

// passthroughAuth injects a fixed user, standing in for the JWT middleware.
func passthroughAuth(u *models.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), u)))
		})
	}
}

// The staff and admin routes must reject lower roles at the router, before any
// handler runs. Handlers are left nil on purpose: reaching one would panic,
// so a 403 also proves the role gate short-circuited.
func TestStaffRoutes_RejectLowerRoles(t *testing.T) {
	gigID := uuid.New().String()
	userID := uuid.New().String()

	cases := []struct {
		name   string
		role   string
		method string
		path   string
	}{
		{"client cannot list users", models.RoleClient, "GET", "/v1/users"},
		{"messenger cannot list users", models.RoleMessenger, "GET", "/v1/users"},
		{"client cannot broadcast", models.RoleClient, "POST", "/v1/broadcasts"},
		{"client cannot reverse settlement", models.RoleClient, "POST", "/v1/gigs/" + gigID + "/reverse"},
		{"support cannot reverse settlement", models.RoleSupport, "POST", "/v1/gigs/" + gigID + "/reverse"},
		{"support cannot moderate", models.RoleSupport, "POST", "/v1/users/" + userID + "/suspend"},
		{"messenger cannot moderate", models.RoleMessenger, "POST", "/v1/users/" + userID + "/ban"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &models.User{ID: uuid.New(), Role: tc.role, IsVerified: true}
			h := New(Deps{AuthMW: passthroughAuth(u), PriceMW: noopMW})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))

			if rec.Code != http.StatusForbidden {
				t.Errorf("%s %s as %s: status = %d, want 403", tc.method, tc.path, tc.role, rec.Code)
			}
		})
	}
}

func TestHealth_Unauthenticated(t *testing.T) {
	h := New(Deps{AuthMW: noopMW, PriceMW: noopMW})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
