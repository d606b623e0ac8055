package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/newatumwa/backend/internal/models"
	"github.com/newatumwa/backend/internal/services"
)

// ---- Mocks ----

type memUserRepo struct {
	users map[uuid.UUID]*models.User
}

func newMemUserRepo(users ...*models.User) *memUserRepo {
	m := &memUserRepo{users: make(map[uuid.UUID]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUserRepo) List(context.Context) ([]*models.User, error) {
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return m.users[id], nil
}

func (m *memUserRepo) Verify(_ context.Context, id uuid.UUID) error {
	m.users[id].IsVerified = true
	return nil
}

func (m *memUserRepo) Suspend(_ context.Context, id uuid.UUID, reason string) error {
	m.users[id].IsSuspended = true
	m.users[id].SuspensionReason = &reason
	return nil
}

func (m *memUserRepo) Unsuspend(_ context.Context, id uuid.UUID) error {
	m.users[id].IsSuspended = false
	m.users[id].SuspensionReason = nil
	return nil
}

func (m *memUserRepo) Ban(_ context.Context, id uuid.UUID, reason string) error {
	m.users[id].IsBanned = true
	m.users[id].BanReason = &reason
	return nil
}

func (m *memUserRepo) SetOnline(_ context.Context, id uuid.UUID, online bool) error {
	m.users[id].IsOnline = online
	return nil
}

func (m *memUserRepo) UpdateLocation(_ context.Context, id uuid.UUID, lat, lng float64) error {
	m.users[id].Lat = &lat
	m.users[id].Lng = &lng
	return nil
}

// ---- Tests ----

func TestListUsers_StaffOnly(t *testing.T) {
	repo := newMemUserRepo(&models.User{ID: uuid.New(), Role: models.RoleClient})
	svc := NewService(repo)

	for _, role := range []string{models.RoleAdmin, models.RoleSupport} {
		if _, err := svc.ListUsers(context.Background(), &models.User{Role: role}); err != nil {
			t.Errorf("ListUsers as %s: %v", role, err)
		}
	}
	if _, err := svc.ListUsers(context.Background(), &models.User{Role: models.RoleClient}); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("client err = %v, want ErrUnauthorized", err)
	}
}

func TestVerifyMessenger_AdminOnly(t *testing.T) {
	msgr := &models.User{ID: uuid.New(), Role: models.RoleMessenger}
	repo := newMemUserRepo(msgr)
	svc := NewService(repo)

	// Support can read the directory but not moderate.
	if err := svc.VerifyMessenger(context.Background(), &models.User{Role: models.RoleSupport}, msgr.ID); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("support err = %v, want ErrUnauthorized", err)
	}
	if err := svc.VerifyMessenger(context.Background(), &models.User{Role: models.RoleAdmin}, msgr.ID); err != nil {
		t.Fatalf("admin VerifyMessenger: %v", err)
	}
	if !msgr.IsVerified {
		t.Error("messenger not verified")
	}
}

func TestSuspendUnsuspend(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleMessenger}
	repo := newMemUserRepo(u)
	svc := NewService(repo)
	admin := &models.User{Role: models.RoleAdmin}

	if err := svc.SuspendUser(context.Background(), admin, u.ID, "late deliveries"); err != nil {
		t.Fatalf("SuspendUser: %v", err)
	}
	if !u.IsSuspended || u.SuspensionReason == nil {
		t.Error("user not suspended with a reason")
	}
	if u.CanAct() {
		t.Error("suspended user can still act")
	}

	if err := svc.UnsuspendUser(context.Background(), admin, u.ID); err != nil {
		t.Fatalf("UnsuspendUser: %v", err)
	}
	if u.IsSuspended || !u.CanAct() {
		t.Error("user still suspended after unsuspend")
	}
}

func TestBanUser(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleClient}
	repo := newMemUserRepo(u)
	svc := NewService(repo)

	if err := svc.BanUser(context.Background(), &models.User{Role: models.RoleSupport}, u.ID, "fraud"); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("support ban err = %v, want ErrUnauthorized", err)
	}
	if err := svc.BanUser(context.Background(), &models.User{Role: models.RoleAdmin}, u.ID, "fraud"); err != nil {
		t.Fatalf("BanUser: %v", err)
	}
	if !u.IsBanned || u.CanAct() {
		t.Error("banned user can still act")
	}
}

func TestReportLocation_MessengerOnly(t *testing.T) {
	msgr := &models.User{ID: uuid.New(), Role: models.RoleMessenger}
	client := &models.User{ID: uuid.New(), Role: models.RoleClient}
	repo := newMemUserRepo(msgr, client)
	svc := NewService(repo)

	if err := svc.ReportLocation(context.Background(), client, -17.82, 31.05); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("client err = %v, want ErrUnauthorized", err)
	}
	if err := svc.ReportLocation(context.Background(), msgr, -17.82, 31.05); err != nil {
		t.Fatalf("ReportLocation: %v", err)
	}
	if msgr.Lat == nil || *msgr.Lat != -17.82 {
		t.Errorf("lat = %v, want -17.82", msgr.Lat)
	}
}

func TestSetOnline(t *testing.T) {
	u := &models.User{ID: uuid.New(), Role: models.RoleMessenger}
	repo := newMemUserRepo(u)
	svc := NewService(repo)

	if err := svc.SetOnline(context.Background(), u, true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if !u.IsOnline {
		t.Error("user not marked online")
	}
}
