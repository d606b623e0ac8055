package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/newatumwa/backend/internal/models"
	"github.com/newatumwa/backend/internal/services"
)

// UserRepo is the user store interface for directory and moderation ops.
type UserRepo interface {
	List(ctx context.Context) ([]*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Verify(ctx context.Context, id uuid.UUID) error
	Suspend(ctx context.Context, id uuid.UUID, reason string) error
	Unsuspend(ctx context.Context, id uuid.UUID) error
	Ban(ctx context.Context, id uuid.UUID, reason string) error
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
	UpdateLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error
}

// Service is the user directory: admin moderation plus the self-service
// presence and location updates messengers report while working.
type Service interface {
	ListUsers(ctx context.Context, actor *models.User) ([]*models.User, error)
	VerifyMessenger(ctx context.Context, actor *models.User, id uuid.UUID) error
	SuspendUser(ctx context.Context, actor *models.User, id uuid.UUID, reason string) error
	UnsuspendUser(ctx context.Context, actor *models.User, id uuid.UUID) error
	BanUser(ctx context.Context, actor *models.User, id uuid.UUID, reason string) error
	SetOnline(ctx context.Context, actor *models.User, online bool) error
	ReportLocation(ctx context.Context, actor *models.User, lat, lng float64) error
}

type service struct {
	repo UserRepo
}

func NewService(repo UserRepo) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func staff(u *models.User) bool {
	return u.Role == models.RoleAdmin || u.Role == models.RoleSupport
}

func (s *service) ListUsers(ctx context.Context, actor *models.User) ([]*models.User, error) {
	if !staff(actor) {
		return nil, services.ErrUnauthorized
	}
	return s.repo.List(ctx)
}

// VerifyMessenger clears a messenger to accept gigs. Admin only; support can
// look but not moderate.
func (s *service) VerifyMessenger(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if actor.Role != models.RoleAdmin {
		return services.ErrUnauthorized
	}
	return s.repo.Verify(ctx, id)
}

func (s *service) SuspendUser(ctx context.Context, actor *models.User, id uuid.UUID, reason string) error {
	if actor.Role != models.RoleAdmin {
		return services.ErrUnauthorized
	}
	return s.repo.Suspend(ctx, id, reason)
}

func (s *service) UnsuspendUser(ctx context.Context, actor *models.User, id uuid.UUID) error {
	if actor.Role != models.RoleAdmin {
		return services.ErrUnauthorized
	}
	return s.repo.Unsuspend(ctx, id)
}

// BanUser is permanent; the row stays for audit but the account is dead.
func (s *service) BanUser(ctx context.Context, actor *models.User, id uuid.UUID, reason string) error {
	if actor.Role != models.RoleAdmin {
		return services.ErrUnauthorized
	}
	return s.repo.Ban(ctx, id, reason)
}

func (s *service) SetOnline(ctx context.Context, actor *models.User, online bool) error {
	return s.repo.SetOnline(ctx, actor.ID, online)
}

func (s *service) ReportLocation(ctx context.Context, actor *models.User, lat, lng float64) error {
	if actor.Role != models.RoleMessenger {
		return services.ErrUnauthorized
	}
	return s.repo.UpdateLocation(ctx, actor.ID, lat, lng)
}
