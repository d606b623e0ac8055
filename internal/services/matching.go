package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/newatumwa/backend/internal/models"
)

// MatchingGigRepo is the gig repository interface used for assignment.
type MatchingGigRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	TryAssign(ctx context.Context, gigID, messengerID uuid.UUID) (bool, error)
}

// ThreadOpener creates (or finds) the chat thread between client and
// messenger once a gig is assigned.
type ThreadOpener interface {
	GetOrCreateThread(ctx context.Context, a, b uuid.UUID, gigID *uuid.UUID) (*models.ChatThread, error)
}

// Matcher arbitrates concurrent acceptance of open gigs. The store-level
// compare-and-swap guarantees at most one messenger wins; everyone else gets
// ErrAlreadyAssigned.
type Matcher struct {
	Gigs     MatchingGigRepo
	Threads  ThreadOpener
	Notifier Notifier
	Logger   *slog.Logger
}

func NewMatcher(gigs MatchingGigRepo, threads ThreadOpener, notifier Notifier, logger *slog.Logger) *Matcher {
	return &Matcher{Gigs: gigs, Threads: threads, Notifier: notifier, Logger: logger}
}

// Assign attempts to claim the gig for the messenger. On a lost race it
// re-reads once to distinguish "someone else got it" from a transient retry,
// then gives up with the accurate error.
func (m *Matcher) Assign(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error) {
	if actor.Role != models.RoleMessenger || !actor.IsVerified || !actor.CanAct() {
		return nil, ErrUnauthorized
	}

	pre, err := m.Gigs.GetByID(ctx, gigID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if pre.PostedBy == actor.ID {
		return nil, ErrUnauthorized
	}

	for attempt := 0; attempt < 2; attempt++ {
		ok, err := m.Gigs.TryAssign(ctx, gigID, actor.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			g, err := m.Gigs.GetByID(ctx, gigID)
			if err != nil {
				return nil, err
			}
			if _, err := m.Threads.GetOrCreateThread(ctx, g.PostedBy, actor.ID, &g.ID); err != nil {
				m.Logger.Error("open gig thread failed", "gig_id", gigID, "error", err)
			}
			m.Logger.Info("gig assigned", "gig_id", gigID, "messenger_id", actor.ID)
			if m.Notifier != nil {
				m.Notifier.GigEvent(ctx, g, EventAssigned, actor.ID)
			}
			return g, nil
		}

		g, err := m.Gigs.GetByID(ctx, gigID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if g.AssignedTo != nil {
			return nil, ErrAlreadyAssigned
		}
		if g.Status != models.GigStatusOpen {
			return nil, fmt.Errorf("%w: gig is %s", ErrInvalidTransition, g.Status)
		}
		// Status flapped back to open between the swap and the read; retry once.
	}
	return nil, ErrAlreadyAssigned
}
