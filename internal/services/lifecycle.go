package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/ledger"
	"github.com/newatumwa/backend/internal/models"
)

// Gig lifecycle events, as emitted to the notification coordinator.
const (
	EventPublished = "published"
	EventAssigned  = "assigned"
	EventPurchased = "purchased"
	EventDelivered = "delivered"
	EventCompleted = "completed"
	EventVerified  = "verified"
	EventCancelled = "cancelled"
	EventExpired   = "expired"
	EventRepriced  = "repriced"
	EventTipped    = "tipped"
)

// LifecycleGigRepo is the gig repository interface used by the lifecycle service.
type LifecycleGigRepo interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, g *models.Gig) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	SwapStatus(ctx context.Context, gigID uuid.UUID, from []string, to string) (bool, error)
	SwapStatusTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, from []string, to string) (bool, error)
	Rate(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, rating int, review *string) (bool, error)
	UpdatePriceTx(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, price decimal.Decimal) (bool, error)
	SetTip(ctx context.Context, tx pgx.Tx, gigID uuid.UUID, amount decimal.Decimal) error
	RequiredIncomplete(ctx context.Context, gigID uuid.UUID) (int, error)
	Stops(ctx context.Context, gigID uuid.UUID) ([]*models.Stop, error)
	Proofs(ctx context.Context, stopID uuid.UUID) ([]*models.DeliveryProof, error)
	ListOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// LifecycleUserRepo is the user repository interface used by the lifecycle service.
type LifecycleUserRepo interface {
	ApplyRating(ctx context.Context, tx pgx.Tx, id uuid.UUID, rating int) error
	IncrementCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// Notifier receives lifecycle events for fan-out into chat and notifications.
// Delivery is best effort; a failing notifier never fails the transition.
type Notifier interface {
	GigEvent(ctx context.Context, gig *models.Gig, event string, actorID uuid.UUID)
}

// Lifecycle drives every gig status transition. All moves are conditional
// updates in the store, so concurrent callers race safely: exactly one wins
// and the rest get ErrInvalidTransition (or ErrAlreadySettled for repeat
// settlements).
type Lifecycle struct {
	Gigs     LifecycleGigRepo
	Users    LifecycleUserRepo
	Ledger   ledger.Service
	Policy   *Policy
	Notifier Notifier
	FeeRate  decimal.Decimal
	Logger   *slog.Logger
}

func NewLifecycle(
	gigs LifecycleGigRepo,
	users LifecycleUserRepo,
	ledgerSvc ledger.Service,
	policy *Policy,
	notifier Notifier,
	feeRate decimal.Decimal,
	logger *slog.Logger,
) *Lifecycle {
	return &Lifecycle{
		Gigs:     gigs,
		Users:    users,
		Ledger:   ledgerSvc,
		Policy:   policy,
		Notifier: notifier,
		FeeRate:  feeRate,
		Logger:   logger,
	}
}

func (l *Lifecycle) getGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	g, err := l.Gigs.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return g, err
}

func (l *Lifecycle) notify(ctx context.Context, g *models.Gig, event string, actorID uuid.UUID) {
	if l.Notifier != nil {
		l.Notifier.GigEvent(ctx, g, event, actorID)
	}
}

// CreateDraft validates and stores a new gig in draft. The expiry deadline is
// fixed here from the urgency tier; publishing does not move it.
func (l *Lifecycle) CreateDraft(ctx context.Context, actor *models.User, g *models.Gig) (*models.Gig, error) {
	if actor.Role != models.RoleClient || !actor.CanAct() {
		return nil, ErrUnauthorized
	}
	if err := l.Policy.ValidateNew(g); err != nil {
		return nil, err
	}
	g.ID = uuid.New()
	g.PostedBy = actor.ID
	g.Status = models.GigStatusDraft
	expires := time.Now().Add(l.Policy.ExpiryWindow(g.Urgency))
	g.ExpiresAt = &expires
	if err := l.Gigs.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create gig: %w", err)
	}
	return g, nil
}

// Publish moves the poster's draft onto the open board and escrows the full
// price from the poster's balance in the same transaction. Either both happen
// or neither does.
func (l *Lifecycle) Publish(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error) {
	g, err := l.getGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if g.PostedBy != actor.ID || !actor.CanAct() {
		return nil, ErrUnauthorized
	}

	tx, err := l.Gigs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := l.Gigs.SwapStatusTx(ctx, tx, gigID, []string{models.GigStatusDraft}, models.GigStatusOpen)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot publish from %s", ErrInvalidTransition, g.Status)
	}
	if err := l.Ledger.PlaceHold(ctx, tx, gigID, actor.ID, g.Price); err != nil {
		return nil, fmt.Errorf("place escrow hold: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	g.Status = models.GigStatusOpen
	l.Logger.Info("gig published", "gig_id", gigID, "price", g.Price)
	l.notify(ctx, g, EventPublished, actor.ID)
	return g, nil
}

// MarkPurchased records that the messenger has bought the requested items.
// Only meaningful for gig types with a purchase leg, but harmless elsewhere.
func (l *Lifecycle) MarkPurchased(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error) {
	g, err := l.requireAssignee(ctx, actor, gigID)
	if err != nil {
		return nil, err
	}
	ok, err := l.Gigs.SwapStatus(ctx, gigID, []string{models.GigStatusInProgress}, models.GigStatusPurchased)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot mark purchased from %s", ErrInvalidTransition, g.Status)
	}
	g.Status = models.GigStatusPurchased
	l.notify(ctx, g, EventPurchased, actor.ID)
	return g, nil
}

// MarkDelivered is gated twice: every required checklist item must be done,
// and for proof-carrying gig types every dropoff needs at least one proof.
func (l *Lifecycle) MarkDelivered(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error) {
	g, err := l.requireAssignee(ctx, actor, gigID)
	if err != nil {
		return nil, err
	}

	open, err := l.Gigs.RequiredIncomplete(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, fmt.Errorf("%w: %d required checklist items incomplete", ErrPreconditionFailed, open)
	}
	if l.Policy.ProofRequired(g.Type) {
		if err := l.checkDropoffProofs(ctx, gigID); err != nil {
			return nil, err
		}
	}

	ok, err := l.Gigs.SwapStatus(ctx, gigID,
		[]string{models.GigStatusInProgress, models.GigStatusPurchased}, models.GigStatusDelivered)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot mark delivered from %s", ErrInvalidTransition, g.Status)
	}
	g.Status = models.GigStatusDelivered
	l.notify(ctx, g, EventDelivered, actor.ID)
	return g, nil
}

func (l *Lifecycle) checkDropoffProofs(ctx context.Context, gigID uuid.UUID) error {
	stops, err := l.Gigs.Stops(ctx, gigID)
	if err != nil {
		return err
	}
	for _, s := range stops {
		if s.Kind != models.StopKindDropoff {
			continue
		}
		proofs, err := l.Gigs.Proofs(ctx, s.ID)
		if err != nil {
			return err
		}
		if len(proofs) == 0 {
			return fmt.Errorf("%w: dropoff %s has no delivery proof", ErrPreconditionFailed, s.ID)
		}
	}
	return nil
}

// ConfirmDelivery is the poster acknowledging receipt. The poster may confirm
// while the gig is still in flight (receiving the goods in person without the
// messenger marking delivered first), so any assigned active state qualifies.
// The status swap, the escrow release to the messenger, and the messenger's
// completed-gig counter all commit in one transaction; repeating the call
// yields ErrAlreadySettled and moves no money.
func (l *Lifecycle) ConfirmDelivery(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error) {
	g, err := l.getGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if g.PostedBy != actor.ID {
		return nil, ErrUnauthorized
	}
	if g.AssignedTo == nil {
		return nil, fmt.Errorf("%w: gig has no assignee", ErrInvalidTransition)
	}

	tx, err := l.Gigs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := l.Gigs.SwapStatusTx(ctx, tx, gigID,
		[]string{models.GigStatusInProgress, models.GigStatusPurchased, models.GigStatusDelivered},
		models.GigStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		switch g.Status {
		case models.GigStatusCompleted, models.GigStatusVerified:
			return nil, ledger.ErrAlreadySettled
		default:
			return nil, fmt.Errorf("%w: cannot confirm from %s", ErrInvalidTransition, g.Status)
		}
	}
	if err := l.Ledger.Release(ctx, tx, gigID, *g.AssignedTo, l.FeeRate); err != nil {
		return nil, fmt.Errorf("release escrow: %w", err)
	}
	if err := l.Users.IncrementCompleted(ctx, tx, *g.AssignedTo); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	g.Status = models.GigStatusCompleted
	l.Logger.Info("gig completed, escrow released", "gig_id", gigID, "messenger_id", *g.AssignedTo)
	l.notify(ctx, g, EventCompleted, actor.ID)
	return g, nil
}

// Rate records the poster's 1-5 rating, folds it into the messenger's running
// average, and advances the gig to verified. One rating per gig; the
// conditional update rejects a second attempt.
func (l *Lifecycle) Rate(ctx context.Context, actor *models.User, gigID uuid.UUID, rating int, review *string) (*models.Gig, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be 1-5", ErrPreconditionFailed)
	}
	g, err := l.getGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if g.PostedBy != actor.ID {
		return nil, ErrUnauthorized
	}
	if g.AssignedTo == nil {
		return nil, fmt.Errorf("%w: gig has no assignee", ErrInvalidTransition)
	}

	tx, err := l.Gigs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := l.Gigs.Rate(ctx, tx, gigID, rating, review)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot rate from %s", ErrInvalidTransition, g.Status)
	}
	if err := l.Users.ApplyRating(ctx, tx, *g.AssignedTo, rating); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	g.Status = models.GigStatusVerified
	g.ClientRating = &rating
	g.ClientReview = review
	l.notify(ctx, g, EventVerified, actor.ID)
	return g, nil
}

// Cancel withdraws a gig. The poster may cancel while it is still draft or
// open; admins may cancel any non-terminal gig. Escrowed funds, if any, go
// back to the poster.
func (l *Lifecycle) Cancel(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error) {
	g, err := l.getGig(ctx, gigID)
	if err != nil {
		return nil, err
	}

	var from []string
	switch {
	case actor.Role == models.RoleAdmin:
		from = []string{
			models.GigStatusDraft, models.GigStatusOpen, models.GigStatusInProgress,
			models.GigStatusPurchased, models.GigStatusDelivered,
		}
	case g.PostedBy == actor.ID:
		from = []string{models.GigStatusDraft, models.GigStatusOpen}
	default:
		return nil, ErrUnauthorized
	}

	tx, err := l.Gigs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Assigned gigs must drop the assignee to satisfy the status/assignment
	// constraint, so admin cancels clear it in the same swap. The swap and the
	// escrow refund commit together; a failed refund leaves the gig in its
	// pre-cancel state so the caller can retry.
	ok, err := l.Gigs.SwapStatusTx(ctx, tx, gigID, from, models.GigStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cannot cancel from %s", ErrInvalidTransition, g.Status)
	}
	if err := l.Ledger.RefundTx(ctx, tx, gigID); err != nil {
		l.Logger.Error("refund on cancel failed", "gig_id", gigID, "error", err)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	g.Status = models.GigStatusCancelled
	l.Logger.Info("gig cancelled", "gig_id", gigID, "actor_id", actor.ID)
	l.notify(ctx, g, EventCancelled, actor.ID)
	return g, nil
}

// Reprice changes the price of a gig that is still on the open board and
// resizes the escrow hold to match. Once a messenger accepts, price is fixed.
func (l *Lifecycle) Reprice(ctx context.Context, actor *models.User, gigID uuid.UUID, price decimal.Decimal) (*models.Gig, error) {
	if err := l.Policy.CheckPrice(price); err != nil {
		return nil, err
	}
	g, err := l.getGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if g.PostedBy != actor.ID {
		return nil, ErrUnauthorized
	}

	tx, err := l.Gigs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ok, err := l.Gigs.UpdatePriceTx(ctx, tx, gigID, price)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: price is fixed once the gig leaves the board", ErrInvalidTransition)
	}
	if err := l.Ledger.AdjustHold(ctx, tx, gigID, price); err != nil {
		return nil, fmt.Errorf("adjust escrow hold: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	g.Price = price
	l.notify(ctx, g, EventRepriced, actor.ID)
	return g, nil
}

// Tip sends an extra thank-you amount from the poster to the messenger after
// completion. Tips bypass escrow and the platform fee.
func (l *Lifecycle) Tip(ctx context.Context, actor *models.User, gigID uuid.UUID, amount decimal.Decimal) (*models.Gig, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: tip must be positive", ErrPreconditionFailed)
	}
	g, err := l.getGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if g.PostedBy != actor.ID {
		return nil, ErrUnauthorized
	}
	if g.AssignedTo == nil || (g.Status != models.GigStatusCompleted && g.Status != models.GigStatusVerified) {
		return nil, fmt.Errorf("%w: tips only after completion", ErrInvalidTransition)
	}

	tx, err := l.Gigs.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := l.Ledger.Tip(ctx, tx, gigID, actor.ID, *g.AssignedTo, amount); err != nil {
		return nil, err
	}
	if err := l.Gigs.SetTip(ctx, tx, gigID, amount); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.notify(ctx, g, EventTipped, actor.ID)
	return g, nil
}

// ExpireSweep flips every overdue unaccepted gig to expired and refunds any
// escrow, each gig in its own transaction so the swap and the refund commit
// together. A gig whose refund fails stays live and is picked up again by the
// next sweep. Run periodically by the expiry worker.
func (l *Lifecycle) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := l.Gigs.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		ok, err := l.expireOne(ctx, id)
		if err != nil {
			l.Logger.Error("expiry failed", "gig_id", id, "error", err)
			continue
		}
		if ok {
			expired++
			l.Logger.Info("gig expired", "gig_id", id)
		}
	}
	return expired, nil
}

func (l *Lifecycle) expireOne(ctx context.Context, gigID uuid.UUID) (bool, error) {
	tx, err := l.Gigs.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	ok, err := l.Gigs.SwapStatusTx(ctx, tx, gigID,
		[]string{models.GigStatusDraft, models.GigStatusOpen}, models.GigStatusExpired)
	if err != nil {
		return false, err
	}
	if !ok {
		// Accepted or cancelled between the list and the swap; nothing to do.
		return false, nil
	}
	if err := l.Ledger.RefundTx(ctx, tx, gigID); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// ReverseSettlement is the admin dispute resolution path: a released payment
// is clawed back from the messenger and re-credited to the client through
// offsetting ledger rows. Only settled gigs have anything to reverse.
func (l *Lifecycle) ReverseSettlement(ctx context.Context, actor *models.User, gigID uuid.UUID, reason string) (*models.Gig, error) {
	if actor.Role != models.RoleAdmin {
		return nil, ErrUnauthorized
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: a reversal needs a reason", ErrPreconditionFailed)
	}
	g, err := l.getGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if err := l.Ledger.Reverse(ctx, gigID, reason); err != nil {
		return nil, err
	}
	l.Logger.Info("settlement reversed", "gig_id", gigID, "actor_id", actor.ID, "reason", reason)
	return g, nil
}

func (l *Lifecycle) requireAssignee(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error) {
	g, err := l.getGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if g.AssignedTo == nil || *g.AssignedTo != actor.ID || !actor.CanAct() {
		return nil, ErrUnauthorized
	}
	return g, nil
}
