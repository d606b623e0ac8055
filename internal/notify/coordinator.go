package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/newatumwa/backend/internal/models"
	"github.com/newatumwa/backend/internal/services"
)

// ChatRepo is the thread/message store interface used by the coordinator.
type ChatRepo interface {
	GetOrCreateThread(ctx context.Context, a, b uuid.UUID, gigID *uuid.UUID) (*models.ChatThread, error)
	GetThread(ctx context.Context, id uuid.UUID) (*models.ChatThread, error)
	ThreadForGig(ctx context.Context, gigID uuid.UUID) (*models.ChatThread, error)
	ListThreads(ctx context.Context, userID uuid.UUID) ([]*models.ChatThread, error)
	AppendMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, threadID uuid.UUID) ([]*models.Message, error)
	MarkRead(ctx context.Context, threadID, userID uuid.UUID) error
}

// BroadcastRepo is the broadcast store interface used by the coordinator.
type BroadcastRepo interface {
	Insert(ctx context.Context, b *models.Broadcast) error
	Poll(ctx context.Context, userID uuid.UUID, role string) ([]*models.Broadcast, error)
}

var eventLines = map[string]string{
	services.EventPublished: "Gig published to the board",
	services.EventAssigned:  "Gig accepted, messenger on the way",
	services.EventPurchased: "Items purchased",
	services.EventDelivered: "Marked as delivered",
	services.EventCompleted: "Delivery confirmed, payment released",
	services.EventVerified:  "Rated by the client",
	services.EventCancelled: "Gig cancelled",
	services.EventExpired:   "Gig expired without acceptance",
	services.EventRepriced:  "Price updated",
	services.EventTipped:    "Tip sent",
}

// Coordinator fans lifecycle events into the gig's chat thread as system
// messages and owns all direct chat and broadcast operations.
type Coordinator struct {
	Chat       ChatRepo
	Broadcasts BroadcastRepo
	Logger     *slog.Logger
}

func NewCoordinator(chat ChatRepo, broadcasts BroadcastRepo, logger *slog.Logger) *Coordinator {
	return &Coordinator{Chat: chat, Broadcasts: broadcasts, Logger: logger}
}

var _ services.Notifier = (*Coordinator)(nil)

// GigEvent drops a system line into the gig's thread, bumping the other
// side's unread counter. Gigs without a thread yet (never assigned) are
// skipped. A freshly published gig additionally lands on the messenger feed
// as a broadcast. Failures are logged, never surfaced; notifications are best
// effort while the transition itself has already committed.
func (c *Coordinator) GigEvent(ctx context.Context, gig *models.Gig, event string, actorID uuid.UUID) {
	line, ok := eventLines[event]
	if !ok {
		line = event
	}
	if event == services.EventPublished {
		b := &models.Broadcast{
			Audience:  models.AudienceMessengers,
			Kind:      models.BroadcastMessage,
			Title:     "New gig on the board",
			Message:   fmt.Sprintf("%s · %s", gig.OrderNumber, gig.Title),
			CreatedBy: actorID,
		}
		if err := c.Broadcasts.Insert(ctx, b); err != nil {
			c.Logger.Error("notify: publish broadcast failed", "gig_id", gig.ID, "error", err)
		}
	}
	thread, err := c.Chat.ThreadForGig(ctx, gig.ID)
	if err != nil {
		c.Logger.Error("notify: load gig thread failed", "gig_id", gig.ID, "error", err)
		return
	}
	if thread == nil {
		return
	}
	m := &models.Message{
		ID:       uuid.New(),
		ThreadID: thread.ID,
		SenderID: actorID,
		Text:     fmt.Sprintf("%s · %s", gig.OrderNumber, line),
		System:   true,
	}
	if err := c.Chat.AppendMessage(ctx, m); err != nil {
		c.Logger.Error("notify: append system message failed", "gig_id", gig.ID, "error", err)
	}
}

// SendMessage appends a user message to a thread the sender belongs to.
func (c *Coordinator) SendMessage(ctx context.Context, sender *models.User, threadID uuid.UUID, text string) (*models.Message, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", services.ErrPreconditionFailed)
	}
	thread, err := c.Chat.GetThread(ctx, threadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(sender.ID) {
		return nil, services.ErrUnauthorized
	}
	m := &models.Message{ID: uuid.New(), ThreadID: threadID, SenderID: sender.ID, Text: text}
	if err := c.Chat.AppendMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// OpenThread finds or creates a direct thread between two users.
func (c *Coordinator) OpenThread(ctx context.Context, sender *models.User, otherID uuid.UUID, gigID *uuid.UUID) (*models.ChatThread, error) {
	if otherID == sender.ID {
		return nil, fmt.Errorf("%w: cannot open a thread with yourself", services.ErrPreconditionFailed)
	}
	return c.Chat.GetOrCreateThread(ctx, sender.ID, otherID, gigID)
}

// Messages returns the thread history for a participant and clears their
// unread counter.
func (c *Coordinator) Messages(ctx context.Context, reader *models.User, threadID uuid.UUID) ([]*models.Message, error) {
	thread, err := c.Chat.GetThread(ctx, threadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(reader.ID) {
		return nil, services.ErrUnauthorized
	}
	msgs, err := c.Chat.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := c.Chat.MarkRead(ctx, threadID, reader.ID); err != nil {
		c.Logger.Error("notify: mark read failed", "thread_id", threadID, "error", err)
	}
	return msgs, nil
}

func (c *Coordinator) Threads(ctx context.Context, userID uuid.UUID) ([]*models.ChatThread, error) {
	return c.Chat.ListThreads(ctx, userID)
}

// Broadcast publishes a platform-wide notification. Staff only.
func (c *Coordinator) Broadcast(ctx context.Context, sender *models.User, audience, kind, title, message string) (*models.Broadcast, error) {
	if sender.Role != models.RoleAdmin && sender.Role != models.RoleSupport {
		return nil, services.ErrUnauthorized
	}
	switch audience {
	case models.AudienceAll, models.AudienceClients, models.AudienceMessengers:
	default:
		return nil, fmt.Errorf("%w: unknown audience %q", services.ErrPreconditionFailed, audience)
	}
	if kind != models.BroadcastAlert && kind != models.BroadcastMessage {
		return nil, fmt.Errorf("%w: unknown kind %q", services.ErrPreconditionFailed, kind)
	}
	b := &models.Broadcast{Audience: audience, Kind: kind, Title: title, Message: message, CreatedBy: sender.ID}
	if err := c.Broadcasts.Insert(ctx, b); err != nil {
		return nil, err
	}
	c.Logger.Info("broadcast published", "broadcast_id", b.ID, "audience", audience)
	return b, nil
}

// PollBroadcasts returns every broadcast above the caller's watermark, in id
// order, advancing the watermark so a repeat poll returns nothing new.
func (c *Coordinator) PollBroadcasts(ctx context.Context, user *models.User) ([]*models.Broadcast, error) {
	return c.Broadcasts.Poll(ctx, user.ID, user.Role)
}
