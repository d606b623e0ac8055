package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/models"
)

// GigReader lists gigs for the dashboard summary.
type GigReader interface {
	ListByPoster(ctx context.Context, posterID uuid.UUID) ([]*models.Gig, error)
	ListByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]*models.Gig, error)
}

// WalletReader reads the derived ledger balance.
type WalletReader interface {
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// ThreadReader lists chat threads for the unread total.
type ThreadReader interface {
	ListThreads(ctx context.Context, userID uuid.UUID) ([]*models.ChatThread, error)
}

// Handler serves the home-screen summary for clients and messengers.
type Handler struct {
	gigs    GigReader
	wallet  WalletReader
	threads ThreadReader
	log     *slog.Logger
}

func NewHandler(gigs GigReader, wallet WalletReader, threads ThreadReader, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{gigs: gigs, wallet: wallet, threads: threads, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GetMe handles GET /v1/me.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetDashboard handles GET /v1/dashboard: the caller's gigs grouped by state,
// their ledger balance, and the total unread message count.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromCtx(r.Context())
	if u == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var (
		gigs []*models.Gig
		err  error
	)
	if u.Role == models.RoleMessenger {
		gigs, err = h.gigs.ListByAssignee(r.Context(), u.ID)
	} else {
		gigs, err = h.gigs.ListByPoster(r.Context(), u.ID)
	}
	if err != nil {
		h.log.Error("dashboard gigs", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	active := make([]*models.Gig, 0)
	done := make([]*models.Gig, 0)
	for _, g := range gigs {
		if g.Terminal() || g.Status == models.GigStatusCompleted {
			done = append(done, g)
		} else {
			active = append(active, g)
		}
	}

	balance, err := h.wallet.Balance(r.Context(), u.ID)
	if err != nil {
		h.log.Error("dashboard balance", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	threads, err := h.threads.ListThreads(r.Context(), u.ID)
	if err != nil {
		h.log.Error("dashboard threads", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	unread := 0
	for _, t := range threads {
		unread += t.UnreadFor(u.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":        u,
		"active_gigs": active,
		"past_gigs":   done,
		"balance":     balance,
		"unread":      unread,
	})
}
