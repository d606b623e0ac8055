package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/ledger"
	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/models"
	"github.com/newatumwa/backend/internal/services"
)

// GigRepoForHandler is the read-side subset of the gig repository the handler
// uses directly; every mutation goes through a service.
type GigRepoForHandler interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	ListOpen(ctx context.Context) ([]*models.Gig, error)
	ListByPoster(ctx context.Context, posterID uuid.UUID) ([]*models.Gig, error)
	ListByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]*models.Gig, error)
}

// GigHandler serves /v1/gigs endpoints.
type GigHandler struct {
	Gigs       GigRepoForHandler
	Lifecycle  *services.Lifecycle
	Matcher    *services.Matcher
	Fulfilment *services.Fulfilment
	Logger     *slog.Logger
}

// --- POST /v1/gigs ---

type createGigRequest struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Type          string          `json:"type"`
	Price         decimal.Decimal `json:"price"`
	PaymentMethod string          `json:"payment_method"`
	Urgency       string          `json:"urgency"`
	LocationStart string          `json:"location_start"`
	LocationEnd   string          `json:"location_end"`
	Lat           *float64        `json:"lat"`
	Lng           *float64        `json:"lng"`
	Publish       bool            `json:"publish"`
	Stops         []struct {
		Kind         string  `json:"kind"`
		Location     string  `json:"location"`
		Address      string  `json:"address"`
		Instructions *string `json:"instructions"`
		ContactName  *string `json:"contact_name"`
		ContactPhone *string `json:"contact_phone"`
	} `json:"stops"`
	Checklist []struct {
		Text     string `json:"text"`
		Required bool   `json:"required"`
	} `json:"checklist"`
}

// CreateGig handles POST /v1/gigs. With publish=true the draft goes straight
// to the board and the price is escrowed in the same call.
func (h *GigHandler) CreateGig(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createGigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	g := &models.Gig{
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Price:         req.Price,
		PaymentMethod: req.PaymentMethod,
		Urgency:       req.Urgency,
		LocationStart: req.LocationStart,
		LocationEnd:   req.LocationEnd,
		Lat:           req.Lat,
		Lng:           req.Lng,
	}
	for _, s := range req.Stops {
		g.Stops = append(g.Stops, &models.Stop{
			Kind: s.Kind, Location: s.Location, Address: s.Address,
			Instructions: s.Instructions, ContactName: s.ContactName, ContactPhone: s.ContactPhone,
		})
	}
	for _, c := range req.Checklist {
		g.Checklist = append(g.Checklist, &models.ChecklistItem{Text: c.Text, Required: c.Required})
	}

	g, err := h.Lifecycle.CreateDraft(r.Context(), actor, g)
	if err != nil {
		h.writeError(w, "create gig", err)
		return
	}
	if req.Publish {
		if g, err = h.Lifecycle.Publish(r.Context(), actor, g.ID); err != nil {
			h.writeError(w, "publish gig", err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, g)
}

// --- GET /v1/gigs ---

// ListGigs handles GET /v1/gigs. ?view=mine returns the caller's gigs (posted
// or assigned depending on role); the default is the open board.
func (h *GigHandler) ListGigs(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var (
		gigs []*models.Gig
		err  error
	)
	if r.URL.Query().Get("view") == "mine" {
		if actor.Role == models.RoleMessenger {
			gigs, err = h.Gigs.ListByAssignee(r.Context(), actor.ID)
		} else {
			gigs, err = h.Gigs.ListByPoster(r.Context(), actor.ID)
		}
	} else {
		gigs, err = h.Gigs.ListOpen(r.Context())
	}
	if err != nil {
		h.Logger.Error("list gigs", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if gigs == nil {
		gigs = []*models.Gig{}
	}
	writeJSON(w, http.StatusOK, gigs)
}

// --- GET /v1/gigs/{id} ---

func (h *GigHandler) GetGig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid gig id"}`, http.StatusBadRequest)
		return
	}
	g, err := h.Gigs.GetByID(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		http.Error(w, `{"error":"gig not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.Logger.Error("get gig", "gig_id", id, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- lifecycle actions ---

// Publish handles POST /v1/gigs/{id}/publish.
func (h *GigHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "publish", h.Lifecycle.Publish)
}

// Accept handles POST /v1/gigs/{id}/accept — the messenger claiming the gig.
func (h *GigHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "accept", h.Matcher.Assign)
}

// MarkPurchased handles POST /v1/gigs/{id}/purchased.
func (h *GigHandler) MarkPurchased(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "mark purchased", h.Lifecycle.MarkPurchased)
}

// MarkDelivered handles POST /v1/gigs/{id}/delivered.
func (h *GigHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "mark delivered", h.Lifecycle.MarkDelivered)
}

// ConfirmDelivery handles POST /v1/gigs/{id}/confirm — the poster releasing escrow.
func (h *GigHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "confirm delivery", h.Lifecycle.ConfirmDelivery)
}

// Cancel handles POST /v1/gigs/{id}/cancel.
func (h *GigHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, "cancel", h.Lifecycle.Cancel)
}

func (h *GigHandler) lifecycleAction(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	fn func(ctx context.Context, actor *models.User, gigID uuid.UUID) (*models.Gig, error),
) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid gig id"}`, http.StatusBadRequest)
		return
	}
	g, err := fn(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- POST /v1/gigs/{id}/rate ---

type rateRequest struct {
	Rating int     `json:"rating"`
	Review *string `json:"review"`
}

func (h *GigHandler) Rate(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid gig id"}`, http.StatusBadRequest)
		return
	}
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	g, err := h.Lifecycle.Rate(r.Context(), actor, id, req.Rating, req.Review)
	if err != nil {
		h.writeError(w, "rate gig", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- PATCH /v1/gigs/{id}/price ---

type repriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (h *GigHandler) Reprice(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid gig id"}`, http.StatusBadRequest)
		return
	}
	var req repriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	g, err := h.Lifecycle.Reprice(r.Context(), actor, id, req.Price)
	if err != nil {
		h.writeError(w, "reprice gig", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- POST /v1/gigs/{id}/tip ---

type tipRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *GigHandler) Tip(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid gig id"}`, http.StatusBadRequest)
		return
	}
	var req tipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	g, err := h.Lifecycle.Tip(r.Context(), actor, id, req.Amount)
	if err != nil {
		h.writeError(w, "tip gig", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- POST /v1/gigs/{id}/reverse ---

type reverseRequest struct {
	Reason string `json:"reason"`
}

// Reverse handles POST /v1/gigs/{id}/reverse — admin dispute resolution
// clawing back a released payment.
func (h *GigHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid gig id"}`, http.StatusBadRequest)
		return
	}
	var req reverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	g, err := h.Lifecycle.ReverseSettlement(r.Context(), actor, id, req.Reason)
	if err != nil {
		h.writeError(w, "reverse settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// --- fulfilment: checklist, stops, proofs ---

// GetProgress handles GET /v1/gigs/{id}/progress.
func (h *GigHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid gig id"}`, http.StatusBadRequest)
		return
	}
	stops, checklist, err := h.Fulfilment.Progress(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, "gig progress", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stops": stops, "checklist": checklist})
}

type toggleItemRequest struct {
	Completed bool `json:"completed"`
}

// ToggleChecklistItem handles PATCH /v1/gigs/{id}/checklist/{item_id}.
func (h *GigHandler) ToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	gigID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid gig id"}`, http.StatusBadRequest)
		return
	}
	itemID, ok := pathUUID(r, "item_id")
	if !ok {
		http.Error(w, `{"error":"invalid item id"}`, http.StatusBadRequest)
		return
	}
	var req toggleItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.Fulfilment.ToggleItem(r.Context(), actor, gigID, itemID, req.Completed); err != nil {
		h.writeError(w, "toggle checklist item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": req.Completed})
}

// CompleteStop handles POST /v1/stops/{id}/complete.
func (h *GigHandler) CompleteStop(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	stopID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid stop id"}`, http.StatusBadRequest)
		return
	}
	if err := h.Fulfilment.CompleteStop(r.Context(), actor, stopID); err != nil {
		h.writeError(w, "complete stop", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"completed": true})
}

type addProofRequest struct {
	Type string  `json:"type"`
	URL  *string `json:"url"`
	Data *string `json:"data"`
}

// AddProof handles POST /v1/stops/{id}/proofs.
func (h *GigHandler) AddProof(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	stopID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid stop id"}`, http.StatusBadRequest)
		return
	}
	var req addProofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	p, err := h.Fulfilment.AddProof(r.Context(), actor, stopID, req.Type, req.URL, req.Data)
	if err != nil {
		h.writeError(w, "add proof", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// --- helpers ---

func (h *GigHandler) writeError(w http.ResponseWriter, op string, err error) {
	writeDomainError(w, h.Logger, op, err)
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, services.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, services.ErrAlreadyAssigned):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "gig already assigned"})
	case errors.Is(err, services.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrAlreadySettled):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "payment already settled"})
	case errors.Is(err, ledger.ErrNothingToReverse):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no released payment to reverse"})
	case errors.Is(err, services.ErrPreconditionFailed):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "insufficient funds"})
	default:
		log.Error(op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
