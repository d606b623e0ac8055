package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/services"
)

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

// ListUsers handles GET /v1/users (staff only).
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	users, err := h.svc.ListUsers(r.Context(), actor)
	if err != nil {
		h.writeError(w, "list users", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(users)
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

// Moderate handles POST /v1/users/{id}/{action} for verify, suspend,
// unsuspend, and ban.
func (h *Handler) Moderate(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid user id"}`, http.StatusBadRequest)
		return
	}
	var req moderationRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	action := r.PathValue("action")
	switch action {
	case "verify":
		err = h.svc.VerifyMessenger(r.Context(), actor, id)
	case "suspend":
		err = h.svc.SuspendUser(r.Context(), actor, id, req.Reason)
	case "unsuspend":
		err = h.svc.UnsuspendUser(r.Context(), actor, id)
	case "ban":
		err = h.svc.BanUser(r.Context(), actor, id, req.Reason)
	default:
		http.Error(w, `{"error":"unknown action"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "moderate user", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": action})
}

type presenceRequest struct {
	Online bool `json:"online"`
}

// SetPresence handles POST /v1/me/presence.
func (h *Handler) SetPresence(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.SetOnline(r.Context(), actor, req.Online); err != nil {
		h.writeError(w, "set presence", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"online": req.Online})
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ReportLocation handles POST /v1/me/location — the messenger's periodic ping.
func (h *Handler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.ReportLocation(r.Context(), actor, req.Lat, req.Lng); err != nil {
		h.writeError(w, "report location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, services.ErrUnauthorized) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
		return
	}
	h.log.Error(op, "error", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
