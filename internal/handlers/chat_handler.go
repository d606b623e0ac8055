package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/models"
	"github.com/newatumwa/backend/internal/notify"
)

// ChatHandler serves chat threads, messages, and platform broadcasts.
type ChatHandler struct {
	Coordinator *notify.Coordinator
	Logger      *slog.Logger
}

// ListThreads handles GET /v1/chat/threads.
func (h *ChatHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	threads, err := h.Coordinator.Threads(r.Context(), actor.ID)
	if err != nil {
		h.Logger.Error("list threads", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

// --- POST /v1/chat/threads ---

type openThreadRequest struct {
	OtherUserID string  `json:"other_user_id"`
	GigID       *string `json:"gig_id"`
}

// OpenThread handles POST /v1/chat/threads, finding or creating a direct
// thread with another user.
func (h *ChatHandler) OpenThread(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req openThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	otherID, err := uuid.Parse(req.OtherUserID)
	if err != nil {
		http.Error(w, `{"error":"invalid other_user_id"}`, http.StatusBadRequest)
		return
	}
	var gigID *uuid.UUID
	if req.GigID != nil {
		id, err := uuid.Parse(*req.GigID)
		if err != nil {
			http.Error(w, `{"error":"invalid gig_id"}`, http.StatusBadRequest)
			return
		}
		gigID = &id
	}
	thread, err := h.Coordinator.OpenThread(r.Context(), actor, otherID, gigID)
	if err != nil {
		writeDomainError(w, h.Logger, "open thread", err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

// GetMessages handles GET /v1/chat/threads/{id}/messages. Reading the history
// clears the caller's unread counter.
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	threadID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid thread id"}`, http.StatusBadRequest)
		return
	}
	msgs, err := h.Coordinator.Messages(r.Context(), actor, threadID)
	if err != nil {
		writeDomainError(w, h.Logger, "get messages", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// --- POST /v1/chat/threads/{id}/messages ---

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	threadID, ok := pathUUID(r, "id")
	if !ok {
		http.Error(w, `{"error":"invalid thread id"}`, http.StatusBadRequest)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	m, err := h.Coordinator.SendMessage(r.Context(), actor, threadID, req.Text)
	if err != nil {
		writeDomainError(w, h.Logger, "send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// --- broadcasts ---

type createBroadcastRequest struct {
	Audience string `json:"audience"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// CreateBroadcast handles POST /v1/broadcasts (staff only).
func (h *ChatHandler) CreateBroadcast(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req createBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Message == "" {
		http.Error(w, `{"error":"title and message are required"}`, http.StatusBadRequest)
		return
	}
	b, err := h.Coordinator.Broadcast(r.Context(), actor, req.Audience, req.Kind, req.Title, req.Message)
	if err != nil {
		writeDomainError(w, h.Logger, "create broadcast", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// PollBroadcasts handles GET /v1/broadcasts/poll. Each delivery advances the
// caller's watermark; an immediate re-poll returns an empty list.
func (h *ChatHandler) PollBroadcasts(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	list, err := h.Coordinator.PollBroadcasts(r.Context(), actor)
	if err != nil {
		h.Logger.Error("poll broadcasts", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*models.Broadcast{}
	}
	writeJSON(w, http.StatusOK, list)
}
