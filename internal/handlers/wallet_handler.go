package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/ledger"
	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/models"
)

// WalletRepoForHandler is the ledger read side used by the wallet endpoints.
type WalletRepoForHandler interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.WalletTransaction, error)
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// WalletHandler serves /v1/wallet endpoints. Reads come from the transaction
// ledger; the only write is topping up.
type WalletHandler struct {
	Wallet WalletRepoForHandler
	Ledger ledger.Service
	Logger *slog.Logger
}

// GetWallet handles GET /v1/wallet — derived balance plus full history.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	balance, err := h.Wallet.Balance(r.Context(), actor.ID)
	if err != nil {
		h.Logger.Error("wallet balance", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	history, err := h.Wallet.ListByUser(r.Context(), actor.ID)
	if err != nil {
		h.Logger.Error("wallet history", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []*models.WalletTransaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": balance, "transactions": history})
}

// --- POST /v1/wallet/topup ---

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

func (h *WalletHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		http.Error(w, `{"error":"amount must be > 0"}`, http.StatusBadRequest)
		return
	}
	switch req.Method {
	case models.PaymentEcocash, models.PaymentCashUSD, models.PaymentZiG:
	default:
		http.Error(w, `{"error":"unknown payment method"}`, http.StatusBadRequest)
		return
	}
	if err := h.Ledger.TopUp(r.Context(), actor.ID, req.Amount, req.Method); err != nil {
		h.Logger.Error("top up", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "credited"})
}
