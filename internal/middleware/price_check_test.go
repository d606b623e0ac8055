package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/newatumwa/backend/internal/models"
)

func priceCheckHandler(t *testing.T, inner http.HandlerFunc) http.Handler {
	t.Helper()
	mw := PriceCheck(decimal.NewFromFloat(2.50), decimal.NewFromInt(100))
	return mw(inner)
}

func gigRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/gigs", strings.NewReader(body))
	return req.WithContext(WithUser(req.Context(), &models.User{ID: uuid.New(), Role: models.RoleClient}))
}

func TestPriceCheck_PassesAndRestoresBody(t *testing.T) {
	body := `{"title":"Fetch meds","price":"12.00"}`
	var seen string
	h := priceCheckHandler(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, gigRequest(body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if seen != body {
		t.Errorf("handler saw body %q, want the original restored", seen)
	}
}

func TestPriceCheck_BelowMinimum(t *testing.T) {
	h := priceCheckHandler(t, func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with an out-of-range price")
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, gigRequest(`{"price":"1.00"}`))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestPriceCheck_AboveMaximum(t *testing.T) {
	h := priceCheckHandler(t, func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with an out-of-range price")
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, gigRequest(`{"price":"250.00"}`))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestPriceCheck_NonPositivePrice(t *testing.T) {
	h := priceCheckHandler(t, func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with a zero price")
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, gigRequest(`{"price":"0"}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestPriceCheck_InvalidJSON(t *testing.T) {
	h := priceCheckHandler(t, func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached with a bad body")
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, gigRequest(`{not json`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestPriceCheck_RequiresAuthenticatedUser(t *testing.T) {
	h := priceCheckHandler(t, func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached without a user")
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/gigs", strings.NewReader(`{"price":"10"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}
