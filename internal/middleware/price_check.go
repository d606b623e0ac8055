package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
)

// pricePeek extracts just the price from the request body so the handler can
// still decode the full payload afterwards.
type pricePeek struct {
	Price decimal.Decimal `json:"price"`
}

// PriceCheck validates the delivery price on gig creation requests against
// the configured bounds before the body reaches the handler. Reads and
// restores r.Body.
func PriceCheck(minPrice, maxPrice decimal.Decimal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserFromCtx(r.Context()) == nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			bodyBytes, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var peek pricePeek
			if err := json.Unmarshal(bodyBytes, &peek); err != nil {
				http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
				return
			}
			if !peek.Price.IsPositive() {
				http.Error(w, `{"error":"price must be > 0"}`, http.StatusBadRequest)
				return
			}
			if peek.Price.LessThan(minPrice) || peek.Price.GreaterThan(maxPrice) {
				http.Error(w, fmt.Sprintf(`{"error":"price %s outside allowed range %s-%s"}`,
					peek.Price, minPrice, maxPrice), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
