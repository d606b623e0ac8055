package router

import (
	"net/http"

	"github.com/newatumwa/backend/internal/auth"
	"github.com/newatumwa/backend/internal/dashboard"
	"github.com/newatumwa/backend/internal/handlers"
	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/models"
	"github.com/newatumwa/backend/internal/registry"
)

// Deps carries everything the router mounts.
type Deps struct {
	Auth      *auth.Handler
	Registry  *registry.Handler
	Dashboard *dashboard.Handler
	Gigs      *handlers.GigHandler
	Chat      *handlers.ChatHandler
	Wallet    *handlers.WalletHandler

	// AuthMW wraps protected routes with bearer-token authentication.
	AuthMW func(http.Handler) http.Handler
	// PriceMW validates the delivery price on gig creation.
	PriceMW func(http.Handler) http.Handler
}

// New returns the API mux. Everything except registration, login, and health
// sits behind the auth middleware.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("POST /v1/auth/register", d.Auth.Register)
	mux.HandleFunc("POST /v1/auth/login", d.Auth.Login)

	authed := func(h http.HandlerFunc) http.Handler {
		return d.AuthMW(h)
	}
	staffOnly := middleware.RequireRole(models.RoleAdmin, models.RoleSupport)
	staff := func(h http.HandlerFunc) http.Handler {
		return d.AuthMW(staffOnly(h))
	}
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	admin := func(h http.HandlerFunc) http.Handler {
		return d.AuthMW(adminOnly(h))
	}

	// Gigs
	mux.Handle("POST /v1/gigs", d.AuthMW(d.PriceMW(http.HandlerFunc(d.Gigs.CreateGig))))
	mux.Handle("GET /v1/gigs", authed(d.Gigs.ListGigs))
	mux.Handle("GET /v1/gigs/{id}", authed(d.Gigs.GetGig))
	mux.Handle("POST /v1/gigs/{id}/publish", authed(d.Gigs.Publish))
	mux.Handle("POST /v1/gigs/{id}/accept", authed(d.Gigs.Accept))
	mux.Handle("POST /v1/gigs/{id}/purchased", authed(d.Gigs.MarkPurchased))
	mux.Handle("POST /v1/gigs/{id}/delivered", authed(d.Gigs.MarkDelivered))
	mux.Handle("POST /v1/gigs/{id}/confirm", authed(d.Gigs.ConfirmDelivery))
	mux.Handle("POST /v1/gigs/{id}/cancel", authed(d.Gigs.Cancel))
	mux.Handle("POST /v1/gigs/{id}/rate", authed(d.Gigs.Rate))
	mux.Handle("PATCH /v1/gigs/{id}/price", authed(d.Gigs.Reprice))
	mux.Handle("POST /v1/gigs/{id}/tip", authed(d.Gigs.Tip))
	mux.Handle("POST /v1/gigs/{id}/reverse", admin(d.Gigs.Reverse))
	mux.Handle("GET /v1/gigs/{id}/progress", authed(d.Gigs.GetProgress))
	mux.Handle("PATCH /v1/gigs/{id}/checklist/{item_id}", authed(d.Gigs.ToggleChecklistItem))

	// Stops
	mux.Handle("POST /v1/stops/{id}/complete", authed(d.Gigs.CompleteStop))
	mux.Handle("POST /v1/stops/{id}/proofs", authed(d.Gigs.AddProof))

	// Chat & broadcasts
	mux.Handle("GET /v1/chat/threads", authed(d.Chat.ListThreads))
	mux.Handle("POST /v1/chat/threads", authed(d.Chat.OpenThread))
	mux.Handle("GET /v1/chat/threads/{id}/messages", authed(d.Chat.GetMessages))
	mux.Handle("POST /v1/chat/threads/{id}/messages", authed(d.Chat.SendMessage))
	mux.Handle("POST /v1/broadcasts", staff(d.Chat.CreateBroadcast))
	mux.Handle("GET /v1/broadcasts/poll", authed(d.Chat.PollBroadcasts))

	// Wallet
	mux.Handle("GET /v1/wallet", authed(d.Wallet.GetWallet))
	mux.Handle("POST /v1/wallet/topup", authed(d.Wallet.TopUp))

	// Profile & presence
	mux.Handle("GET /v1/me", authed(d.Dashboard.GetMe))
	mux.Handle("GET /v1/dashboard", authed(d.Dashboard.GetDashboard))
	mux.Handle("POST /v1/me/presence", authed(d.Registry.SetPresence))
	mux.Handle("POST /v1/me/location", authed(d.Registry.ReportLocation))

	// User directory & moderation. Listing is staff-wide; moderation actions
	// are admin-only (the service enforces the same split).
	mux.Handle("GET /v1/users", staff(d.Registry.ListUsers))
	mux.Handle("POST /v1/users/{id}/{action}", admin(d.Registry.Moderate))

	return mux
}
