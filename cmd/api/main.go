package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/newatumwa/backend/internal/auth"
	"github.com/newatumwa/backend/internal/config"
	"github.com/newatumwa/backend/internal/dashboard"
	"github.com/newatumwa/backend/internal/db"
	"github.com/newatumwa/backend/internal/expiry"
	"github.com/newatumwa/backend/internal/handlers"
	"github.com/newatumwa/backend/internal/ledger"
	"github.com/newatumwa/backend/internal/middleware"
	"github.com/newatumwa/backend/internal/notify"
	"github.com/newatumwa/backend/internal/registry"
	"github.com/newatumwa/backend/internal/repository"
	"github.com/newatumwa/backend/internal/router"
	"github.com/newatumwa/backend/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to PostgreSQL database successfully!")

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		slog.Error("Schema migrations failed", "error", err)
		os.Exit(1)
	}

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first (e.g. make dev-up)", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	gigRepo := repository.NewGigRepo(pool)
	chatRepo := repository.NewChatRepo(pool)
	walletRepo := repository.NewWalletRepo(pool)
	broadcastRepo := repository.NewBroadcastRepo(pool)

	// Ledger
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo)

	// Services
	coordinator := notify.NewCoordinator(chatRepo, broadcastRepo, logger)
	policy := services.NewPolicy(cfg.MinGigPrice, cfg.MaxGigPrice)
	lifecycle := services.NewLifecycle(gigRepo, userRepo, ledgerSvc, policy, coordinator, cfg.PlatformFeeRate, logger)
	matcher := services.NewMatcher(gigRepo, chatRepo, coordinator, logger)
	fulfilment := services.NewFulfilment(gigRepo, policy)

	// Expiry sweep worker
	workers := river.NewWorkers()
	river.AddWorker(workers, expiry.NewSweepWorker(lifecycle, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{expiry.PeriodicJob()},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	// Auth & user directory
	authSvc := auth.NewService(userRepo, cfg.JWTSecret)
	authHandler := auth.NewHandler(authSvc, logger)
	registrySvc := registry.NewService(userRepo)
	registryHandler := registry.NewHandler(registrySvc, logger)
	dashHandler := dashboard.NewHandler(gigRepo, walletRepo, chatRepo, logger)

	gigHandler := &handlers.GigHandler{
		Gigs:       gigRepo,
		Lifecycle:  lifecycle,
		Matcher:    matcher,
		Fulfilment: fulfilment,
		Logger:     logger,
	}
	chatHandler := &handlers.ChatHandler{Coordinator: coordinator, Logger: logger}
	walletHandler := &handlers.WalletHandler{Wallet: walletRepo, Ledger: ledgerSvc, Logger: logger}

	mux := router.New(router.Deps{
		Auth:      authHandler,
		Registry:  registryHandler,
		Dashboard: dashHandler,
		Gigs:      gigHandler,
		Chat:      chatHandler,
		Wallet:    walletHandler,
		AuthMW:    middleware.Auth(authSvc, userRepo),
		PriceMW:   middleware.PriceCheck(cfg.MinGigPrice, cfg.MaxGigPrice),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
	}).Handler(mux)

	// Start River client (runs the expiry sweep)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
