package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdg-garage/badge-camp-api/internal/assignment"
	"github.com/gdg-garage/badge-camp-api/internal/auth"
	"github.com/gdg-garage/badge-camp-api/internal/capacity"
	"github.com/gdg-garage/badge-camp-api/internal/catalog"
	"github.com/gdg-garage/badge-camp-api/internal/config"
	"github.com/gdg-garage/badge-camp-api/internal/database"
	"github.com/gdg-garage/badge-camp-api/internal/enrollment"
	"github.com/gdg-garage/badge-camp-api/internal/handlers"
	"github.com/gdg-garage/badge-camp-api/internal/logging"
	"github.com/gdg-garage/badge-camp-api/internal/notifier"
	"github.com/gdg-garage/badge-camp-api/internal/preference"
	"github.com/gdg-garage/badge-camp-api/internal/pricing"
	"github.com/gdg-garage/badge-camp-api/internal/purchase"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()
	logger := logging.New(cfg, os.Stdout)

	// Connect to Database
	db := database.Connect(cfg)

	var n notifier.Notifier = notifier.LogNotifier{Logger: logger}
	discordNotifier, err := notifier.NewDiscordNotifier(cfg)
	if err != nil {
		logger.Warn("Discord notifier not initialized", "error", err)
	} else {
		n = discordNotifier
	}

	// Initialize services
	ledger := capacity.NewStore(db)
	rebuilt, err := ledger.RebuildAll(context.Background())
	if err != nil {
		logger.Error("failed to reconcile seat counters", "error", err)
		os.Exit(1)
	}
	logger.Info("seat counters reconciled", "offerings", rebuilt)
	offerings := catalog.New(db, cfg.DefaultSizeLimit)
	manager := assignment.NewManager(db, ledger, n, logger)

	// Initialize Handlers
	h := handlers.Handlers{
		Auth:         auth.NewAuthHandler(cfg, db),
		Offering:     handlers.NewOfferingHandler(offerings, ledger),
		Registration: handlers.NewRegistrationHandler(enrollment.NewService(db, manager, logger)),
		Assignment:   handlers.NewAssignmentHandler(manager),
		Preference:   handlers.NewPreferenceHandler(preference.NewSet(db)),
		Purchase:     handlers.NewPurchaseHandler(purchase.NewSet(db)),
		Pricing:      handlers.NewPricingHandler(pricing.NewEngine(db)),
	}

	// Initialize Router
	r := chi.NewRouter()
	handlers.RegisterRoutes(r, h, logger, cfg.EnableCORS)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
