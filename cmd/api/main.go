package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/shopcraft/internal/api"
	"github.com/safar/shopcraft/internal/auth"
	"github.com/safar/shopcraft/internal/checkout"
	"github.com/safar/shopcraft/internal/config"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/logging"
	"github.com/safar/shopcraft/internal/payment"
	"github.com/safar/shopcraft/internal/pricing"
	"github.com/safar/shopcraft/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("connected to database")

	var gateway payment.Gateway
	if cfg.Payment.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(cfg.Payment.StripeSecretKey)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, using the simulated payment gateway")
		gateway = payment.NewSimulatedGateway()
	}

	repo := store.New(db)
	calculator := pricing.NewCalculator(cfg.Pricing)
	orchestrator := checkout.NewOrchestrator(repo, gateway, calculator, cfg.Payment, logger)

	router, err := api.NewRouter(api.Options{
		DB:          db,
		Checkout:    orchestrator,
		Attempts:    repo,
		Pricing:     calculator,
		Tokens:      auth.NewTokenManager(cfg.Auth),
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
