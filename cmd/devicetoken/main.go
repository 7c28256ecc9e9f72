package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"github.com/oriphim/devicetoken/internal/adapter/driven/jwtsigner"
	sqliteadapter "github.com/oriphim/devicetoken/internal/adapter/driven/sqlite"
	httphandler "github.com/oriphim/devicetoken/internal/adapter/driving/http"
	"github.com/oriphim/devicetoken/internal/application"
	"github.com/oriphim/devicetoken/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load .env (optional) and configuration (fail fast on a missing or short signing key).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"token_ttl", cfg.TokenTTL,
		"issuer", cfg.Issuer,
		"audience", cfg.Audience,
		"rate_limit", cfg.RateLimit,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", "version", version)

	// 5. Wire adapters and the exchange service.
	signer := jwtsigner.NewSigner(cfg.SigningKey, cfg.Issuer, cfg.Audience, clock.WallClock)

	exchangeSvc := application.NewExchangeService(
		sqliteadapter.NewCredentialRepo(db),
		sqliteadapter.NewUserRepo(db),
		sqliteadapter.NewEntitlementRepo(db),
		signer,
		application.ExchangeOptions{
			Issuer:      cfg.Issuer,
			Audience:    cfg.Audience,
			TTL:         cfg.TokenTTL,
			DefaultTier: cfg.DefaultTier,
		},
		clock.WallClock,
		logger,
	)

	// 6. Create HTTP handler.
	apiHandler := httphandler.NewHandler(exchangeSvc, signer, db, httphandler.Options{
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      rate.Limit(cfg.RateLimit),
		RateBurst:      cfg.RateBurst,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 7. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		return err
	}

	// 8. Graceful shutdown with 10s drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
