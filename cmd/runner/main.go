package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/juju/clock"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/oriphim/devicetoken/internal/config"
	"github.com/oriphim/devicetoken/internal/domain/model"
	"github.com/oriphim/devicetoken/internal/runnerauth"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.LoadRunner()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := runnerauth.NewClient(cfg.CloudEndpoint, nil)
	keeper := runnerauth.NewSessionKeeper(client, cfg.APIKey, cfg.RefreshMargin, clock.WallClock, slog.Default())

	slog.Info("authenticating with cloud", "endpoint", cfg.CloudEndpoint, "api_key", model.TokenPrefix(cfg.APIKey))
	sess, err := keeper.Start(ctx)
	if err != nil {
		return err
	}
	slog.Info("authenticated",
		"user_id", sess.UserID,
		"email", sess.Email,
		"plan", sess.PlanTier,
		"device", sess.DeviceName,
		"expires_at", sess.ExpiresAt,
	)

	if err := client.Confirm(ctx, sess); err != nil {
		return err
	}
	slog.Info("session confirmed with cloud")

	if err := keeper.Run(ctx); err != nil {
		return err
	}

	slog.Info("runner stopped")
	return nil
}
