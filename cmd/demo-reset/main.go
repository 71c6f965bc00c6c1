package main

import (
	"context"
	"flag"
	"os"
	"time"

	"despesas/internal/auth"
	"despesas/internal/cli"
	"despesas/internal/config"
	applog "despesas/internal/log"
	"despesas/internal/services"
)

func main() {
	once := flag.Bool("once", false, "reset the demo account once and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, func(c *config.Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		if !c.DemoEnabled() {
			return services.ErrDemoDisabled
		}
		return nil
	})

	store := cli.OpenStore(context.Background(), logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close storage", applog.FieldError, err)
		}
	}()

	// The reset never issues tokens, so any secret will do.
	secret := cfg.JWTSecret
	if secret == "" {
		secret = "demo-reset"
	}
	tokens, err := auth.NewTokens(secret, cfg.TokenTTL)
	if err != nil {
		logger.Error("Failed to initialize token issuer", applog.FieldError, err)
		os.Exit(1)
	}
	users := services.NewUserService(store.Store, tokens, cfg.RegisterPassword)
	demo := services.NewDemoService(store.Store, users, services.DemoConfig{
		Email:    cfg.DemoUserEmail,
		Password: cfg.DemoUserPassword,
	}, nil)

	if _, err := demo.EnsureDemoUser(context.Background()); err != nil {
		logger.Error("Failed to initialize demo user", applog.FieldError, err)
		os.Exit(1)
	}

	if *once {
		res, err := demo.Reset(context.Background())
		if err != nil {
			logger.Error("Demo reset failed", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Demo reset complete", "expenses", res.Expenses, "payments", res.Payments)
		return
	}

	scheduler := services.NewDemoScheduler(demo, services.DemoSchedulerConfig{RunOnStart: cfg.DemoResetOnStart}, nil)
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Error("Demo scheduler shutdown error", applog.FieldError, err)
		}
	})
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start demo scheduler", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Demo reset scheduler running", "reset_on_start", cfg.DemoResetOnStart)

	cli.WaitForShutdown(ctx, done)
}
