package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"despesas/internal/amqp"
	"despesas/internal/auth"
	"despesas/internal/cli"
	"despesas/internal/config"
	apphttp "despesas/internal/http"
	applog "despesas/internal/log"
	"despesas/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateAPI)

	logger.Info("Starting despesas server", "port", cfg.Port, "backend", cfg.StorageBackend)

	store := cli.OpenStore(context.Background(), logger, cfg)
	var amqpClose func() error
	defer func() {
		if err := cli.CloseAll(amqpClose, store.Cleanup); err != nil {
			logger.Error("Failed to release resources", applog.FieldError, err)
		}
	}()

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("Failed to initialize token issuer", applog.FieldError, err)
		os.Exit(1)
	}

	// A nil interface, not a typed nil pointer, disables publishing.
	var publisher services.EventPublisher
	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			amqpClose = amqpClient.Close
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled, expense events will not be published")
	}

	users := services.NewUserService(store.Store, tokens, cfg.RegisterPassword)
	deps := apphttp.Deps{
		Expenses: services.NewExpenseService(store.Store, publisher, nil),
		Variants: services.NewVariantService(store.Store, publisher, nil),
		Users:    users,
		Store:    store.Store,
	}

	var scheduler *services.DemoScheduler
	if cfg.DemoEnabled() {
		demo := services.NewDemoService(store.Store, users, services.DemoConfig{
			Email:    cfg.DemoUserEmail,
			Password: cfg.DemoUserPassword,
		}, nil)
		deps.Demo = demo
		if _, err := demo.EnsureDemoUser(context.Background()); err != nil {
			logger.Error("Failed to initialize demo user", applog.FieldError, err)
		}
		scheduler = services.NewDemoScheduler(demo, services.DemoSchedulerConfig{RunOnStart: cfg.DemoResetOnStart}, nil)
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		Logger:             logger,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CookieSecure:       cfg.CookieSecure,
		UserCacheTTL:       cfg.UserCacheTTL,
		UserCacheSize:      cfg.UserCacheSize,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if scheduler != nil {
			if err := scheduler.Stop(shutdownCtx); err != nil {
				logger.Error("Demo scheduler shutdown error", applog.FieldError, err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	if scheduler != nil {
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start demo scheduler", applog.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Demo reset scheduled for midnight", "reset_on_start", cfg.DemoResetOnStart)
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
