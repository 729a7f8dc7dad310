package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderdesk/internal/app"
	"orderdesk/internal/database"
	"orderdesk/internal/services"
	"orderdesk/pkg/config"
	"orderdesk/pkg/logger"
	"orderdesk/pkg/rabbitmq"

	"github.com/rs/zerolog/log"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	// --- Initialize Database ---
	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("failed to open database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// --- Initialize RabbitMQ Client ---
	// Publishing is optional; without a URL orders are stored but no events are sent.
	var publisher services.EventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQ.URL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Exchange: cfg.RabbitMQ.Exchange})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize RabbitMQ client")
		}
		publisher = mqClient
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, order events are disabled")
	}

	application := app.NewApp(db, publisher, app.Options{
		Name:            cfg.App.Name,
		JWTSecret:       cfg.JWT.Secret,
		TokenTTL:        cfg.JWT.TTL,
		OrderPrefix:     cfg.Orders.NumberPrefix,
		Exchange:        cfg.RabbitMQ.Exchange,
		StoreTimeout:    cfg.DB.Timeout,
		PublicRateLimit: cfg.Orders.PublicRateLimit,
		PublicRateBurst: cfg.Orders.PublicRateBurst,
	})

	// --- Admin Bootstrap ---
	if cfg.Admin.Username != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := application.Auth.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap admin account")
		}
		if !created {
			log.Info().Msg("admin account already present, bootstrap skipped")
		}
	}

	// --- Start HTTP Server ---
	addr := cfg.HTTP.Addr()
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.App.Env).Msg("starting server")
		if err := application.Fiber.Listen(addr); err != nil {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	if err := application.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("error during Fiber shutdown")
	}
	if mqClient != nil {
		if err := mqClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing RabbitMQ client")
		}
	}
	if err := database.Close(db); err != nil {
		log.Error().Err(err).Msg("error closing database")
	}
	log.Info().Msg("server gracefully stopped")
}
