package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/config"
	"github.com/fundlane/notification/internal/dispatch"
	"github.com/fundlane/notification/internal/infrastructure/postgres"
	kafkaconsumer "github.com/fundlane/notification/internal/kafka"
	"github.com/fundlane/notification/internal/preference"
	"github.com/fundlane/notification/internal/realtime"
	"github.com/fundlane/notification/internal/template"
	transporthttp "github.com/fundlane/notification/internal/transport/http"
)

func main() {
	// ── Logging ──────────────────────────────────────────────────────────────
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// ── Config ───────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("env", cfg.Server.Env).Str("port", cfg.Server.Port).Msg("starting fundlane-notification")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping failed")
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}
	log.Info().Msg("postgres connected")

	// ── Repositories & Realtime Hub ───────────────────────────────────────────
	jobRepo := postgres.NewJobRepository(pool)
	prefRepo := postgres.NewPreferenceRepository(pool)
	inboxRepo := postgres.NewInboxRepository(pool)
	hub := realtime.NewHub()

	// ── Domain Services ───────────────────────────────────────────────────────
	resolver := preference.NewResolver(prefRepo)
	registry := template.NewRegistry()
	enqueuer := application.NewEnqueuer(jobRepo, resolver, registry)

	router := dispatch.NewRouter(
		dispatch.NewEmailDispatcher(cfg.Transports.EmailEndpoint, cfg.Transports.EmailAPIKey, cfg.Worker.DispatchTimeout),
		dispatch.NewPushDispatcher(cfg.Transports.PushEndpoint, cfg.Transports.PushAPIKey, cfg.Worker.DispatchTimeout),
		dispatch.NewInternalDispatcher(inboxRepo, hub),
	)

	workerCfg := application.WorkerConfig{
		BatchSize:       cfg.Worker.BatchSize,
		MaxRetries:      cfg.Worker.MaxRetries,
		BaseBackoff:     cfg.Worker.BaseBackoff,
		MaxBackoff:      cfg.Worker.MaxBackoff,
		DispatchTimeout: cfg.Worker.DispatchTimeout,
	}
	worker := application.NewWorker(jobRepo, router, hub, workerCfg)

	// ── HTTP Server ───────────────────────────────────────────────────────────
	handler := transporthttp.NewHandler(enqueuer, worker, resolver, jobRepo, inboxRepo, hub)
	server := transporthttp.NewRouter(handler, cfg.Auth.JWTSecret, cfg.Auth.ServiceSecret)

	// ── Kafka Consumer ────────────────────────────────────────────────────────
	consumer, err := kafkaconsumer.New(
		cfg.Kafka.Brokers,
		cfg.Kafka.ConsumerGroupID,
		cfg.Kafka.Topics,
		enqueuer,
		hub,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}

	// Start Kafka consumer in background
	go consumer.Start(ctx)
	log.Info().Strs("topics", cfg.Kafka.Topics).Msg("kafka consumer started")

	// ── TTL Purge Job (every 24h) ─────────────────────────────────────────────
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				purgeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if n, err := jobRepo.PurgeTerminalOlderThan(purgeCtx, cfg.TTL.JobRetentionDays); err != nil {
					log.Error().Err(err).Msg("job purge failed")
				} else if n > 0 {
					log.Info().Int64("purged", n).Msg("terminal jobs purged")
				}
				if n, err := inboxRepo.PurgeReadOlderThan(purgeCtx, cfg.TTL.InboxRetentionDays); err != nil {
					log.Error().Err(err).Msg("inbox purge failed")
				} else if n > 0 {
					log.Info().Int64("purged", n).Msg("read inbox messages purged")
				}
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()

	// ── Start HTTP Server ─────────────────────────────────────────────────────
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("HTTP server listening")
		if err := server.Start(":" + cfg.Server.Port); err != nil {
			log.Info().Msg("HTTP server stopped")
		}
	}()

	// ── Graceful Shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("fundlane-notification stopped")
}
