package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/config"
	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/messaging"
	"github.com/vaccicare/vaccination-scheduling/internal/outbox"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "outbox-relay").Logger()
	log.Info().Msg("outbox-relay starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Dur("interval", cfg.RelayInterval).Msg("configuration loaded")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	broker, err := messaging.NewRabbitMQBroker(cfg.AmqpURL, cfg.EventQueue)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connection error")
	}
	defer func() {
		if err := broker.Close(); err != nil {
			log.Error().Err(err).Msg("error closing broker")
		}
	}()
	log.Info().Str("queue", cfg.EventQueue).Msg("connected to RabbitMQ")

	relay := outbox.NewRelay(pgPool, outbox.NewStore(pgPool), broker, log)

	// Run once at startup
	runOnce(rootCtx, relay, log)

	ticker := time.NewTicker(cfg.RelayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping outbox relay")
			return
		case <-ticker.C:
			runOnce(rootCtx, relay, log)
		}
	}
}

func runOnce(ctx context.Context, relay *outbox.Relay, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	published, err := relay.RunOnce(runCtx)
	if err != nil {
		log.Error().Err(err).Msg("relay run error")
		return
	}
	log.Info().Int("published", published).Dur("took", time.Since(start)).Msg("relay run complete")
}
