package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/api"
	"github.com/vaccicare/vaccination-scheduling/internal/appointment"
	"github.com/vaccicare/vaccination-scheduling/internal/catalog"
	"github.com/vaccicare/vaccination-scheduling/internal/config"
	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/ledger"
	"github.com/vaccicare/vaccination-scheduling/internal/order"
	"github.com/vaccicare/vaccination-scheduling/internal/outbox"
	"github.com/vaccicare/vaccination-scheduling/internal/redisclient"
	"github.com/vaccicare/vaccination-scheduling/internal/schedule"
	"github.com/vaccicare/vaccination-scheduling/internal/screening"
)

const version = "0.3.0"

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()
	log.Info().Msg("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("configuration loaded")

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

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	catalogRepo := catalog.NewPgRepository(pgPool)
	scheduleRepo := schedule.NewPgRepository(pgPool)
	ledgerRepo := ledger.NewPgRepository(pgPool)
	orderRepo := order.NewPgRepository(pgPool)
	screeningRepo := screening.NewPgRepository(pgPool)
	appointmentRepo := appointment.NewPgRepository(pgPool)
	eventStore := outbox.NewStore(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	scheduleSvc := schedule.NewService(scheduleRepo, log)
	ledgerSvc := ledger.NewService(ledgerRepo, catalogRepo, log)
	orderSvc := order.NewService(orderRepo, catalogRepo, log)
	appointmentSvc := appointment.NewService(
		appointmentRepo,
		scheduleSvc,
		ledgerSvc,
		orderRepo,
		catalogRepo,
		screeningRepo,
		eventStore,
		locker,
		log,
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointmentSvc,
		Schedules:    scheduleSvc,
		Orders:       orderSvc,
		Ledger:       ledgerSvc,
		Catalog:      catalogRepo,
		PgPool:       pgPool,
		Redis:        rdb,
		Logger:       log,
		JWTSecret:    cfg.JWTSecret,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
