package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/catalog"
	"github.com/vaccicare/vaccination-scheduling/internal/config"
	"github.com/vaccicare/vaccination-scheduling/internal/db"
	"github.com/vaccicare/vaccination-scheduling/internal/ledger"
	"github.com/vaccicare/vaccination-scheduling/internal/outbox"
)

// EventDoseReminderDue is consumed by the notification layer to tell
// guardians a child's next dose has come due.
const EventDoseReminderDue = "DOSE_REMINDER_DUE"

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reminder-worker").Logger()
	log.Info().Msg("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	log.Info().Str("env", cfg.Env).Str("cron", cfg.ReminderCron).Msg("configuration loaded")

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

	ledgerSvc := ledger.NewService(ledger.NewPgRepository(pgPool), catalog.NewPgRepository(pgPool), log)
	eventStore := outbox.NewStore(pgPool)

	scan := func() {
		runCtx, cancel := context.WithTimeout(rootCtx, 60*time.Second)
		defer cancel()
		scanDueDoses(runCtx, ledgerSvc, eventStore, pgPool, log)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReminderCron, scan); err != nil {
		log.Fatal().Err(err).Str("cron", cfg.ReminderCron).Msg("invalid cron spec")
	}
	c.Start()

	<-rootCtx.Done()
	log.Info().Msg("shutdown signal received, stopping reminder worker")

	cronCtx := c.Stop()
	<-cronCtx.Done()
}

// scanDueDoses writes one reminder event per completed dose whose
// expected next dose date has passed. The notification layer dedupes
// per child/day on its side.
func scanDueDoses(ctx context.Context, svc *ledger.Service, events *outbox.Store, q db.Querier, log zerolog.Logger) {
	due, err := svc.DueReminders(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("due dose scan failed")
		return
	}

	for _, profile := range due {
		payload := map[string]any{
			"child_id":   profile.ChildID.String(),
			"vaccine_id": profile.VaccineID.String(),
			"disease_id": profile.DiseaseID.String(),
			"next_dose":  profile.DoseNum + 1,
		}
		if profile.ExpectedDateForNextDose != nil {
			payload["due_date"] = profile.ExpectedDateForNextDose.Format("2006-01-02")
		}
		if err := events.Insert(ctx, q, EventDoseReminderDue, profile.ChildID, payload); err != nil {
			log.Error().Err(err).Str("profile_id", profile.ID.String()).Msg("reminder event insert failed")
		}
	}

	log.Info().Int("due", len(due)).Msg("due dose scan complete")
}
