package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/vaccicare/vaccination-scheduling/internal/metrics"
)

const maxEventsPerBatch = 100

// Publisher is implemented by the message broker adapter.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Relay drains unprocessed outbox events to the broker. RunOnce claims
// a batch under a transaction, publishes each event, and only marks the
// ones that were accepted by the broker; failed publishes stay
// unprocessed and retry on the next run.
type Relay struct {
	pool  *pgxpool.Pool
	store *Store
	pub   Publisher
	log   zerolog.Logger
}

func NewRelay(pool *pgxpool.Pool, store *Store, pub Publisher, log zerolog.Logger) *Relay {
	return &Relay{
		pool:  pool,
		store: store,
		pub:   pub,
		log:   log.With().Str("component", "outbox-relay").Logger(),
	}
}

func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin relay tx: %w", err)
	}
	defer tx.Rollback(ctx)

	events, err := r.store.ClaimUnprocessed(ctx, tx, maxEventsPerBatch)
	if err != nil {
		return 0, fmt.Errorf("claim unprocessed events: %w", err)
	}

	published := 0
	for _, ev := range events {
		if err := r.pub.Publish(ctx, ev); err != nil {
			metrics.OutboxPublished.WithLabelValues("error").Inc()
			r.log.Error().
				Err(err).
				Str("event_id", ev.ID.String()).
				Str("event_type", ev.EventType).
				Msg("publish failed, will retry")
			continue
		}

		if err := r.store.MarkProcessed(ctx, tx, ev.ID); err != nil {
			return published, err
		}

		metrics.OutboxPublished.WithLabelValues("ok").Inc()
		published++
	}

	if err := tx.Commit(ctx); err != nil {
		return published, fmt.Errorf("commit relay tx: %w", err)
	}

	return published, nil
}
