// Package outbox implements the transactional outbox: state-change
// events are written in the same transaction as the state they
// announce, then relayed to the message broker out of band. This
// replaces client-side polling for "did the doctor act yet" with
// pushed notifications.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaccicare/vaccination-scheduling/internal/db"
)

type Event struct {
	ID          uuid.UUID
	EventType   string
	AggregateID *uuid.UUID
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes an event under the caller's querier, typically the
// transaction carrying the state change the event announces.
func (s *Store) Insert(ctx context.Context, q db.Querier, eventType string, aggregateID uuid.UUID, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, uuid.New(), eventType, aggregateID, data)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return nil
}

// ClaimUnprocessed locks a batch of unprocessed events for the duration
// of the caller's transaction. SKIP LOCKED lets multiple relay
// instances drain concurrently without double-publishing.
func (s *Store) ClaimUnprocessed(ctx context.Context, tx pgx.Tx, limit int) ([]Event, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, aggregate_id, payload, created_at, processed_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AggregateID, &ev.Payload, &ev.CreatedAt, &ev.ProcessedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (s *Store) MarkProcessed(ctx context.Context, q db.Querier, id uuid.UUID) error {
	_, err := q.Exec(ctx, `
		UPDATE outbox_events
		SET processed_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}
