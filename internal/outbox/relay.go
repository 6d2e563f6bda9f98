// Package outbox moves committed events from outbox_events to the broker.
package outbox

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// Relay polls the outbox and publishes rows oldest first. Delivery is at
// least once: a crash between publish and commit sends the row again, and
// consumers dedupe on event_id.
type Relay struct {
	DB        postgres.Beginner
	Publisher Publisher
	Interval  time.Duration
	Batch     int
}

// relayLockKey is the advisory lock a relay holds while it publishes a batch.
const relayLockKey int64 = 0x6f7574626f78 // "outbox"

type row struct {
	id          string
	aggregateID string
	eventType   string
	payload     []byte
}

func (r *Relay) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil && ctx.Err() == nil {
			log.Printf("outbox relay: %v", err)
		}
		// a full batch means more is waiting
		if err == nil && n == r.batch() {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (r *Relay) batch() int {
	if r.Batch <= 0 {
		return 100
	}
	return r.Batch
}

// ProcessBatch publishes up to Batch pending rows and returns how many were
// sent. Only one relay publishes at a time: a batch runs under a transaction
// advisory lock, and a relay that can't take it sends nothing this tick. The
// first publish failure ends the batch; rows after it wait for the next tick
// so one order's events never overtake each other.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	sent := 0
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		sent = 0
		var leader bool
		if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, relayLockKey).Scan(&leader); err != nil {
			return fmt.Errorf("relay lock: %w", err)
		}
		if !leader {
			return nil
		}
		rows, err := tx.Query(ctx, `
			SELECT id, aggregate_id, event_type, payload
			FROM outbox_events
			WHERE published_at IS NULL
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, r.batch())
		if err != nil {
			return fmt.Errorf("select outbox: %w", err)
		}
		pending, err := pgx.CollectRows(rows, func(rw pgx.CollectableRow) (row, error) {
			var x row
			err := rw.Scan(&x.id, &x.aggregateID, &x.eventType, &x.payload)
			return x, err
		})
		if err != nil {
			return fmt.Errorf("scan outbox: %w", err)
		}

		var done []string
		var pubErr error
		for _, x := range pending {
			pubErr = r.Publisher.Publish(ctx, []byte(x.aggregateID), x.payload,
				kafka.Header{Key: "event_type", Value: []byte(x.eventType)},
				kafka.Header{Key: "event_id", Value: []byte(x.id)},
			)
			if pubErr != nil {
				break
			}
			done = append(done, x.id)
		}
		if len(done) > 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE outbox_events SET published_at = NOW() WHERE id = ANY($1::uuid[])`, done,
			); err != nil {
				return fmt.Errorf("mark published: %w", err)
			}
		}
		sent = len(done)
		if pubErr != nil {
			log.Printf("outbox relay: published %d/%d, stopped: %v", len(done), len(pending), pubErr)
		}
		return nil
	})
	return sent, err
}
