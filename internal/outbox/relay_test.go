package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/postgres/pgtest"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key       string
	eventType string
	eventID   string
}

type mockPublisher struct {
	mu     sync.Mutex
	failAt int // 1-based call number that fails; 0 never
	calls  int
	got    []published
}

func (p *mockPublisher) Publish(_ context.Context, key, _ []byte, headers ...kafka.Header) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls == p.failAt {
		return errors.New("broker down")
	}
	var m published
	m.key = string(key)
	for _, h := range headers {
		switch h.Key {
		case "event_type":
			m.eventType = string(h.Value)
		case "event_id":
			m.eventID = string(h.Value)
		}
	}
	p.got = append(p.got, m)
	return nil
}

func seedEvents(t *testing.T, pool *pgxpool.Pool, aggregate string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		id := uuid.NewString()
		_, err := pool.Exec(context.Background(), `
			INSERT INTO outbox_events(id, aggregate_id, event_type, payload, created_at)
			VALUES ($1, $2, 'OrderStatusChanged', '{}', $3)`,
			id, aggregate, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func unpublished(t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&n))
	return n
}

func TestRelay_PublishesInOrder(t *testing.T) {
	pool := pgtest.New(t)
	order := uuid.NewString()
	ids := seedEvents(t, pool, order, 5)

	pub := &mockPublisher{}
	r := &Relay{DB: pool, Publisher: pub, Batch: 3}

	n, err := r.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = r.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = r.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, pub.got, 5)
	for i, m := range pub.got {
		assert.Equal(t, ids[i], m.eventID)
		assert.Equal(t, order, m.key)
		assert.Equal(t, "OrderStatusChanged", m.eventType)
	}
	assert.Zero(t, unpublished(t, pool))
}

func TestRelay_SecondRelayWaitsWhileOneIsPublishing(t *testing.T) {
	pool := pgtest.New(t)
	ctx := context.Background()
	order := uuid.NewString()
	ids := seedEvents(t, pool, order, 2)

	// the other relay is mid-batch
	busy, err := pool.Begin(ctx)
	require.NoError(t, err)
	_, err = busy.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, relayLockKey)
	require.NoError(t, err)

	pub := &mockPublisher{}
	r := &Relay{DB: pool, Publisher: pub}
	n, err := r.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.got)
	assert.Equal(t, 2, unpublished(t, pool))

	require.NoError(t, busy.Rollback(ctx))
	n, err = r.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.got, 2)
	assert.Equal(t, ids[0], pub.got[0].eventID)
	assert.Equal(t, ids[1], pub.got[1].eventID)
}

func TestRelay_StopsAtFirstFailure(t *testing.T) {
	pool := pgtest.New(t)
	ids := seedEvents(t, pool, uuid.NewString(), 4)

	pub := &mockPublisher{failAt: 3}
	r := &Relay{DB: pool, Publisher: pub, Batch: 10}

	n, err := r.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, unpublished(t, pool))

	n, err = r.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.got, 4)
	assert.Equal(t, ids[2], pub.got[2].eventID)
}

func TestRelay_RunDrainsAndStops(t *testing.T) {
	pool := pgtest.New(t)
	seedEvents(t, pool, uuid.NewString(), 7)

	pub := &mockPublisher{}
	r := &Relay{DB: pool, Publisher: pub, Batch: 2, Interval: 20 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		var n int
		err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&n)
		return err == nil && n == 0
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
