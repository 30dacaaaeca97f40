//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	mu        sync.Mutex
	failTopic string
	seen      []Meta
}

func (d *recordingDispatcher) Dispatch(_ context.Context, msg DispatchedMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, msg.Meta)
	if msg.Meta.Topic == d.failTopic {
		return errors.New("poison")
	}
	return nil
}

func TestRelay_Integration_PoisonMessageDoesNotBlock(t *testing.T) {
	dsn := os.Getenv("HIERARCHY_TEST_DSN")
	if dsn == "" {
		t.Skip("HIERARCHY_TEST_DSN is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	name := "outbox_it_" + uuid.NewString()[:8]
	table, err := ParseIdentifier("public." + name)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE %s (
  id            UUID        PRIMARY KEY DEFAULT gen_random_uuid(),
  district_code TEXT        NOT NULL,
  topic         TEXT        NOT NULL,
  payload       JSONB       NOT NULL,
  event_id      UUID        NOT NULL UNIQUE,
  sequence      BIGSERIAL   NOT NULL,
  traceparent   TEXT        NULL,
  tracestate    TEXT        NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  published_at  TIMESTAMPTZ NULL,
  attempts      INT         NOT NULL DEFAULT 0 CHECK (attempts >= 0),
  available_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  locked_at     TIMESTAMPTZ NULL,
  last_error    TEXT        NULL
)`, table.Sanitize()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+table.Sanitize())
	})

	p := NewPublisher()
	failID, okID := uuid.New(), uuid.New()
	msg := func(topic string, id uuid.UUID) Message {
		return Message{DistrictCode: "D1", Topic: topic, EventID: id, Payload: json.RawMessage(`{"x":1}`)}
	}

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	first, err := p.Enqueue(ctx, tx, table, msg("test.fail.v1", failID))
	require.NoError(t, err)
	_, err = p.Enqueue(ctx, tx, table, msg("test.ok.v1", okID))
	require.NoError(t, err)
	again, err := p.Enqueue(ctx, tx, table, msg("test.fail.v1", failID))
	require.NoError(t, err)
	require.Equal(t, first, again, "re-enqueue of the same event id keeps its sequence")
	require.NoError(t, tx.Commit(ctx))

	d := &recordingDispatcher{failTopic: "test.fail.v1"}
	relay, err := NewRelay(pool, table, d, RelayOptions{
		PollInterval: 10 * time.Millisecond,
		LockTTL:      time.Second,
		MaxAttempts:  1,
	})
	require.NoError(t, err)

	n, err := relay.Drain(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, d.seen, 2)
	require.Equal(t, "test.fail.v1", d.seen[0].Topic, "delivery follows enqueue order")
	require.Equal(t, "D1", d.seen[1].DistrictCode)

	var published bool
	require.NoError(t, pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT published_at IS NOT NULL FROM %s WHERE event_id = $1`, table.Sanitize()), okID).Scan(&published))
	require.True(t, published)

	var attempts int
	var lastErr *string
	require.NoError(t, pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT attempts, last_error FROM %s WHERE event_id = $1`, table.Sanitize()), failID).Scan(&attempts, &lastErr))
	require.Equal(t, 1, attempts)
	require.NotNil(t, lastErr)
	require.Equal(t, "poison", *lastErr)

	cleaner, err := NewCleaner(pool, table, CleanerOptions{Retention: time.Nanosecond, DeadRetention: time.Nanosecond, MaxAttempts: 1})
	require.NoError(t, err)
	require.NoError(t, cleaner.CleanOnce(ctx))

	var left int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM "+table.Sanitize()).Scan(&left))
	require.Zero(t, left)
}
