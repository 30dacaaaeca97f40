package outbox

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "outbox"

// conn is what the relay needs from either the pool or a pinned connection.
type conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Relay polls one outbox table and hands claimed rows to a Dispatcher. Rows are
// claimed with SKIP LOCKED, so a failing message never blocks the ones behind it.
type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	label      string
	dispatcher Dispatcher
	opts       RelayOptions
	lockKey    int64
	propagator propagation.TextMapPropagator
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	switch {
	case pool == nil:
		return nil, invalidConfig("pool is required")
	case len(table) == 0:
		return nil, invalidConfig("table is required")
	case dispatcher == nil:
		return nil, invalidConfig("dispatcher is required")
	}
	opts.setDefaults()
	label := TableLabel(table)
	return &Relay{
		pool:       pool,
		table:      table,
		label:      label,
		dispatcher: dispatcher,
		opts:       opts,
		lockKey:    advisoryLockKey("outbox:" + label),
		propagator: propagation.TraceContext{},
	}, nil
}

// Run relays until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	if !r.opts.SingleActive {
		leaderGauge.WithLabelValues(r.label).Set(1)
		return r.loop(ctx, r.pool)
	}
	for {
		held, err := r.lead(ctx)
		if err != nil && ctx.Err() == nil {
			r.opts.Logger.WithError(err).WithField("table", r.label).Warn("outbox: leader election failed")
		}
		if held {
			return err
		}
		leaderGauge.WithLabelValues(r.label).Set(0)
		if err := sleep(ctx, r.opts.PollInterval); err != nil {
			return err
		}
	}
}

// lead pins a connection, takes the session advisory lock and relays on that
// connection until ctx is done. held reports whether the lock was obtained.
func (r *Relay) lead(ctx context.Context) (held bool, err error) {
	c, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer c.Release()

	if err := c.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&held); err != nil || !held {
		return false, err
	}
	defer func() {
		_, _ = c.Exec(context.Background(), `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey)
	}()

	leaderGauge.WithLabelValues(r.label).Set(1)
	r.opts.Logger.WithField("table", r.label).Info("outbox: relay is leader")
	return true, r.loop(ctx, c)
}

func (r *Relay) loop(ctx context.Context, db conn) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	var depthAt time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(depthAt) {
			if err := r.observeDepth(ctx, db); err != nil {
				r.opts.Logger.WithError(err).Debug("outbox: queue depth query failed")
			}
			depthAt = time.Now().Add(r.opts.QueueDepthEvery)
		}
		if _, err := r.processOnce(ctx, db); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).WithField("table", r.label).Warn("outbox: relay tick failed")
		}
	}
}

// Drain relays batches until nothing is claimable and returns how many rows
// were handed to the dispatcher.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.processOnce(ctx, r.pool)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

type claimed struct {
	id uuid.UUID
	DispatchedMessage
}

func (r *Relay) processOnce(ctx context.Context, db conn) (int, error) {
	batch, err := r.claim(ctx, db)
	if err != nil {
		return 0, err
	}
	for _, c := range batch {
		r.settle(ctx, db, c, r.dispatch(ctx, c))
	}
	return len(batch), nil
}

// claim locks a batch of due rows and bumps their attempt counters in one
// short transaction. The dispatch itself runs outside it.
func (r *Relay) claim(ctx context.Context, db conn) ([]claimed, error) {
	now := time.Now()
	var batch []claimed
	err := pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, fmt.Sprintf(`
			UPDATE %[1]s SET locked_at = $1, attempts = attempts + 1
			 WHERE id IN (
				SELECT id FROM %[1]s
				 WHERE published_at IS NULL
				   AND available_at <= $1
				   AND attempts < $2
				   AND (locked_at IS NULL OR locked_at < $3)
				 ORDER BY available_at, sequence
				 LIMIT $4
				 FOR UPDATE SKIP LOCKED)
			RETURNING id, district_code, topic, payload, event_id, sequence, attempts,
			          COALESCE(traceparent, ''), COALESCE(tracestate, '')`, r.table.Sanitize()),
			now, r.opts.MaxAttempts, now.Add(-r.opts.LockTTL), r.opts.BatchSize)
		if err != nil {
			return fmt.Errorf("outbox claim: %w", err)
		}
		batch, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (claimed, error) {
			c := claimed{DispatchedMessage: DispatchedMessage{Meta: Meta{Table: r.table}}}
			m := &c.Meta
			var payload []byte
			err := row.Scan(&c.id, &m.DistrictCode, &m.Topic, &payload, &m.EventID, &m.Sequence, &m.Attempts, &m.TraceParent, &m.TraceState)
			c.Payload = payload
			return c, err
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	// RETURNING order is unspecified.
	sortClaimed(batch)
	return batch, nil
}

func sortClaimed(batch []claimed) {
	for i := 1; i < len(batch); i++ {
		for j := i; j > 0 && batch[j].Meta.Sequence < batch[j-1].Meta.Sequence; j-- {
			batch[j], batch[j-1] = batch[j-1], batch[j]
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, c claimed) (err error) {
	ctx = r.propagator.Extract(ctx, propagation.MapCarrier{
		"traceparent": c.Meta.TraceParent,
		"tracestate":  c.Meta.TraceState,
	})
	ctx, span := otel.Tracer(tracerName).Start(ctx, "outbox.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("outbox.table", r.label),
			attribute.String("outbox.topic", c.Meta.Topic),
			attribute.String("outbox.event_id", c.Meta.EventID.String()),
			attribute.Int("outbox.attempts", c.Meta.Attempts),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("outbox: dispatcher panicked: %v", p)
		}
		dispatchSeconds.WithLabelValues(r.label, c.Meta.Topic).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "dispatch failed")
		}
	}()
	return r.dispatcher.Dispatch(ctx, c.DispatchedMessage)
}

// settle records the dispatch outcome: published, retried later with backoff,
// or left dead once MaxAttempts is used up.
func (r *Relay) settle(ctx context.Context, db conn, c claimed, dispatchErr error) {
	var (
		outcome string
		q       string
		args    []any
	)
	table := r.table.Sanitize()
	switch {
	case dispatchErr == nil:
		outcome = "published"
		q = fmt.Sprintf(`UPDATE %s SET published_at = now(), locked_at = NULL, last_error = NULL
			WHERE id = $1 AND published_at IS NULL`, table)
		args = []any{c.id}
	case c.Meta.Attempts >= r.opts.MaxAttempts:
		outcome = "dead"
		q = fmt.Sprintf(`UPDATE %s SET locked_at = NULL, last_error = $2, available_at = now()
			WHERE id = $1 AND published_at IS NULL`, table)
		args = []any{c.id, truncateError(dispatchErr, r.opts.LastErrorMaxLen)}
	default:
		outcome = "retry"
		next := time.Now().Add(backoff(c.Meta.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
		q = fmt.Sprintf(`UPDATE %s SET locked_at = NULL, last_error = $2, available_at = $3
			WHERE id = $1 AND published_at IS NULL`, table)
		args = []any{c.id, truncateError(dispatchErr, r.opts.LastErrorMaxLen), next}
	}
	dispatchedTotal.WithLabelValues(r.label, c.Meta.Topic, outcome).Inc()

	log := r.opts.Logger.WithFields(c.logFields(r.label))
	if dispatchErr != nil {
		log.WithError(dispatchErr).WithField("outcome", outcome).Warn("outbox: dispatch failed")
	}
	if _, err := db.Exec(ctx, q, args...); err != nil {
		// The lock expires after LockTTL and the row is claimed again.
		log.WithError(err).WithField("outcome", outcome).Warn("outbox: settle failed")
	}
}

func (r *Relay) observeDepth(ctx context.Context, db conn) error {
	var pending, locked int64
	err := db.QueryRow(ctx, fmt.Sprintf(`
		SELECT count(*), count(*) FILTER (WHERE locked_at IS NOT NULL)
		  FROM %s WHERE published_at IS NULL`, r.table.Sanitize())).Scan(&pending, &locked)
	if err != nil {
		return fmt.Errorf("outbox queue depth: %w", err)
	}
	pendingGauge.WithLabelValues(r.label).Set(float64(pending))
	lockedGauge.WithLabelValues(r.label).Set(float64(locked))
	return nil
}

func (c claimed) logFields(table string) logrus.Fields {
	return logrus.Fields{
		"table":         table,
		"topic":         c.Meta.Topic,
		"event_id":      c.Meta.EventID.String(),
		"district_code": c.Meta.DistrictCode,
		"sequence":      c.Meta.Sequence,
		"attempts":      c.Meta.Attempts,
	}
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
