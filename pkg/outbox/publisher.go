package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/propagation"

	"github.com/devotee-admin/hierarchy/pkg/repo"
)

type Publisher interface {
	// Enqueue writes msg in tx. Enqueueing an event id twice is a no-op that
	// returns the original sequence.
	Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (sequence int64, err error)
}

type publisher struct {
	propagator propagation.TextMapPropagator
}

func NewPublisher() Publisher {
	return &publisher{propagator: propagation.TraceContext{}}
}

func (p *publisher) Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (int64, error) {
	if len(table) == 0 {
		return 0, invalidConfig("table is required")
	}
	if err := msg.validate(); err != nil {
		return 0, err
	}

	carrier := propagation.MapCarrier{}
	p.propagator.Inject(ctx, carrier)

	q := fmt.Sprintf(`
		INSERT INTO %s (district_code, topic, payload, event_id, traceparent, tracestate, available_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), now())
		ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
		RETURNING sequence`, table.Sanitize())

	var sequence int64
	err := tx.QueryRow(ctx, q,
		msg.DistrictCode, msg.Topic, msg.Payload, msg.EventID,
		carrier.Get("traceparent"), carrier.Get("tracestate"),
	).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("outbox enqueue %s: %w", msg.Topic, err)
	}
	enqueuedTotal.WithLabelValues(TableLabel(table), msg.Topic).Inc()
	return sequence, nil
}
