package persistence

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
	"github.com/devotee-admin/hierarchy/pkg/composables"
	"github.com/devotee-admin/hierarchy/pkg/outbox"
)

// OutboxEventSink writes hierarchy events into the outbox table of the caller's
// transaction. Emitting outside a transaction is refused so an event can never
// outlive a rolled back change.
type OutboxEventSink struct {
	publisher outbox.Publisher
	table     pgx.Identifier
}

var _ services.EventSink = (*OutboxEventSink)(nil)

func NewOutboxEventSink(publisher outbox.Publisher, table pgx.Identifier) *OutboxEventSink {
	return &OutboxEventSink{publisher: publisher, table: table}
}

func (s *OutboxEventSink) Emit(ctx context.Context, ev events.HierarchyEventV1) error {
	if !composables.InTxScope(ctx) {
		return composables.ErrNoTx
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal hierarchy event")
	}
	if _, err := s.publisher.Enqueue(ctx, tx, s.table, outbox.Message{
		DistrictCode: ev.DistrictCode,
		Topic:        ev.Topic(),
		EventID:      ev.EventID,
		Payload:      payload,
	}); err != nil {
		return errors.Wrap(err, "enqueue hierarchy event")
	}
	return nil
}
