package eventbus

import (
	"context"

	"github.com/devotee-admin/hierarchy/pkg/eventbus"
	"github.com/devotee-admin/hierarchy/pkg/outbox"
)

// Dispatcher publishes relayed rows on the in-process bus. Subscribers take
// func(ctx context.Context, meta *outbox.Meta, payload json.RawMessage) error; a
// returned error or panic makes the relay retry the row.
type Dispatcher struct {
	bus eventbus.EventBus
}

var _ outbox.Dispatcher = (*Dispatcher)(nil)

func New(bus eventbus.EventBus) *Dispatcher {
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	meta := msg.Meta
	return d.bus.PublishE(ctx, &meta, msg.Payload)
}
