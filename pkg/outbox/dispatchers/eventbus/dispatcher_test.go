package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/pkg/eventbus"
	"github.com/devotee-admin/hierarchy/pkg/outbox"
)

func TestDispatcher_Dispatch(t *testing.T) {
	t.Parallel()

	bus := eventbus.New(nil)
	var got outbox.Meta
	var body json.RawMessage
	bus.Subscribe(func(_ context.Context, meta *outbox.Meta, payload json.RawMessage) error {
		got = *meta
		body = payload
		return nil
	})

	id := uuid.New()
	err := New(bus).Dispatch(context.Background(), outbox.DispatchedMessage{
		Meta:    outbox.Meta{Topic: "hierarchy.role.changed.v1", EventID: id, DistrictCode: "D1"},
		Payload: json.RawMessage(`{"a":1}`),
	})
	require.NoError(t, err)
	require.Equal(t, id, got.EventID)
	require.Equal(t, "D1", got.DistrictCode)
	require.JSONEq(t, `{"a":1}`, string(body))
}

func TestDispatcher_SurfacesHandlerErrors(t *testing.T) {
	t.Parallel()

	bus := eventbus.New(nil)
	boom := errors.New("boom")
	bus.Subscribe(func(context.Context, *outbox.Meta, json.RawMessage) error { return boom })

	err := New(bus).Dispatch(context.Background(), outbox.DispatchedMessage{Payload: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, boom)

	err = New(eventbus.New(nil)).Dispatch(context.Background(), outbox.DispatchedMessage{})
	require.ErrorIs(t, err, eventbus.ErrNoSubscribers)
}
