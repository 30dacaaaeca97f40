package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestParseIdentifier(t *testing.T) {
	t.Parallel()

	ident, err := ParseIdentifier(" public.hierarchy_outbox ")
	require.NoError(t, err)
	require.Equal(t, pgx.Identifier{"public", "hierarchy_outbox"}, ident)
	require.Equal(t, "public.hierarchy_outbox", TableLabel(ident))

	ident, err = ParseIdentifier("hierarchy_outbox")
	require.NoError(t, err)
	require.Equal(t, pgx.Identifier{"hierarchy_outbox"}, ident)

	for _, bad := range []string{"", "a.b.c", "public.", "drop table;", "1table"} {
		_, err := ParseIdentifier(bad)
		require.ErrorIs(t, err, ErrInvalidConfig, "input %q", bad)
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	ok := Message{
		DistrictCode: "D1",
		Topic:        "hierarchy.role.changed.v1",
		EventID:      uuid.New(),
		Payload:      json.RawMessage(`{}`),
	}
	require.NoError(t, ok.validate())

	cases := map[string]func(m *Message){
		"district": func(m *Message) { m.DistrictCode = " " },
		"topic":    func(m *Message) { m.Topic = "" },
		"event id": func(m *Message) { m.EventID = uuid.Nil },
		"payload":  func(m *Message) { m.Payload = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := ok
			mutate(&m)
			require.ErrorIs(t, m.validate(), ErrInvalidConfig)
		})
	}
}

func TestNewRelay_Validation(t *testing.T) {
	t.Parallel()

	noop := DispatcherFunc(func(context.Context, DispatchedMessage) error { return nil })
	_, err := NewRelay(nil, pgx.Identifier{"t"}, noop, RelayOptions{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewCleaner(nil, pgx.Identifier{"t"}, CleanerOptions{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRelayOptions_Defaults(t *testing.T) {
	t.Parallel()

	var o RelayOptions
	o.setDefaults()
	require.Equal(t, 100, o.BatchSize)
	require.Equal(t, 25, o.MaxAttempts)
	require.NotNil(t, o.Rand)
	require.NotNil(t, o.Logger)
}

func TestSortClaimed(t *testing.T) {
	t.Parallel()

	batch := []claimed{
		{DispatchedMessage: DispatchedMessage{Meta: Meta{Sequence: 3}}},
		{DispatchedMessage: DispatchedMessage{Meta: Meta{Sequence: 1}}},
		{DispatchedMessage: DispatchedMessage{Meta: Meta{Sequence: 2}}},
	}
	sortClaimed(batch)
	for i, c := range batch {
		require.Equal(t, int64(i+1), c.Meta.Sequence)
	}
}
