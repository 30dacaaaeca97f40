// Package outbox moves events written inside a business transaction to
// in-process subscribers, at least once and in per-table enqueue order.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrInvalidConfig = errors.New("outbox: invalid configuration")

func invalidConfig(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{ErrInvalidConfig}, args...)...)
}

// Message is one row written by Publisher.Enqueue.
type Message struct {
	DistrictCode string
	Topic        string
	EventID      uuid.UUID
	Payload      json.RawMessage
}

func (m Message) validate() error {
	switch {
	case strings.TrimSpace(m.DistrictCode) == "":
		return invalidConfig("district_code is required")
	case m.EventID == uuid.Nil:
		return invalidConfig("event_id is required")
	case m.Topic == "":
		return invalidConfig("topic is required")
	case len(m.Payload) == 0:
		return invalidConfig("payload is required")
	}
	return nil
}

// Meta describes a delivery. EventID is stable across redeliveries, so
// subscribers dedupe on it.
type Meta struct {
	Table        pgx.Identifier
	DistrictCode string
	Topic        string
	EventID      uuid.UUID
	Sequence     int64
	Attempts     int

	// W3C trace context captured at enqueue time.
	TraceParent string
	TraceState  string
}

type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg DispatchedMessage) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg DispatchedMessage) error {
	return f(ctx, msg)
}

var identPartRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseIdentifier accepts "table" or "schema.table".
func ParseIdentifier(s string) (pgx.Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalidConfig("table name is empty")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, invalidConfig("table %q: expected table or schema.table", s)
	}
	ident := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !identPartRe.MatchString(p) {
			return nil, invalidConfig("table %q: bad part %q", s, p)
		}
		ident = append(ident, p)
	}
	return ident, nil
}

func TableLabel(table pgx.Identifier) string {
	return strings.Join(table, ".")
}
