package handlers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/pkg/composables"
	"github.com/devotee-admin/hierarchy/pkg/eventbus"
	"github.com/devotee-admin/hierarchy/pkg/outbox"
)

type AuditStore interface {
	Insert(ctx context.Context, ev events.HierarchyEventV1) (bool, error)
}

// AuditHandler receives relayed hierarchy events. Every event is logged; when a
// store is configured it is also written to the audit log.
type AuditHandler struct {
	log   *logrus.Entry
	store AuditStore
	pool  *pgxpool.Pool
}

// NewAuditHandler builds the handler. store and pool may be nil, in which case
// events are only logged.
func NewAuditHandler(log *logrus.Entry, store AuditStore, pool *pgxpool.Pool) *AuditHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &AuditHandler{log: log, store: store, pool: pool}
}

func (h *AuditHandler) Register(bus eventbus.EventBus) {
	bus.Subscribe(h.Handle)
}

func (h *AuditHandler) Handle(ctx context.Context, meta *outbox.Meta, payload json.RawMessage) error {
	if !strings.HasPrefix(meta.Topic, "hierarchy.") {
		return nil
	}
	var ev events.HierarchyEventV1
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.Wrapf(err, "decode %s event %s", meta.Topic, meta.EventID)
	}
	if ev.EventVersion != events.EventVersionV1 {
		return errors.Errorf("unsupported %s event version %d", meta.Topic, ev.EventVersion)
	}

	fields := logrus.Fields{
		"event_id":      ev.EventID,
		"request_id":    ev.RequestID,
		"district_code": ev.DistrictCode,
		"change_type":   ev.ChangeType,
		"entity_id":     ev.EntityID,
		"initiator_id":  ev.InitiatorID,
		"reason":        ev.Reason,
		"attempts":      meta.Attempts,
	}
	if ev.CausedBy != nil {
		fields["caused_by"] = *ev.CausedBy
	}
	if before, after, err := ev.Placements(); err == nil {
		fields["new_role"] = after.Role
		fields["new_supervisor_id"] = after.SupervisorID
		if before != nil {
			fields["old_role"] = before.Role
			fields["old_supervisor_id"] = before.SupervisorID
		}
	}
	if patch, err := ev.Changes(); err == nil && len(patch) > 0 {
		fields["changes"] = patch.String()
	}
	h.log.WithFields(fields).Info("hierarchy change committed")

	if h.store == nil {
		return nil
	}
	if h.pool == nil {
		return h.record(ctx, ev)
	}
	return composables.InTx(composables.WithPool(ctx, h.pool), func(txCtx context.Context) error {
		return h.record(txCtx, ev)
	})
}

func (h *AuditHandler) record(ctx context.Context, ev events.HierarchyEventV1) error {
	inserted, err := h.store.Insert(ctx, ev)
	if err != nil {
		return err
	}
	if !inserted {
		h.log.WithField("event_id", ev.EventID).Debug("hierarchy audit event already recorded")
	}
	return nil
}
