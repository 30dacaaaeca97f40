package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/pkg/composables"
)

const auditColumns = `event_id, event_version, request_id, district_code, transaction_time, initiator_id,
	change_type, entity_type, entity_id, reason, caused_by, old_values, new_values`

// AuditLogRepository stores delivered hierarchy events. Inserts are keyed on
// event_id, so outbox redeliveries are absorbed.
type AuditLogRepository struct{}

func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

func (r *AuditLogRepository) Insert(ctx context.Context, ev events.HierarchyEventV1) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var oldValues any
	if len(ev.OldValues) > 0 {
		oldValues = []byte(ev.OldValues)
	}
	tag, err := tx.Exec(ctx, `
INSERT INTO hierarchy_audit_log (`+auditColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (event_id) DO NOTHING
`,
		pgUUID(ev.EventID), ev.EventVersion, ev.RequestID, ev.DistrictCode, ev.TransactionTime,
		pgUUID(ev.InitiatorID), ev.ChangeType, ev.EntityType, pgUUID(ev.EntityID), ev.Reason,
		pgNullableUUID(ev.CausedBy), oldValues, []byte(ev.NewValues),
	)
	if err != nil {
		return false, errors.Wrap(err, "insert hierarchy audit log")
	}
	return tag.RowsAffected() == 1, nil
}

// ListByEntity returns the audit trail of one node, oldest first.
func (r *AuditLogRepository) ListByEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]events.HierarchyEventV1, error) {
	if limit <= 0 {
		limit = 50
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+auditColumns+`
FROM hierarchy_audit_log
WHERE entity_id = $1
ORDER BY transaction_time, id
LIMIT $2
`, pgUUID(entityID), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list hierarchy audit log")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.HierarchyEventV1, error) {
		var (
			ev        events.HierarchyEventV1
			causedBy  *uuid.UUID
			oldValues []byte
			newValues []byte
		)
		err := row.Scan(&ev.EventID, &ev.EventVersion, &ev.RequestID, &ev.DistrictCode, &ev.TransactionTime,
			&ev.InitiatorID, &ev.ChangeType, &ev.EntityType, &ev.EntityID, &ev.Reason, &causedBy, &oldValues, &newValues)
		ev.CausedBy = causedBy
		ev.OldValues = oldValues
		ev.NewValues = newValues
		return ev, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list hierarchy audit log")
	}
	return out, nil
}
