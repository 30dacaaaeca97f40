package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

// AuditContext travels with every write so each committed change can be traced
// back to the request, the administrator and the stated reason.
type AuditContext struct {
	RequestID   string
	InitiatorID uuid.UUID
	Reason      string
	At          time.Time
	// CausedBy is set on edge changes made on behalf of another node's transition.
	CausedBy *uuid.UUID
}

func NewAuditContext(requestID string, initiatorID uuid.UUID, reason string) (AuditContext, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return AuditContext{}, errInvalidBody("reason is required")
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return AuditContext{
		RequestID:   requestID,
		InitiatorID: initiatorID,
		Reason:      reason,
		At:          time.Now().UTC(),
	}, nil
}

func (a AuditContext) causedBy(id uuid.UUID) AuditContext {
	a.CausedBy = &id
	return a
}

func placementOf(n leadership.Node) events.PlacementV1 {
	return events.PlacementV1{Role: n.Role.String(), SupervisorID: leadership.CloneID(n.SupervisorID)}
}

func buildEventV1(a AuditContext, changeType string, before *leadership.Node, after leadership.Node) (events.HierarchyEventV1, error) {
	newValues, err := json.Marshal(placementOf(after))
	if err != nil {
		return events.HierarchyEventV1{}, err
	}
	var oldValues json.RawMessage
	if before != nil {
		oldValues, err = json.Marshal(placementOf(*before))
		if err != nil {
			return events.HierarchyEventV1{}, err
		}
	}
	return events.HierarchyEventV1{
		EventID:         uuid.New(),
		EventVersion:    events.EventVersionV1,
		RequestID:       a.RequestID,
		DistrictCode:    after.DistrictCode,
		TransactionTime: a.At,
		InitiatorID:     a.InitiatorID,
		ChangeType:      changeType,
		EntityType:      events.EntityTypeLeadershipNode,
		EntityID:        after.ID,
		Reason:          a.Reason,
		CausedBy:        leadership.CloneID(a.CausedBy),
		OldValues:       oldValues,
		NewValues:       newValues,
	}, nil
}

func emit(ctx context.Context, sink EventSink, a AuditContext, changeType string, before *leadership.Node, after leadership.Node) (events.HierarchyEventV1, error) {
	ev, err := buildEventV1(a, changeType, before, after)
	if err != nil {
		return events.HierarchyEventV1{}, err
	}
	if sink == nil {
		return ev, nil
	}
	if err := sink.Emit(ctx, ev); err != nil {
		return events.HierarchyEventV1{}, err
	}
	return ev, nil
}
