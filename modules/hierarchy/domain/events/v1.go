package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wI2L/jsondiff"
)

const (
	TopicRoleChangedV1       = "hierarchy.role.changed.v1"
	TopicSupervisorChangedV1 = "hierarchy.supervisor.changed.v1"
	EventVersionV1           = 1

	EntityTypeLeadershipNode = "leadership_node"
)

const (
	ChangeRoleAppointed        = "role.appointed"
	ChangeRolePromoted         = "role.promoted"
	ChangeRoleDemoted          = "role.demoted"
	ChangeRoleRemoved          = "role.removed"
	ChangeSupervisorAssigned   = "supervisor.assigned"
	ChangeSupervisorReassigned = "supervisor.reassigned"
	ChangeSupervisorCleared    = "supervisor.cleared"
)

// PlacementV1 is the audited part of a node: its role and its direct supervisor.
type PlacementV1 struct {
	Role         string     `json:"role"`
	SupervisorID *uuid.UUID `json:"supervisor_id"`
}

// HierarchyEventV1 is the audit record emitted for every committed role or edge change.
type HierarchyEventV1 struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventVersion    int             `json:"event_version"`
	RequestID       string          `json:"request_id"`
	DistrictCode    string          `json:"district_code"`
	TransactionTime time.Time       `json:"transaction_time"`
	InitiatorID     uuid.UUID       `json:"initiator_id"`
	ChangeType      string          `json:"change_type"`
	EntityType      string          `json:"entity_type"`
	EntityID        uuid.UUID       `json:"entity_id"`
	Reason          string          `json:"reason"`
	CausedBy        *uuid.UUID      `json:"caused_by,omitempty"`
	OldValues       json.RawMessage `json:"old_values,omitempty"`
	NewValues       json.RawMessage `json:"new_values"`
}

func (e HierarchyEventV1) Topic() string {
	switch e.ChangeType {
	case ChangeSupervisorAssigned, ChangeSupervisorReassigned, ChangeSupervisorCleared:
		return TopicSupervisorChangedV1
	default:
		return TopicRoleChangedV1
	}
}

func (e HierarchyEventV1) Placements() (before *PlacementV1, after PlacementV1, err error) {
	if len(e.OldValues) > 0 {
		before = &PlacementV1{}
		if err := json.Unmarshal(e.OldValues, before); err != nil {
			return nil, PlacementV1{}, err
		}
	}
	if err := json.Unmarshal(e.NewValues, &after); err != nil {
		return nil, PlacementV1{}, err
	}
	return before, after, nil
}

// Changes returns the JSON Patch that turns the old placement into the new one.
// Events without old values diff against an empty object.
func (e HierarchyEventV1) Changes() (jsondiff.Patch, error) {
	old := e.OldValues
	if len(old) == 0 || string(old) == "null" {
		old = json.RawMessage(`{}`)
	}
	return jsondiff.CompareJSON(old, e.NewValues)
}
