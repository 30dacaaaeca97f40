package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
	"github.com/devotee-admin/hierarchy/pkg/composables"
)

// HierarchyRepository persists leadership nodes. Writes and Lock* calls run inside
// the transaction bound to ctx; reads may run outside one.
type HierarchyRepository interface {
	GetNode(ctx context.Context, id uuid.UUID) (leadership.Node, error)
	// LockNodes takes row locks in id order and returns the nodes found.
	// Unknown ids are simply absent from the result.
	LockNodes(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]leadership.Node, error)
	ListBySupervisors(ctx context.Context, supervisorIDs []uuid.UUID) ([]leadership.Node, error)
	ListByRoles(ctx context.Context, districtCode string, roles []leadership.Role) ([]leadership.Node, error)
	ListDistrict(ctx context.Context, districtCode string) ([]leadership.Node, error)
	InsertNode(ctx context.Context, node leadership.Node) error
	UpdatePlacement(ctx context.Context, id uuid.UUID, role leadership.Role, supervisorID *uuid.UUID) error
}

// PersonDirectory is the narrow read view of the person registry.
type PersonDirectory interface {
	DistrictOf(ctx context.Context, personID uuid.UUID) (string, error)
	Labels(ctx context.Context, personIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

// EventSink receives audit events inside the writing transaction, so an event
// exists if and only if its change committed.
type EventSink interface {
	Emit(ctx context.Context, ev events.HierarchyEventV1) error
}

type Transactor interface {
	// InTx runs fn in a new transaction and commits when fn returns nil.
	InTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type poolTransactor struct{}

// NewPoolTransactor runs transactions on the pgx pool bound to the context.
func NewPoolTransactor() Transactor {
	return poolTransactor{}
}

func (poolTransactor) InTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return composables.InTx(ctx, fn)
}

func inTx[T any](ctx context.Context, tr Transactor, fn func(txCtx context.Context) (T, error)) (T, error) {
	var out T
	err := tr.InTx(ctx, func(txCtx context.Context) error {
		v, err := fn(txCtx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
