package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
	"github.com/devotee-admin/hierarchy/pkg/composables"
)

const nodeColumns = `id, district_code, role, supervisor_id, created_at, updated_at`

type HierarchyRepository struct{}

var _ services.HierarchyRepository = (*HierarchyRepository)(nil)

func NewHierarchyRepository() *HierarchyRepository {
	return &HierarchyRepository{}
}

func (r *HierarchyRepository) GetNode(ctx context.Context, id uuid.UUID) (leadership.Node, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return leadership.Node{}, err
	}
	row := tx.QueryRow(ctx, `SELECT `+nodeColumns+` FROM leadership_nodes WHERE id = $1`, pgUUID(id))
	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leadership.Node{}, leadership.ErrNodeNotFound
		}
		return leadership.Node{}, errors.Wrap(err, "get leadership node")
	}
	return n, nil
}

// LockNodes takes row locks in id order so concurrent writers never deadlock on
// each other's node sets.
func (r *HierarchyRepository) LockNodes(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]leadership.Node, error) {
	if !composables.InTxScope(ctx) {
		return nil, composables.ErrNoTx
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+nodeColumns+`
FROM leadership_nodes
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE
`, pgUUIDs(ids))
	if err != nil {
		return nil, errors.Wrap(err, "lock leadership nodes")
	}
	nodes, err := collectNodes(rows)
	if err != nil {
		return nil, errors.Wrap(err, "lock leadership nodes")
	}
	out := make(map[uuid.UUID]leadership.Node, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n
	}
	return out, nil
}

func (r *HierarchyRepository) ListBySupervisors(ctx context.Context, supervisorIDs []uuid.UUID) ([]leadership.Node, error) {
	if len(supervisorIDs) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+nodeColumns+`
FROM leadership_nodes
WHERE supervisor_id = ANY($1)
ORDER BY id
`, pgUUIDs(supervisorIDs))
	if err != nil {
		return nil, errors.Wrap(err, "list subordinates")
	}
	return collectNodes(rows)
}

func (r *HierarchyRepository) ListByRoles(ctx context.Context, districtCode string, roles []leadership.Role) ([]leadership.Node, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.String())
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+nodeColumns+`
FROM leadership_nodes
WHERE district_code = $1
	AND role = ANY($2)
ORDER BY array_position($2::text[], role), id
`, districtCode, names)
	if err != nil {
		return nil, errors.Wrap(err, "list candidates")
	}
	return collectNodes(rows)
}

func (r *HierarchyRepository) ListDistrict(ctx context.Context, districtCode string) ([]leadership.Node, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+nodeColumns+`
FROM leadership_nodes
WHERE district_code = $1
ORDER BY id
`, districtCode)
	if err != nil {
		return nil, errors.Wrap(err, "list district")
	}
	return collectNodes(rows)
}

func (r *HierarchyRepository) InsertNode(ctx context.Context, node leadership.Node) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO leadership_nodes (id, district_code, role, supervisor_id)
VALUES ($1, $2, $3, $4)
`, pgUUID(node.ID), node.DistrictCode, node.Role.String(), pgNullableUUID(node.SupervisorID))
	return err
}

func (r *HierarchyRepository) UpdatePlacement(ctx context.Context, id uuid.UUID, role leadership.Role, supervisorID *uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
UPDATE leadership_nodes
SET role = $2,
	supervisor_id = $3,
	updated_at = now()
WHERE id = $1
`, pgUUID(id), role.String(), pgNullableUUID(supervisorID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return leadership.ErrNodeNotFound
	}
	return nil
}

func scanNode(row pgx.Row) (leadership.Node, error) {
	var (
		n    leadership.Node
		role string
		sup  pgtype.UUID
	)
	if err := row.Scan(&n.ID, &n.DistrictCode, &role, &sup, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return leadership.Node{}, err
	}
	n.Role = leadership.Role(role)
	if sup.Valid {
		id := uuid.UUID(sup.Bytes)
		n.SupervisorID = &id
	}
	return n, nil
}

func collectNodes(rows pgx.Rows) ([]leadership.Node, error) {
	defer rows.Close()
	out := make([]leadership.Node, 0, 16)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgNullableUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgUUID(*id)
}

func pgUUIDs(ids []uuid.UUID) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		out = append(out, pgUUID(id))
	}
	return out
}
