package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

// HierarchyGraph is the only writer of role and supervisor_id. Every write is
// checked against the forest invariants before it reaches the repository, and
// every write expects the caller's transaction in ctx.
type HierarchyGraph struct {
	repo   HierarchyRepository
	people PersonDirectory
}

func NewHierarchyGraph(repo HierarchyRepository, people PersonDirectory) *HierarchyGraph {
	return &HierarchyGraph{repo: repo, people: people}
}

func isNotFound(err error) bool {
	return errors.Is(err, leadership.ErrNodeNotFound) || errors.Is(err, pgx.ErrNoRows) || errors.Is(err, ErrNotFound)
}

func (g *HierarchyGraph) GetNode(ctx context.Context, id uuid.UUID) (leadership.Node, error) {
	n, err := g.repo.GetNode(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return leadership.Node{}, errNotFound(id)
		}
		return leadership.Node{}, mapPgError(err)
	}
	return n, nil
}

func (g *HierarchyGraph) GetDirectSubordinates(ctx context.Context, id uuid.UUID) ([]leadership.Node, error) {
	if _, err := g.GetNode(ctx, id); err != nil {
		return nil, err
	}
	subs, err := g.repo.ListBySupervisors(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, mapPgError(err)
	}
	return subs, nil
}

// SetSupervisor re-parents one node, or detaches it when supervisorID is nil.
func (g *HierarchyGraph) SetSupervisor(ctx context.Context, subordinateID uuid.UUID, supervisorID *uuid.UUID) error {
	_, _, err := g.moveNode(ctx, subordinateID, supervisorID)
	return err
}

// SetRole changes a role in place, keeping the current supervisor.
func (g *HierarchyGraph) SetRole(ctx context.Context, id uuid.UUID, role leadership.Role) error {
	if !role.Valid() {
		return errInvalidBody("unknown role %q", role)
	}
	locked, err := g.lockNodes(ctx, id)
	if err != nil {
		return err
	}
	_, _, err = g.place(ctx, id, role, locked[id].SupervisorID)
	return err
}

// EnsureNode returns the node for a person, creating a plain member the first
// time the person is linked into the hierarchy.
func (g *HierarchyGraph) EnsureNode(ctx context.Context, id uuid.UUID) (leadership.Node, bool, error) {
	n, err := g.repo.GetNode(ctx, id)
	if err == nil {
		return n, false, nil
	}
	if !isNotFound(err) {
		return leadership.Node{}, false, mapPgError(err)
	}
	if g.people == nil {
		return leadership.Node{}, false, errNotFound(id)
	}

	district, err := g.people.DistrictOf(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return leadership.Node{}, false, errNotFound(id)
		}
		return leadership.Node{}, false, err
	}
	if district == "" {
		return leadership.Node{}, false, errInvalidBody("person %s has no district", id)
	}

	node := leadership.NewMember(id, district)
	if err := g.repo.InsertNode(ctx, node); err != nil {
		return leadership.Node{}, false, mapPgError(err)
	}
	return node, true, nil
}

func (g *HierarchyGraph) ListDistrict(ctx context.Context, districtCode string) ([]leadership.Node, error) {
	nodes, err := g.repo.ListDistrict(ctx, districtCode)
	if err != nil {
		return nil, mapPgError(err)
	}
	return nodes, nil
}

// CheckDistrict validates the stored district against the forest invariants.
func (g *HierarchyGraph) CheckDistrict(ctx context.Context, districtCode string) ([]leadership.Violation, error) {
	nodes, err := g.repo.ListDistrict(ctx, districtCode)
	if err != nil {
		return nil, mapPgError(err)
	}

	inDistrict := leadership.NewIDSet()
	for _, n := range nodes {
		inDistrict.Add(n.ID)
	}
	snapshot := append([]leadership.Node(nil), nodes...)
	for _, n := range nodes {
		if n.SupervisorID == nil || inDistrict.Has(*n.SupervisorID) {
			continue
		}
		outside, err := g.repo.GetNode(ctx, *n.SupervisorID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, mapPgError(err)
		}
		snapshot = append(snapshot, outside)
		inDistrict.Add(outside.ID)
	}

	var out []leadership.Violation
	for _, v := range leadership.Validate(snapshot) {
		if n, ok := findNode(nodes, v.NodeID); ok && n.DistrictCode == districtCode {
			out = append(out, v)
		}
	}
	return out, nil
}

func findNode(nodes []leadership.Node, id uuid.UUID) (leadership.Node, bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
	}
	return leadership.Node{}, false
}

func (g *HierarchyGraph) lockNodes(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]leadership.Node, error) {
	sorted := leadership.NewIDSet(ids...).Sorted()
	locked, err := g.repo.LockNodes(ctx, sorted)
	if err != nil {
		return nil, mapPgError(err)
	}
	for _, id := range sorted {
		if _, ok := locked[id]; !ok {
			return nil, errNotFound(id)
		}
	}
	return locked, nil
}

func (g *HierarchyGraph) moveNode(ctx context.Context, subordinateID uuid.UUID, supervisorID *uuid.UUID) (leadership.Node, leadership.Node, error) {
	ids := []uuid.UUID{subordinateID}
	if supervisorID != nil {
		ids = append(ids, *supervisorID)
	}
	locked, err := g.lockNodes(ctx, ids...)
	if err != nil {
		return leadership.Node{}, leadership.Node{}, err
	}

	sub := locked[subordinateID]
	var sup *leadership.Node
	if supervisorID != nil {
		s := locked[*supervisorID]
		sup = &s
	}
	if err := checkEdge(sub, sup); err != nil {
		return leadership.Node{}, leadership.Node{}, err
	}
	if sup != nil {
		if err := g.ensureAcyclic(ctx, sub.ID, sup.ID); err != nil {
			return leadership.Node{}, leadership.Node{}, err
		}
	}

	after := sub.WithPlacement(sub.Role, supervisorID)
	if err := g.repo.UpdatePlacement(ctx, sub.ID, after.Role, after.SupervisorID); err != nil {
		return leadership.Node{}, leadership.Node{}, mapPgError(err)
	}
	return sub, after, nil
}

// place sets role and supervisor together and validates the combined result, so
// transitions such as promotion to district supervisor never pass through an
// illegal intermediate state.
func (g *HierarchyGraph) place(ctx context.Context, id uuid.UUID, role leadership.Role, supervisorID *uuid.UUID) (leadership.Node, leadership.Node, error) {
	ids := []uuid.UUID{id}
	if supervisorID != nil {
		ids = append(ids, *supervisorID)
	}
	locked, err := g.lockNodes(ctx, ids...)
	if err != nil {
		return leadership.Node{}, leadership.Node{}, err
	}

	before := locked[id]
	after := before.WithPlacement(role, supervisorID)

	subs, err := g.repo.ListBySupervisors(ctx, []uuid.UUID{id})
	if err != nil {
		return leadership.Node{}, leadership.Node{}, mapPgError(err)
	}
	if err := checkRole(after, subs); err != nil {
		return leadership.Node{}, leadership.Node{}, err
	}

	var sup *leadership.Node
	if supervisorID != nil {
		s := locked[*supervisorID]
		sup = &s
	}
	if err := checkEdge(after, sup); err != nil {
		return leadership.Node{}, leadership.Node{}, err
	}
	if sup != nil && !leadership.SameSupervisor(before.SupervisorID, supervisorID) {
		if err := g.ensureAcyclic(ctx, id, sup.ID); err != nil {
			return leadership.Node{}, leadership.Node{}, err
		}
	}

	if err := g.repo.UpdatePlacement(ctx, id, after.Role, after.SupervisorID); err != nil {
		return leadership.Node{}, leadership.Node{}, mapPgError(err)
	}
	return before, after, nil
}

// ensureAcyclic walks up from the prospective supervisor; reaching the
// subordinate means the new edge would close a loop.
func (g *HierarchyGraph) ensureAcyclic(ctx context.Context, subordinateID, supervisorID uuid.UUID) error {
	seen := leadership.NewIDSet()
	cur := supervisorID
	for {
		if cur == subordinateID || seen.Has(cur) {
			return errCycle(subordinateID, supervisorID)
		}
		seen.Add(cur)

		n, err := g.repo.GetNode(ctx, cur)
		if err != nil {
			if isNotFound(err) {
				return errNotFound(cur)
			}
			return mapPgError(err)
		}
		if n.SupervisorID == nil {
			return nil
		}
		cur = *n.SupervisorID
	}
}

// checkEdge validates a single sub -> sup edge. A nil sup means the node is detached.
func checkEdge(sub leadership.Node, sup *leadership.Node) error {
	if sup == nil {
		if sub.Role.HasRank() && !sub.Role.IsRoot() {
			return errRankOrdering("%s %s must report to a higher-ranked supervisor", sub.Role, sub.ID)
		}
		return nil
	}
	if sub.Role.IsRoot() {
		return errRootWithSupervisor(sub.ID)
	}
	if sup.ID == sub.ID {
		return errCycle(sub.ID, sup.ID)
	}
	if sup.DistrictCode != sub.DistrictCode {
		return errCrossDistrict(sub, *sup)
	}
	if !sup.Role.HasRank() {
		return errRankOrdering("supervisor %s holds no role", sup.ID)
	}
	if sub.Role.HasRank() && !sup.Role.Outranks(sub.Role) {
		return errRankOrdering("supervisor %s (%s) does not outrank %s (%s)", sup.ID, sup.Role, sub.ID, sub.Role)
	}
	return nil
}

// checkRole validates a node's role against its own supervisor pointer and its
// current direct subordinates.
func checkRole(n leadership.Node, subordinates []leadership.Node) error {
	if n.Role.IsRoot() && n.SupervisorID != nil {
		return errRootWithSupervisor(n.ID)
	}
	if n.Role.HasRank() && !n.Role.IsRoot() && n.SupervisorID == nil {
		return errDangling(n.ID, n.Role)
	}
	for _, sub := range subordinates {
		if !n.Role.HasRank() {
			return errRankOrdering("node %s would hold no role while %s reports to it", n.ID, sub.ID)
		}
		if sub.Role.HasRank() && !n.Role.Outranks(sub.Role) {
			return errRankOrdering("%s would no longer outrank subordinate %s (%s)", n.Role, sub.ID, sub.Role)
		}
	}
	return nil
}
