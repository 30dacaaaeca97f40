package leadership

import (
	"fmt"

	"github.com/google/uuid"
)

type ViolationKind string

const (
	ViolationRankOrdering      ViolationKind = "rank_ordering"
	ViolationRootHasSupervisor ViolationKind = "root_has_supervisor"
	ViolationMissingSupervisor ViolationKind = "missing_supervisor"
	ViolationCrossDistrict     ViolationKind = "cross_district"
	ViolationUnknownSupervisor ViolationKind = "unknown_supervisor"
	ViolationMemberSupervises  ViolationKind = "member_supervises"
	ViolationCycle             ViolationKind = "cycle"
	ViolationInvalidRole       ViolationKind = "invalid_role"
)

type Violation struct {
	NodeID uuid.UUID     `json:"node_id"`
	Kind   ViolationKind `json:"kind"`
	Detail string        `json:"detail"`
}

// Validate checks a district snapshot against the forest invariants. Supervisors
// outside the snapshot are reported as unknown, so callers pass a whole district.
func Validate(nodes []Node) []Violation {
	byID := make(map[uuid.UUID]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	var out []Violation
	add := func(id uuid.UUID, kind ViolationKind, format string, args ...any) {
		out = append(out, Violation{NodeID: id, Kind: kind, Detail: fmt.Sprintf(format, args...)})
	}

	for _, n := range nodes {
		if !n.Role.Valid() {
			add(n.ID, ViolationInvalidRole, "role %q is not recognised", n.Role)
			continue
		}
		if n.Role.IsRoot() && n.SupervisorID != nil {
			add(n.ID, ViolationRootHasSupervisor, "district supervisor reports to %s", n.SupervisorID)
		}
		if n.Role.HasRank() && !n.Role.IsRoot() && n.SupervisorID == nil {
			add(n.ID, ViolationMissingSupervisor, "%s has no supervisor", n.Role)
		}
		if n.SupervisorID == nil {
			continue
		}
		sup, ok := byID[*n.SupervisorID]
		if !ok {
			add(n.ID, ViolationUnknownSupervisor, "supervisor %s is not in district %s", n.SupervisorID, n.DistrictCode)
			continue
		}
		if sup.DistrictCode != n.DistrictCode {
			add(n.ID, ViolationCrossDistrict, "supervisor %s belongs to district %s", sup.ID, sup.DistrictCode)
		}
		if !sup.Role.HasRank() {
			add(n.ID, ViolationMemberSupervises, "supervisor %s holds no role", sup.ID)
			continue
		}
		if n.Role.HasRank() && !sup.Role.Outranks(n.Role) {
			add(n.ID, ViolationRankOrdering, "supervisor %s (%s) does not outrank %s", sup.ID, sup.Role, n.Role)
		}
	}

	for _, id := range findCycles(byID) {
		add(id, ViolationCycle, "node is part of a supervisor cycle")
	}
	return out
}

func findCycles(byID map[uuid.UUID]Node) []uuid.UUID {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[uuid.UUID]int, len(byID))
	var cyclic []uuid.UUID

	ids := make([]uuid.UUID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	SortIDs(ids)

	for _, start := range ids {
		if state[start] != unvisited {
			continue
		}
		var path []uuid.UUID
		cur := start
		for {
			if state[cur] == onPath {
				for i := len(path) - 1; i >= 0; i-- {
					cyclic = append(cyclic, path[i])
					if path[i] == cur {
						break
					}
				}
				break
			}
			if state[cur] == done {
				break
			}
			state[cur] = onPath
			path = append(path, cur)
			n := byID[cur]
			if n.SupervisorID == nil {
				break
			}
			if _, ok := byID[*n.SupervisorID]; !ok {
				break
			}
			cur = *n.SupervisorID
		}
		for _, id := range path {
			state[id] = done
		}
	}
	return cyclic
}
