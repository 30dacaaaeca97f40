package leadership

import (
	"fmt"
	"strings"
)

// Role is a leadership position inside a district. Authority is carried by the
// rank, never by the position of a role in some list.
type Role string

const (
	RoleNone               Role = "NONE"
	RoleUpaChakra          Role = "UPA_CHAKRA"
	RoleChakra             Role = "CHAKRA"
	RoleMahaChakra         Role = "MAHA_CHAKRA"
	RoleMala               Role = "MALA"
	RoleDistrictSupervisor Role = "DISTRICT_SUPERVISOR"
)

const (
	// RootRank is held by the district supervisor, the root of a district forest.
	RootRank = 0
	// MaxRank is the lowest authority a leader can hold.
	MaxRank = 4
)

var roleRanks = map[Role]int{
	RoleDistrictSupervisor: 0,
	RoleMala:               1,
	RoleMahaChakra:         2,
	RoleChakra:             3,
	RoleUpaChakra:          4,
}

// Rank returns the integer authority of r. Lower is higher authority.
// RoleNone has no rank.
func (r Role) Rank() (int, bool) {
	rank, ok := roleRanks[r]
	return rank, ok
}

func (r Role) HasRank() bool {
	_, ok := roleRanks[r]
	return ok
}

func (r Role) IsRoot() bool {
	return r == RoleDistrictSupervisor
}

func (r Role) Valid() bool {
	return r == RoleNone || r.HasRank()
}

// Outranks reports whether r holds strictly more authority than other.
// A role without rank never outranks anything.
func (r Role) Outranks(other Role) bool {
	a, ok := r.Rank()
	if !ok {
		return false
	}
	b, ok := other.Rank()
	if !ok {
		return true
	}
	return a < b
}

func (r Role) String() string {
	return string(r)
}

func ParseRole(v string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(v)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", v)
	}
	return role, nil
}

func RoleForRank(rank int) (Role, bool) {
	for role, r := range roleRanks {
		if r == rank {
			return role, true
		}
	}
	return "", false
}

// RolesUpTo lists every ranked role whose rank is <= maxRank, highest authority first.
func RolesUpTo(maxRank int) []Role {
	if maxRank > MaxRank {
		maxRank = MaxRank
	}
	out := make([]Role, 0, maxRank+1)
	for rank := RootRank; rank <= maxRank; rank++ {
		role, _ := RoleForRank(rank)
		out = append(out, role)
	}
	return out
}
