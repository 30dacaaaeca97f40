package leadership

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRole_Rank(t *testing.T) {
	cases := map[Role]int{
		RoleDistrictSupervisor: 0,
		RoleMala:               1,
		RoleMahaChakra:         2,
		RoleChakra:             3,
		RoleUpaChakra:          4,
	}
	for role, want := range cases {
		got, ok := role.Rank()
		require.True(t, ok, role)
		require.Equal(t, want, got, role)

		back, ok := RoleForRank(want)
		require.True(t, ok)
		require.Equal(t, role, back)
	}

	_, ok := RoleNone.Rank()
	require.False(t, ok)
	_, ok = RoleForRank(MaxRank + 1)
	require.False(t, ok)
}

func TestRole_Outranks(t *testing.T) {
	require.True(t, RoleDistrictSupervisor.Outranks(RoleMala))
	require.True(t, RoleChakra.Outranks(RoleUpaChakra))
	require.False(t, RoleChakra.Outranks(RoleChakra))
	require.False(t, RoleUpaChakra.Outranks(RoleMala))
	require.False(t, RoleNone.Outranks(RoleUpaChakra))
	require.True(t, RoleUpaChakra.Outranks(RoleNone))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" maha_chakra ")
	require.NoError(t, err)
	require.Equal(t, RoleMahaChakra, role)

	role, err = ParseRole("NONE")
	require.NoError(t, err)
	require.Equal(t, RoleNone, role)

	_, err = ParseRole("SECRETARY")
	require.Error(t, err)
}

func TestRolesUpTo(t *testing.T) {
	require.Equal(t, []Role{RoleDistrictSupervisor, RoleMala}, RolesUpTo(1))
	require.Len(t, RolesUpTo(99), MaxRank+1)
	require.Empty(t, RolesUpTo(-1))
}

func TestIDSet_SortedIsStable(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	c := uuid.MustParse("10000000-0000-0000-0000-000000000000")

	s := NewIDSet(a, b, c, a)
	require.Equal(t, 3, s.Len())
	require.Equal(t, []uuid.UUID{b, a, c}, s.Sorted())
	require.True(t, s.Union(NewIDSet(uuid.Nil)).Has(uuid.Nil))
}

func TestValidate(t *testing.T) {
	root := uuid.New()
	mala := uuid.New()
	chakra := uuid.New()
	member := uuid.New()

	nodes := []Node{
		{ID: root, DistrictCode: "D1", Role: RoleDistrictSupervisor},
		{ID: mala, DistrictCode: "D1", Role: RoleMala, SupervisorID: &root},
		{ID: chakra, DistrictCode: "D1", Role: RoleChakra, SupervisorID: &mala},
		{ID: member, DistrictCode: "D1", Role: RoleNone, SupervisorID: &chakra},
	}
	require.Empty(t, Validate(nodes))

	t.Run("rank ordering", func(t *testing.T) {
		broken := append([]Node(nil), nodes...)
		broken[1].Role = RoleUpaChakra
		kinds := violationKinds(Validate(broken))
		require.Contains(t, kinds, ViolationRankOrdering)
	})

	t.Run("root with supervisor", func(t *testing.T) {
		broken := append([]Node(nil), nodes...)
		broken[0].SupervisorID = &mala
		kinds := violationKinds(Validate(broken))
		require.Contains(t, kinds, ViolationRootHasSupervisor)
		require.Contains(t, kinds, ViolationCycle)
	})

	t.Run("missing supervisor", func(t *testing.T) {
		broken := append([]Node(nil), nodes...)
		broken[2].SupervisorID = nil
		require.Equal(t, []ViolationKind{ViolationMissingSupervisor}, violationKinds(Validate(broken)))
	})

	t.Run("member as supervisor", func(t *testing.T) {
		other := uuid.New()
		broken := append([]Node(nil), nodes...)
		broken = append(broken, Node{ID: other, DistrictCode: "D1", Role: RoleNone, SupervisorID: &member})
		require.Equal(t, []ViolationKind{ViolationMemberSupervises}, violationKinds(Validate(broken)))
	})

	t.Run("cross district", func(t *testing.T) {
		broken := append([]Node(nil), nodes...)
		broken[3].DistrictCode = "D2"
		require.Equal(t, []ViolationKind{ViolationCrossDistrict}, violationKinds(Validate(broken)))
	})
}

func violationKinds(vs []Violation) []ViolationKind {
	out := make([]ViolationKind, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Kind)
	}
	return out
}
