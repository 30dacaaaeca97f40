package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

func ids(nodes []leadership.Node) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestFindCandidates_Filters(t *testing.T) {
	f := newFixture(t)
	f.seedD1()
	f.add("B2", "D1", leadership.RoleMala, "A")
	f.add("Z", "D2", leadership.RoleDistrictSupervisor, "")
	r := f.svc.resolver

	got, err := r.FindCandidates(f.ctx, "D1", 1, leadership.NewIDSet(idOf("B")))
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{idOf("A"), idOf("B2")}, ids(got))

	got, err = r.FindCandidates(f.ctx, "D1", leadership.MaxRank, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{idOf("A"), idOf("B"), idOf("B2"), idOf("C")}, ids(got))

	got, err = r.FindCandidates(f.ctx, "D1", 0, leadership.NewIDSet(idOf("A")))
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = r.FindCandidates(f.ctx, "D9", 4, nil)
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = r.FindCandidates(f.ctx, "D1", -1, nil)
	requireCode(t, err, CodeInvalidBody)
	_, err = r.FindCandidates(f.ctx, " ", 1, nil)
	requireCode(t, err, CodeInvalidBody)
}

func TestCheckEligible(t *testing.T) {
	a := leadership.Node{ID: idOf("A"), DistrictCode: "D1", Role: leadership.RoleDistrictSupervisor}
	m := leadership.Node{ID: idOf("M"), DistrictCode: "D1", Role: leadership.RoleNone}
	c := leadership.Node{ID: idOf("C"), DistrictCode: "D1", Role: leadership.RoleChakra}

	require.NoError(t, CheckEligible(a, "D1", 0, nil))
	requireCode(t, CheckEligible(a, "D2", 0, nil), CodeCrossDistrict)
	requireCode(t, CheckEligible(m, "D1", 4, nil), CodeInvalidRankOrdering)
	requireCode(t, CheckEligible(c, "D1", 2, nil), CodeInvalidRankOrdering)
	requireCode(t, CheckEligible(a, "D1", 2, leadership.NewIDSet(a.ID)), CodeIneligibleSupervisor)
}

func TestMaxRankFor(t *testing.T) {
	require.Equal(t, 2, MaxRankFor(leadership.Node{Role: leadership.RoleChakra}))
	require.Equal(t, leadership.MaxRank, MaxRankFor(leadership.Node{Role: leadership.RoleNone}))
	require.Equal(t, -1, MaxRankFor(leadership.Node{Role: leadership.RoleDistrictSupervisor}))
}
