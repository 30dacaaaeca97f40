package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

func seedMixedRanks(f *fixture) {
	f.add("A", "D1", leadership.RoleDistrictSupervisor, "")
	f.add("B", "D1", leadership.RoleMala, "A")
	f.add("X", "D1", leadership.RoleMahaChakra, "A")
	f.add("C1", "D1", leadership.RoleMahaChakra, "B")
	f.add("C2", "D1", leadership.RoleChakra, "B")
	f.add("M", "D1", leadership.RoleNone, "C2")
}

func TestReassignSubordinates_BulkRollsBackOnAnyIllegalEdge(t *testing.T) {
	f := newFixture(t)
	seedMixedRanks(f)
	before := f.store.Nodes()

	res, err := f.svc.ReassignSubordinates(f.ctx, ReassignmentRequest{
		Mode:           ReassignmentBulk,
		SupervisorID:   idOf("X"),
		SubordinateIDs: []uuid.UUID{idOf("C2"), idOf("C1")},
	}, testReason)
	require.Nil(t, res)
	svcErr := requireCode(t, err, CodePartialValidationFailure)
	require.Equal(t, 409, svcErr.Status)
	require.Equal(t, idOf("C1").String(), svcErr.Meta["subordinate_id"])
	require.Equal(t, CodeInvalidRankOrdering, svcErr.Meta["reason_code"])
	require.ErrorIs(t, err, ErrInvalidRankOrdering)

	require.Equal(t, before, f.store.Nodes())
	require.Empty(t, f.store.Events())
}

func TestReassignSubordinates_BulkCommitsAllEdges(t *testing.T) {
	f := newFixture(t)
	seedMixedRanks(f)

	res, err := f.svc.ReassignSubordinates(f.ctx, ReassignmentRequest{
		Mode:           ReassignmentBulk,
		SupervisorID:   idOf("A"),
		SubordinateIDs: []uuid.UUID{idOf("C1"), idOf("C2")},
	}, testReason)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.ElementsMatch(t, []uuid.UUID{idOf("C1"), idOf("C2")}, res.Succeeded)
	f.requireSupervisor("C1", "A")
	f.requireSupervisor("C2", "A")
	f.requireSupervisor("M", "C2")
	f.requireValid("D1")
	require.Len(t, f.store.Events(), 2)
}

func TestReassignSubordinates_IndividualReportsPartialSuccess(t *testing.T) {
	f := newFixture(t)
	seedMixedRanks(f)

	res, err := f.svc.ReassignSubordinates(f.ctx, ReassignmentRequest{
		Mode: ReassignmentIndividual,
		Assignments: []Assignment{
			{SubordinateID: idOf("C2"), SupervisorID: idOf("X")},
			{SubordinateID: idOf("C1"), SupervisorID: idOf("M")},
		},
	}, testReason)
	require.NoError(t, err)
	require.False(t, res.OK())
	require.Equal(t, []uuid.UUID{idOf("C2")}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	require.Equal(t, idOf("C1"), res.Failed[0].SubordinateID)
	require.Equal(t, CodeInvalidRankOrdering, res.Failed[0].Code)

	f.requireSupervisor("C2", "X")
	f.requireSupervisor("C1", "B")
	f.requireValid("D1")
	require.Len(t, f.store.Events(), 1)
}

func TestReassignSubordinates_RevalidatesEligibility(t *testing.T) {
	f := newFixture(t)
	seedMixedRanks(f)
	f.add("Z", "D2", leadership.RoleDistrictSupervisor, "")

	res, err := f.svc.ReassignSubordinates(f.ctx, ReassignmentRequest{
		Mode: ReassignmentIndividual,
		Assignments: []Assignment{
			{SubordinateID: idOf("C1"), SupervisorID: idOf("Z")},
			{SubordinateID: idOf("M"), SupervisorID: idOf("C1")},
			{SubordinateID: idOf("C2"), SupervisorID: uuid.New()},
		},
	}, testReason)
	require.NoError(t, err)
	require.Empty(t, res.Succeeded)
	require.Len(t, res.Failed, 3)
	require.Equal(t, CodeCrossDistrict, res.Failed[0].Code)
	// C1 is itself being reassigned, so it cannot take new subordinates.
	require.Equal(t, CodeIneligibleSupervisor, res.Failed[1].Code)
	require.Equal(t, CodeNotFound, res.Failed[2].Code)
}

func TestReassignSubordinates_RejectsSelfSupervision(t *testing.T) {
	f := newFixture(t)
	seedMixedRanks(f)
	before := f.store.Nodes()

	_, err := f.svc.ReassignSubordinates(f.ctx, ReassignmentRequest{
		Mode:           ReassignmentBulk,
		SupervisorID:   idOf("C2"),
		SubordinateIDs: []uuid.UUID{idOf("C2")},
	}, testReason)
	requireCode(t, err, CodePartialValidationFailure)
	require.Equal(t, before, f.store.Nodes())
}

func TestReassignSubordinates_RequestValidation(t *testing.T) {
	f := newFixture(t)
	seedMixedRanks(f)

	cases := []struct {
		name string
		req  ReassignmentRequest
	}{
		{name: "unknown mode", req: ReassignmentRequest{Mode: "parallel"}},
		{name: "bulk without supervisor", req: ReassignmentRequest{Mode: ReassignmentBulk, SubordinateIDs: []uuid.UUID{idOf("C1")}}},
		{name: "bulk without subordinates", req: ReassignmentRequest{Mode: ReassignmentBulk, SupervisorID: idOf("A")}},
		{name: "bulk duplicate", req: ReassignmentRequest{Mode: ReassignmentBulk, SupervisorID: idOf("A"), SubordinateIDs: []uuid.UUID{idOf("C1"), idOf("C1")}}},
		{name: "individual duplicate", req: ReassignmentRequest{Mode: ReassignmentIndividual, Assignments: []Assignment{
			{SubordinateID: idOf("C1"), SupervisorID: idOf("A")},
			{SubordinateID: idOf("C1"), SupervisorID: idOf("X")},
		}}},
		{name: "individual with bulk fields", req: ReassignmentRequest{Mode: ReassignmentIndividual, SupervisorID: idOf("A")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ReassignSubordinates(f.ctx, tc.req, testReason)
			requireCode(t, err, CodeInvalidBody)
		})
	}
}
