package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

func inStoreTx(t *testing.T, f *fixture, fn func(ctx context.Context) error) error {
	t.Helper()
	return f.store.InTx(f.ctx, fn)
}

func TestHierarchyGraph_GetNode_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.graph.GetNode(f.ctx, uuid.New())
	svcErr := requireCode(t, err, CodeNotFound)
	require.Equal(t, 404, svcErr.Status)
}

func TestHierarchyGraph_GetDirectSubordinates_OneHopOnly(t *testing.T) {
	f := newFixture(t)
	f.seedD1()

	subs, err := f.svc.graph.GetDirectSubordinates(f.ctx, idOf("B"))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, idOf("C"), subs[0].ID)
}

func TestHierarchyGraph_SetSupervisor_Validation(t *testing.T) {
	f := newFixture(t)
	f.seedD1()
	f.add("Z", "D2", leadership.RoleDistrictSupervisor, "")
	f.add("N", "D1", leadership.RoleNone, "")

	cases := []struct {
		name string
		sub  uuid.UUID
		sup  *uuid.UUID
		code string
	}{
		{name: "supervisor does not outrank", sub: idOf("B"), sup: ptr(idOf("C")), code: CodeInvalidRankOrdering},
		{name: "supervisor without role", sub: idOf("N"), sup: ptr(idOf("M")), code: CodeInvalidRankOrdering},
		{name: "ranked node detached", sub: idOf("C"), sup: nil, code: CodeInvalidRankOrdering},
		{name: "cross district", sub: idOf("N"), sup: ptr(idOf("Z")), code: CodeCrossDistrict},
		{name: "root under supervisor", sub: idOf("A"), sup: ptr(idOf("B")), code: CodeRootMustHaveNoSupervisor},
		{name: "self", sub: idOf("N"), sup: ptr(idOf("N")), code: CodeCycleDetected},
		{name: "unknown subordinate", sub: uuid.New(), sup: ptr(idOf("A")), code: CodeNotFound},
		{name: "unknown supervisor", sub: idOf("N"), sup: ptr(uuid.New()), code: CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.store.Nodes()
			err := inStoreTx(t, f, func(ctx context.Context) error {
				return f.svc.graph.SetSupervisor(ctx, tc.sub, tc.sup)
			})
			requireCode(t, err, tc.code)
			require.Equal(t, before, f.store.Nodes())
		})
	}
}

func TestHierarchyGraph_SetSupervisor_MemberMoves(t *testing.T) {
	f := newFixture(t)
	f.seedD1()

	require.NoError(t, inStoreTx(t, f, func(ctx context.Context) error {
		return f.svc.graph.SetSupervisor(ctx, idOf("M"), ptr(idOf("A")))
	}))
	f.requireSupervisor("M", "A")

	require.NoError(t, inStoreTx(t, f, func(ctx context.Context) error {
		return f.svc.graph.SetSupervisor(ctx, idOf("M"), nil)
	}))
	f.requireSupervisor("M", "")
	f.requireValid("D1")
}

func TestHierarchyGraph_SetRole_Validation(t *testing.T) {
	f := newFixture(t)
	f.seedD1()
	f.add("N", "D1", leadership.RoleNone, "")

	err := inStoreTx(t, f, func(ctx context.Context) error {
		return f.svc.graph.SetRole(ctx, idOf("B"), leadership.RoleDistrictSupervisor)
	})
	requireCode(t, err, CodeRootMustHaveNoSupervisor)

	err = inStoreTx(t, f, func(ctx context.Context) error {
		return f.svc.graph.SetRole(ctx, idOf("N"), leadership.RoleChakra)
	})
	requireCode(t, err, CodeDanglingSupervisor)

	// B would no longer outrank C.
	err = inStoreTx(t, f, func(ctx context.Context) error {
		return f.svc.graph.SetRole(ctx, idOf("B"), leadership.RoleChakra)
	})
	requireCode(t, err, CodeInvalidRankOrdering)

	// C would hold no role while M still reports to it.
	err = inStoreTx(t, f, func(ctx context.Context) error {
		return f.svc.graph.SetRole(ctx, idOf("C"), leadership.RoleNone)
	})
	requireCode(t, err, CodeInvalidRankOrdering)

	err = inStoreTx(t, f, func(ctx context.Context) error {
		return f.svc.graph.SetRole(ctx, idOf("C"), leadership.Role("BISHOP"))
	})
	requireCode(t, err, CodeInvalidBody)

	require.NoError(t, inStoreTx(t, f, func(ctx context.Context) error {
		return f.svc.graph.SetRole(ctx, idOf("C"), leadership.RoleMahaChakra)
	}))
	require.Equal(t, leadership.RoleMahaChakra, f.node("C").Role)
	f.requireValid("D1")
}

func TestHierarchyGraph_EnsureNode_CreatesMemberFromDirectory(t *testing.T) {
	f := newFixture(t)
	id := f.person("P", "D3")

	var created bool
	require.NoError(t, inStoreTx(t, f, func(ctx context.Context) error {
		n, ok, err := f.svc.graph.EnsureNode(ctx, id)
		created = ok
		require.Equal(t, "D3", n.DistrictCode)
		require.Equal(t, leadership.RoleNone, n.Role)
		return err
	}))
	require.True(t, created)

	require.NoError(t, inStoreTx(t, f, func(ctx context.Context) error {
		_, ok, err := f.svc.graph.EnsureNode(ctx, id)
		created = ok
		return err
	}))
	require.False(t, created)

	err := inStoreTx(t, f, func(ctx context.Context) error {
		_, _, err := f.svc.graph.EnsureNode(ctx, uuid.New())
		return err
	})
	requireCode(t, err, CodeNotFound)
}

func TestHierarchyGraph_CheckDistrict_ReportsStoredViolations(t *testing.T) {
	f := newFixture(t)
	f.seedD1()
	f.add("Z", "D2", leadership.RoleDistrictSupervisor, "")
	// Written directly, bypassing the graph.
	f.add("X", "D1", leadership.RoleChakra, "Z")
	f.add("Y", "D1", leadership.RoleMala, "")

	violations, err := f.svc.CheckDistrict(f.ctx, "D1")
	require.NoError(t, err)

	kinds := map[uuid.UUID]leadership.ViolationKind{}
	for _, v := range violations {
		kinds[v.NodeID] = v.Kind
	}
	require.Equal(t, leadership.ViolationCrossDistrict, kinds[idOf("X")])
	require.Equal(t, leadership.ViolationMissingSupervisor, kinds[idOf("Y")])
	require.NotContains(t, kinds, idOf("Z"))

	_, err = f.svc.CheckDistrict(f.ctx, "")
	requireCode(t, err, CodeInvalidBody)
}
