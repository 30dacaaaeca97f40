package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

func TestSubordinateDiscovery_DirectAndTransitive(t *testing.T) {
	f := newFixture(t)
	f.seedD1()
	f.add("B2", "D1", leadership.RoleMala, "A")
	f.add("M2", "D1", leadership.RoleNone, "B2")

	direct, err := f.svc.discovery.DirectSubordinates(f.ctx, idOf("A"))
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{idOf("B"), idOf("B2")}, direct.Sorted())

	all, err := f.svc.discovery.AllSubordinates(f.ctx, idOf("A"))
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{idOf("B"), idOf("B2"), idOf("C"), idOf("M"), idOf("M2")}, all.Sorted())
	require.False(t, all.Has(idOf("A")))

	leaf, err := f.svc.discovery.AllSubordinates(f.ctx, idOf("M"))
	require.NoError(t, err)
	require.Zero(t, leaf.Len())

	_, err = f.svc.discovery.AllSubordinates(f.ctx, uuid.New())
	requireCode(t, err, CodeNotFound)
}

func TestSubordinateDiscovery_TerminatesOnStoredCycle(t *testing.T) {
	f := newFixture(t)
	// Written directly: the graph would never accept this loop.
	f.add("P", "D1", leadership.RoleChakra, "Q")
	f.add("Q", "D1", leadership.RoleChakra, "P")
	f.add("R", "D1", leadership.RoleNone, "Q")

	all, err := f.svc.discovery.AllSubordinates(f.ctx, idOf("P"))
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{idOf("Q"), idOf("R")}, all.Sorted())
}

func TestSubordinateDiscovery_Limit(t *testing.T) {
	f := newFixture(t)
	f.seedD1()
	d := NewSubordinateDiscovery(f.svc.graph, 2)

	_, err := d.AllSubordinates(f.ctx, idOf("A"))
	requireCode(t, err, CodeDiscoveryLimit)

	all, err := d.AllSubordinates(f.ctx, idOf("B"))
	require.NoError(t, err)
	require.Equal(t, 2, all.Len())
}

func TestListAllSubordinates_CarriesLabelsAndRanks(t *testing.T) {
	f := newFixture(t)
	f.seedD1()

	views, err := f.svc.ListAllSubordinates(f.ctx, idOf("B"))
	require.NoError(t, err)
	require.Len(t, views, 2)
	byID := map[uuid.UUID]NodeView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	require.Equal(t, "C", byID[idOf("C")].Label)
	require.NotNil(t, byID[idOf("C")].Rank)
	require.Equal(t, 3, *byID[idOf("C")].Rank)
	require.Nil(t, byID[idOf("M")].Rank)
}
