package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/infrastructure/memory"
	"github.com/devotee-admin/hierarchy/pkg/composables"
)

const testReason = "district restructuring"

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	dir   *memory.Directory
	svc   *HierarchyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	dir := memory.NewDirectory()
	ctx := composables.WithRequestID(context.Background(), "req-test")
	ctx = composables.WithInitiator(ctx, idOf("admin"))
	return &fixture{
		t:     t,
		ctx:   ctx,
		store: store,
		dir:   dir,
		svc:   NewHierarchyService(store, dir, store, store, 0),
	}
}

func idOf(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("devotee:"+name))
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}

// add stores a node directly, bypassing validation, and registers the person.
func (f *fixture) add(name, district string, role leadership.Role, supervisor string) uuid.UUID {
	f.t.Helper()
	id := idOf(name)
	n := leadership.NewMember(id, district)
	n.Role = role
	if supervisor != "" {
		n.SupervisorID = ptr(idOf(supervisor))
	}
	require.NoError(f.t, f.store.InsertNode(context.Background(), n))
	f.dir.Add(memory.Person{ID: id, DistrictCode: district, Label: name})
	return id
}

func (f *fixture) person(name, district string) uuid.UUID {
	id := idOf(name)
	f.dir.Add(memory.Person{ID: id, DistrictCode: district, Label: name})
	return id
}

func (f *fixture) node(name string) leadership.Node {
	f.t.Helper()
	n, err := f.store.GetNode(context.Background(), idOf(name))
	require.NoError(f.t, err)
	return n
}

func (f *fixture) requireSupervisor(name, supervisor string) {
	f.t.Helper()
	n := f.node(name)
	if supervisor == "" {
		require.Nil(f.t, n.SupervisorID, "%s should have no supervisor", name)
		return
	}
	require.NotNil(f.t, n.SupervisorID, "%s should report to %s", name, supervisor)
	require.Equal(f.t, idOf(supervisor), *n.SupervisorID, "%s should report to %s", name, supervisor)
}

func (f *fixture) requireValid(district string) {
	f.t.Helper()
	violations, err := f.svc.CheckDistrict(f.ctx, district)
	require.NoError(f.t, err)
	require.Empty(f.t, violations)
}

// seedD1 builds A(DISTRICT_SUPERVISOR) <- B(MALA) <- C(CHAKRA) <- M(member).
func (f *fixture) seedD1() {
	f.add("A", "D1", leadership.RoleDistrictSupervisor, "")
	f.add("B", "D1", leadership.RoleMala, "A")
	f.add("C", "D1", leadership.RoleChakra, "B")
	f.add("M", "D1", leadership.RoleNone, "C")
}

func requireCode(t *testing.T, err error, code string) *ServiceError {
	t.Helper()
	require.Error(t, err)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, code, svcErr.Code, svcErr.Error())
	return svcErr
}
