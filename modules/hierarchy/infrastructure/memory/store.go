package memory

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

var ErrNoTx = errors.New("memory store: event emitted outside a transaction")

type txKey struct{}

type txState struct {
	events []events.HierarchyEventV1
}

// Store keeps leadership nodes in memory. A transaction holds the store lock
// from start to commit and restores the previous snapshot when fn fails, so
// rolled back writes and their events never become visible.
type Store struct {
	mu     sync.Mutex
	nodes  map[uuid.UUID]leadership.Node
	events []events.HierarchyEventV1
	now    func() time.Time
}

func NewStore(nodes ...leadership.Node) *Store {
	s := &Store{
		nodes: make(map[uuid.UUID]leadership.Node, len(nodes)),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	return s
}

func (s *Store) InTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[uuid.UUID]leadership.Node, len(s.nodes))
	for id, n := range s.nodes {
		snapshot[id] = n
	}
	st := &txState{}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		s.nodes = snapshot
		return err
	}
	s.events = append(s.events, st.events...)
	return nil
}

// read runs fn under the store lock unless ctx already belongs to a transaction.
func (s *Store) read(ctx context.Context, fn func()) {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		fn()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Store) GetNode(ctx context.Context, id uuid.UUID) (leadership.Node, error) {
	var (
		n  leadership.Node
		ok bool
	)
	s.read(ctx, func() { n, ok = s.nodes[id] })
	if !ok {
		return leadership.Node{}, leadership.ErrNodeNotFound
	}
	return clone(n), nil
}

// LockNodes is a plain read: the transaction already owns the whole store.
func (s *Store) LockNodes(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]leadership.Node, error) {
	out := make(map[uuid.UUID]leadership.Node, len(ids))
	s.read(ctx, func() {
		for _, id := range ids {
			if n, ok := s.nodes[id]; ok {
				out[id] = clone(n)
			}
		}
	})
	return out, nil
}

func (s *Store) ListBySupervisors(ctx context.Context, supervisorIDs []uuid.UUID) ([]leadership.Node, error) {
	want := leadership.NewIDSet(supervisorIDs...)
	return s.filter(ctx, func(n leadership.Node) bool {
		return n.SupervisorID != nil && want.Has(*n.SupervisorID)
	}), nil
}

func (s *Store) ListByRoles(ctx context.Context, districtCode string, roles []leadership.Role) ([]leadership.Node, error) {
	want := make(map[leadership.Role]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	out := s.filter(ctx, func(n leadership.Node) bool {
		return n.DistrictCode == districtCode && want[n.Role]
	})
	sort.SliceStable(out, func(i, j int) bool {
		ri, _ := out[i].Rank()
		rj, _ := out[j].Rank()
		return ri < rj
	})
	return out, nil
}

func (s *Store) ListDistrict(ctx context.Context, districtCode string) ([]leadership.Node, error) {
	return s.filter(ctx, func(n leadership.Node) bool {
		return n.DistrictCode == districtCode
	}), nil
}

func (s *Store) InsertNode(ctx context.Context, node leadership.Node) error {
	var exists bool
	s.read(ctx, func() {
		if _, exists = s.nodes[node.ID]; exists {
			return
		}
		now := s.now()
		node.CreatedAt, node.UpdatedAt = now, now
		s.nodes[node.ID] = clone(node)
	})
	if exists {
		return errors.New("memory store: node already exists")
	}
	return nil
}

func (s *Store) UpdatePlacement(ctx context.Context, id uuid.UUID, role leadership.Role, supervisorID *uuid.UUID) error {
	var ok bool
	s.read(ctx, func() {
		var n leadership.Node
		if n, ok = s.nodes[id]; !ok {
			return
		}
		n = n.WithPlacement(role, supervisorID)
		n.UpdatedAt = s.now()
		s.nodes[id] = n
	})
	if !ok {
		return leadership.ErrNodeNotFound
	}
	return nil
}

// Emit buffers ev until the surrounding transaction commits.
func (s *Store) Emit(ctx context.Context, ev events.HierarchyEventV1) error {
	st, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return ErrNoTx
	}
	st.events = append(st.events, ev)
	return nil
}

// Events returns the committed events in commit order.
func (s *Store) Events() []events.HierarchyEventV1 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.HierarchyEventV1(nil), s.events...)
}

// Nodes returns a copy of every stored node ordered by id.
func (s *Store) Nodes() []leadership.Node {
	return s.filter(context.Background(), func(leadership.Node) bool { return true })
}

func (s *Store) filter(ctx context.Context, keep func(leadership.Node) bool) []leadership.Node {
	var out []leadership.Node
	s.read(ctx, func() {
		for _, n := range s.nodes {
			if keep(n) {
				out = append(out, clone(n))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return lessID(out[i].ID, out[j].ID)
	})
	return out
}

func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func clone(n leadership.Node) leadership.Node {
	n.SupervisorID = leadership.CloneID(n.SupervisorID)
	return n
}
