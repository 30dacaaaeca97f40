package leadership

import (
	"bytes"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var ErrNodeNotFound = errors.New("leadership node not found")

// Node is a person linked into a district's reporting forest. Children are never
// stored; they are the nodes whose SupervisorID points here.
type Node struct {
	ID           uuid.UUID
	DistrictCode string
	Role         Role
	SupervisorID *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewMember(id uuid.UUID, districtCode string) Node {
	return Node{
		ID:           id,
		DistrictCode: districtCode,
		Role:         RoleNone,
	}
}

func (n Node) Rank() (int, bool) {
	return n.Role.Rank()
}

func (n Node) ReportsTo(id uuid.UUID) bool {
	return n.SupervisorID != nil && *n.SupervisorID == id
}

func (n Node) WithPlacement(role Role, supervisorID *uuid.UUID) Node {
	n.Role = role
	n.SupervisorID = CloneID(supervisorID)
	return n
}

func CloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func SameSupervisor(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IDSet is an unordered set of node ids.
type IDSet map[uuid.UUID]struct{}

func NewIDSet(ids ...uuid.UUID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Add(id uuid.UUID) {
	s[id] = struct{}{}
}

func (s IDSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int {
	return len(s)
}

func (s IDSet) Union(other IDSet) IDSet {
	out := make(IDSet, len(s)+len(other))
	for id := range s {
		out.Add(id)
	}
	for id := range other {
		out.Add(id)
	}
	return out
}

// Sorted returns the ids in byte order. Row locks are always taken in this order.
func (s IDSet) Sorted() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	SortIDs(out)
	return out
}

func SortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
}
