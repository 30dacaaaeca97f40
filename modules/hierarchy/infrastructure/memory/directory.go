package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
)

type Person struct {
	ID           uuid.UUID
	DistrictCode string
	Label        string
}

// Directory is an in-memory person registry.
type Directory struct {
	mu     sync.RWMutex
	people map[uuid.UUID]Person
}

func NewDirectory(people ...Person) *Directory {
	d := &Directory{people: make(map[uuid.UUID]Person, len(people))}
	for _, p := range people {
		d.people[p.ID] = p
	}
	return d
}

func (d *Directory) Add(p Person) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.people[p.ID] = p
}

func (d *Directory) DistrictOf(_ context.Context, personID uuid.UUID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.people[personID]
	if !ok {
		return "", leadership.ErrNodeNotFound
	}
	return p.DistrictCode, nil
}

func (d *Directory) Labels(_ context.Context, personIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uuid.UUID]string, len(personIDs))
	for _, id := range personIDs {
		if p, ok := d.people[id]; ok && p.Label != "" {
			out[id] = p.Label
		}
	}
	return out, nil
}
