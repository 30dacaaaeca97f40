package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
	"github.com/devotee-admin/hierarchy/modules/person/domain/aggregates/person"
)

// PersonDirectory exposes the person registry to the hierarchy. Inactive
// persons are reported as unknown so they cannot enter the hierarchy.
type PersonDirectory struct {
	repo person.Repository
}

var _ services.PersonDirectory = (*PersonDirectory)(nil)

func NewPersonDirectory(repo person.Repository) *PersonDirectory {
	return &PersonDirectory{repo: repo}
}

func (d *PersonDirectory) DistrictOf(ctx context.Context, personID uuid.UUID) (string, error) {
	p, err := d.repo.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, person.ErrNotFound) {
			return "", fmt.Errorf("person %s: %w", personID, leadership.ErrNodeNotFound)
		}
		return "", err
	}
	if !p.Active() {
		return "", fmt.Errorf("person %s is inactive: %w", personID, leadership.ErrNodeNotFound)
	}
	return p.DistrictCode(), nil
}

func (d *PersonDirectory) Labels(ctx context.Context, personIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	people, err := d.repo.ListByIDs(ctx, personIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(people))
	for _, p := range people {
		out[p.ID()] = p.Label()
	}
	return out, nil
}
