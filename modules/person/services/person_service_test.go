package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/modules/person/domain/aggregates/person"
)

type memRepo struct {
	byID map[uuid.UUID]person.Person
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (person.Person, error) {
	p, ok := r.byID[id]
	if !ok {
		return person.Person{}, person.ErrNotFound
	}
	return p, nil
}

func (r *memRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]person.Person, error) {
	var out []person.Person
	for _, id := range ids {
		if p, ok := r.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, p person.Person) (person.Person, error) {
	for _, existing := range r.byID {
		if existing.Pernr() == p.Pernr() {
			return person.Person{}, person.ErrPernrTaken
		}
	}
	created := person.Hydrate(uuid.New(), p.Pernr(), p.DisplayName(), p.DistrictCode(), p.Status(), p.CreatedAt(), p.UpdatedAt())
	r.byID[created.ID()] = created
	return created, nil
}

func TestPersonService_Create(t *testing.T) {
	t.Parallel()

	svc := NewPersonService(&memRepo{byID: map[uuid.UUID]person.Person{}})
	ctx := context.Background()

	created, err := svc.Create(ctx, &person.CreateDTO{Pernr: "1", DisplayName: "Hari", DistrictCode: "D1"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID())

	got, err := svc.GetByID(ctx, created.ID())
	require.NoError(t, err)
	require.Equal(t, "D1", got.DistrictCode())

	_, err = svc.Create(ctx, &person.CreateDTO{Pernr: "1", DisplayName: "Other", DistrictCode: "D1"})
	require.ErrorIs(t, err, person.ErrPernrTaken)

	_, err = svc.Create(ctx, &person.CreateDTO{Pernr: "2"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "DistrictCode")

	_, err = svc.GetByID(ctx, uuid.New())
	require.ErrorIs(t, err, person.ErrNotFound)
}
