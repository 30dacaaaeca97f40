package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/leadership"
	"github.com/devotee-admin/hierarchy/modules/person/domain/aggregates/person"
)

type stubPersons map[uuid.UUID]person.Person

func (s stubPersons) GetByID(_ context.Context, id uuid.UUID) (person.Person, error) {
	p, ok := s[id]
	if !ok {
		return person.Person{}, person.ErrNotFound
	}
	return p, nil
}

func (s stubPersons) ListByIDs(_ context.Context, ids []uuid.UUID) ([]person.Person, error) {
	var out []person.Person
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s stubPersons) Create(context.Context, person.Person) (person.Person, error) {
	panic("not used")
}

func TestPersonDirectory(t *testing.T) {
	t.Parallel()

	active, inactive, missing := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	dir := NewPersonDirectory(stubPersons{
		active:   person.Hydrate(active, "11", "Madhava", "D1", person.StatusActive, now, now),
		inactive: person.Hydrate(inactive, "12", "Keshava", "D1", person.StatusInactive, now, now),
	})
	ctx := context.Background()

	district, err := dir.DistrictOf(ctx, active)
	require.NoError(t, err)
	require.Equal(t, "D1", district)

	_, err = dir.DistrictOf(ctx, inactive)
	require.ErrorIs(t, err, leadership.ErrNodeNotFound)
	_, err = dir.DistrictOf(ctx, missing)
	require.ErrorIs(t, err, leadership.ErrNodeNotFound)

	labels, err := dir.Labels(ctx, []uuid.UUID{active, missing})
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]string{active: "Madhava (11)"}, labels)
}
