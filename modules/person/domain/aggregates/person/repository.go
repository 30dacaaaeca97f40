package person

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Person, error)
	// ListByIDs returns the persons found; unknown ids are skipped.
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]Person, error)
	Create(ctx context.Context, p Person) (Person, error)
}
