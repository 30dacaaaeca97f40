package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/devotee-admin/hierarchy/modules/person/domain/aggregates/person"
	"github.com/devotee-admin/hierarchy/pkg/composables"
)

const personColumns = `id, pernr, display_name, district_code, status, created_at, updated_at`

type PersonRepository struct{}

func NewPersonRepository() person.Repository {
	return &PersonRepository{}
}

func (r *PersonRepository) GetByID(ctx context.Context, id uuid.UUID) (person.Person, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return person.Person{}, err
	}
	p, err := scanPerson(tx.QueryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = $1`, pgUUID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return person.Person{}, person.ErrNotFound
		}
		return person.Person{}, gerrors.Wrap(err, "get person")
	}
	return p, nil
}

func (r *PersonRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]person.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	pgIDs := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		pgIDs = append(pgIDs, pgUUID(id))
	}
	rows, err := tx.Query(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ANY($1) ORDER BY id`, pgIDs)
	if err != nil {
		return nil, gerrors.Wrap(err, "list persons")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (person.Person, error) {
		return scanPerson(row)
	})
	if err != nil {
		return nil, gerrors.Wrap(err, "list persons")
	}
	return out, nil
}

func (r *PersonRepository) Create(ctx context.Context, p person.Person) (person.Person, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return person.Person{}, err
	}
	created, err := scanPerson(tx.QueryRow(ctx, `
INSERT INTO persons (pernr, display_name, district_code, status)
VALUES ($1, $2, $3, $4)
RETURNING `+personColumns,
		p.Pernr(), p.DisplayName(), p.DistrictCode(), string(p.Status()),
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return person.Person{}, person.ErrPernrTaken
		}
		return person.Person{}, gerrors.Wrap(err, "create person")
	}
	return created, nil
}

func scanPerson(row pgx.Row) (person.Person, error) {
	var (
		id                            pgtype.UUID
		pernr, name, district, status string
		createdAt, updatedAt          pgtype.Timestamptz
	)
	if err := row.Scan(&id, &pernr, &name, &district, &status, &createdAt, &updatedAt); err != nil {
		return person.Person{}, err
	}
	return person.Hydrate(
		uuid.UUID(id.Bytes),
		pernr,
		name,
		district,
		person.Status(status),
		createdAt.Time,
		updatedAt.Time,
	), nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
