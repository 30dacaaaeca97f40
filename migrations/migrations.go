// Package migrations holds the goose SQL migrations of the hierarchy schema.
package migrations

import (
	"context"
	"database/sql"
	"embed"

	"github.com/go-faster/errors"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// NewProvider returns a goose provider over the embedded migrations.
func NewProvider(db *sql.DB) (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db, FS)
	if err != nil {
		return nil, errors.Wrap(err, "goose provider")
	}
	return p, nil
}

// Up applies every pending migration and returns how many ran.
func Up(ctx context.Context, db *sql.DB) (int, error) {
	p, err := NewProvider(db)
	if err != nil {
		return 0, err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "apply migrations")
	}
	return len(results), nil
}
