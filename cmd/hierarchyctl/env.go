package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/infrastructure/persistence"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
	personpersistence "github.com/devotee-admin/hierarchy/modules/person/infrastructure/persistence"
	"github.com/devotee-admin/hierarchy/pkg/composables"
	"github.com/devotee-admin/hierarchy/pkg/configuration"
	"github.com/devotee-admin/hierarchy/pkg/logging"
	"github.com/devotee-admin/hierarchy/pkg/outbox"
)

// cliEnv resolves configuration lazily so --help never needs a database.
type cliEnv struct {
	dsn    *string
	output *string
}

func (e *cliEnv) conf() *configuration.Configuration {
	return configuration.Use()
}

func (e *cliEnv) connString() string {
	if e.dsn != nil && *e.dsn != "" {
		return *e.dsn
	}
	return e.conf().Database.Opts
}

func (e *cliEnv) logger() *logrus.Logger {
	return logging.ConsoleLogger(e.conf().LogrusLogLevel())
}

func (e *cliEnv) connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, e.connString())
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("db connect failed: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, withCode(exitDB, fmt.Errorf("db ping failed: %w", err))
	}
	return pool, nil
}

// openSQL opens a database/sql handle over pgx for goose.
func (e *cliEnv) openSQL() (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(e.connString())
	if err != nil {
		return nil, withCode(exitDB, fmt.Errorf("parse dsn: %w", err))
	}
	return stdlib.OpenDB(*cfg), nil
}

func (e *cliEnv) outboxTable() (pgx.Identifier, error) {
	table, err := outbox.ParseIdentifier(e.conf().Hierarchy.OutboxTable)
	if err != nil {
		return nil, withCode(exitValidation, err)
	}
	return table, nil
}

// withService connects, builds the hierarchy service over the pool and runs fn
// with the pool bound to ctx.
func (e *cliEnv) withService(ctx context.Context, fn func(ctx context.Context, svc *services.HierarchyService) error) error {
	table, err := e.outboxTable()
	if err != nil {
		return err
	}
	pool, err := e.connectDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := services.NewHierarchyService(
		persistence.NewHierarchyRepository(),
		persistence.NewPersonDirectory(personpersistence.NewPersonRepository()),
		services.NewPoolTransactor(),
		persistence.NewOutboxEventSink(outbox.NewPublisher(), table),
		e.conf().Hierarchy.DiscoveryMaxNodes,
	)
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithLogger(ctx, logrus.NewEntry(e.logger()))
	return fn(ctx, svc)
}
