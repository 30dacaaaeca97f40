package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cleaner deletes published rows after Retention and, when configured, dead
// rows after DeadRetention.
type Cleaner struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
	label string
	opts  CleanerOptions
}

func NewCleaner(pool *pgxpool.Pool, table pgx.Identifier, opts CleanerOptions) (*Cleaner, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if opts.DeadRetention > 0 && opts.MaxAttempts <= 0 {
		return nil, invalidConfig("dead retention needs MaxAttempts")
	}
	opts.setDefaults()
	return &Cleaner{pool: pool, table: table, label: TableLabel(table), opts: opts}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := c.CleanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).WithField("table", c.label).Warn("outbox: cleaner tick failed")
		}
	}
}

func (c *Cleaner) CleanOnce(ctx context.Context) error {
	now := time.Now()
	table := c.table.Sanitize()
	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`, table),
			now.Add(-c.opts.Retention))
		if err != nil {
			return fmt.Errorf("outbox clean published: %w", err)
		}
		cleanedTotal.WithLabelValues(c.label, "published").Add(float64(tag.RowsAffected()))

		if c.opts.DeadRetention <= 0 {
			return nil
		}
		tag, err = tx.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE published_at IS NULL AND attempts >= $1 AND created_at < $2`, table),
			c.opts.MaxAttempts, now.Add(-c.opts.DeadRetention))
		if err != nil {
			return fmt.Errorf("outbox clean dead: %w", err)
		}
		cleanedTotal.WithLabelValues(c.label, "dead").Add(float64(tag.RowsAffected()))
		return nil
	})
}
