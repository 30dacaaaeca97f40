package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devotee-admin/hierarchy/migrations"
)

func newMigrateCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}
	cmd.AddCommand(newMigrateUpCmd(env))
	cmd.AddCommand(newMigrateStatusCmd(env))
	return cmd
}

func newMigrateUpCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := env.openSQL()
			if err != nil {
				return err
			}
			defer db.Close()

			start := time.Now()
			applied, err := migrations.Up(cmd.Context(), db)
			if err != nil {
				return withCode(exitDB, err)
			}
			return env.write(commandOutput{
				Command:    "migrate up",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     map[string]any{"applied": applied},
			})
		},
	}
}

type migrationRow struct {
	Version   int64  `json:"version"`
	Path      string `json:"path"`
	State     string `json:"state"`
	AppliedAt string `json:"applied_at,omitempty"`
}

func newMigrateStatusCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := env.openSQL()
			if err != nil {
				return err
			}
			defer db.Close()

			p, err := migrations.NewProvider(db)
			if err != nil {
				return withCode(exitDB, err)
			}
			statuses, err := p.Status(cmd.Context())
			if err != nil {
				return withCode(exitDB, fmt.Errorf("migration status: %w", err))
			}
			rows := make([]migrationRow, 0, len(statuses))
			for _, s := range statuses {
				row := migrationRow{
					Version: s.Source.Version,
					Path:    s.Source.Path,
					State:   string(s.State),
				}
				if !s.AppliedAt.IsZero() {
					row.AppliedAt = s.AppliedAt.UTC().Format(time.RFC3339)
				}
				rows = append(rows, row)
			}
			return env.write(commandOutput{Command: "migrate status", Result: rows})
		},
	}
}
