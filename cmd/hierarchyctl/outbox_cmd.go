package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/handlers"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/infrastructure/persistence"
	"github.com/devotee-admin/hierarchy/pkg/eventbus"
	"github.com/devotee-admin/hierarchy/pkg/outbox"
	eventbusdispatcher "github.com/devotee-admin/hierarchy/pkg/outbox/dispatchers/eventbus"
)

func newOutboxCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Run one-shot outbox maintenance",
	}
	cmd.AddCommand(newOutboxDrainCmd(env))
	cmd.AddCommand(newOutboxCleanCmd(env))
	return cmd
}

func newOutboxDrainCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Relay every due event into the audit log, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := env.outboxTable()
			if err != nil {
				return err
			}
			pool, err := env.connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := env.logger()
			bus := eventbus.New(logger)
			handlers.NewAuditHandler(logger.WithField("handler", "audit"), persistence.NewAuditLogRepository(), pool).Register(bus)

			conf := env.conf().Outbox
			relay, err := outbox.NewRelay(pool, table, eventbusdispatcher.New(bus), outbox.RelayOptions{
				BatchSize:       conf.RelayBatchSize,
				LockTTL:         conf.RelayLockTTL,
				MaxAttempts:     conf.RelayMaxAttempts,
				LastErrorMaxLen: conf.LastErrorMaxBytes,
				DispatchTimeout: conf.RelayDispatchTimeout,
				Logger:          logger.WithField("worker", "drain"),
			})
			if err != nil {
				return withCode(exitValidation, err)
			}

			start := time.Now()
			n, err := relay.Drain(cmd.Context())
			if err != nil {
				return withCode(exitDB, err)
			}
			return env.write(commandOutput{
				Command:    "outbox drain",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     map[string]any{"processed": n, "table": outbox.TableLabel(table)},
			})
		},
	}
}

func newOutboxCleanCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete published and expired dead outbox rows once",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := env.outboxTable()
			if err != nil {
				return err
			}
			pool, err := env.connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			conf := env.conf().Outbox
			cleaner, err := outbox.NewCleaner(pool, table, outbox.CleanerOptions{
				Retention:     conf.CleanerRetention,
				DeadRetention: conf.CleanerDeadRetention,
				MaxAttempts:   conf.RelayMaxAttempts,
				Logger:        env.logger().WithField("worker", "clean"),
			})
			if err != nil {
				return withCode(exitValidation, err)
			}
			start := time.Now()
			if err := cleaner.CleanOnce(cmd.Context()); err != nil {
				return withCode(exitDB, err)
			}
			return env.write(commandOutput{
				Command:    "outbox clean",
				DurationMS: time.Since(start).Milliseconds(),
				Result:     map[string]any{"table": outbox.TableLabel(table)},
			})
		},
	}
}
