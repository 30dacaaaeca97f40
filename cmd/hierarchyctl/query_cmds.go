package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/wI2L/jsondiff"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/domain/events"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/infrastructure/persistence"
	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
)

func newCheckCmd(env *cliEnv) *cobra.Command {
	var district string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a district against the hierarchy invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd.Context(), func(ctx context.Context, svc *services.HierarchyService) error {
				start := time.Now()
				violations, err := svc.CheckDistrict(ctx, district)
				if err != nil {
					return serviceErr(err)
				}
				if err := env.write(commandOutput{
					Command:    "check",
					DurationMS: time.Since(start).Milliseconds(),
					Result: map[string]any{
						"district_code": district,
						"valid":         len(violations) == 0,
						"violations":    violations,
					},
				}); err != nil {
					return err
				}
				if len(violations) > 0 {
					return withCode(exitViolations, fmt.Errorf("district %s has %d violation(s)", district, len(violations)))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&district, "district", "", "District code (required)")
	_ = cmd.MarkFlagRequired("district")
	return cmd
}

func newPreviewCmd(env *cliEnv) *cobra.Command {
	var nodeID string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "List every node below a leader, the impact of changing its role",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(nodeID)
			if err != nil {
				return withCode(exitValidation, fmt.Errorf("invalid --node: %w", err))
			}
			return env.withService(cmd.Context(), func(ctx context.Context, svc *services.HierarchyService) error {
				start := time.Now()
				direct, err := svc.ListDirectSubordinates(ctx, id)
				if err != nil {
					return serviceErr(err)
				}
				all, err := svc.ListAllSubordinates(ctx, id)
				if err != nil {
					return serviceErr(err)
				}
				return env.write(commandOutput{
					Command:    "preview",
					DurationMS: time.Since(start).Milliseconds(),
					Result: map[string]any{
						"node_id":      id,
						"direct":       direct,
						"cascade_size": len(all),
						"all":          all,
					},
				})
			})
		},
	}
	cmd.Flags().StringVar(&nodeID, "node", "", "Node UUID (required)")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

func newCandidatesCmd(env *cliEnv) *cobra.Command {
	var (
		district string
		maxRank  int
		exclude  []string
		query    string
	)
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List leaders eligible to supervise at a rank",
		RunE: func(cmd *cobra.Command, args []string) error {
			excludeIDs := make([]uuid.UUID, 0, len(exclude))
			for _, raw := range exclude {
				id, err := uuid.Parse(raw)
				if err != nil {
					return withCode(exitValidation, fmt.Errorf("invalid --exclude %q: %w", raw, err))
				}
				excludeIDs = append(excludeIDs, id)
			}
			return env.withService(cmd.Context(), func(ctx context.Context, svc *services.HierarchyService) error {
				views, err := svc.FindEligibleSupervisors(ctx, district, maxRank, excludeIDs)
				if err != nil {
					return serviceErr(err)
				}
				return env.write(commandOutput{Command: "candidates", Result: services.FilterByLabel(views, query)})
			})
		},
	}
	cmd.Flags().StringVar(&district, "district", "", "District code (required)")
	cmd.Flags().IntVar(&maxRank, "max-rank", 0, "Weakest rank allowed to supervise (0-4)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Node UUIDs to leave out")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Fuzzy filter on the person label")
	_ = cmd.MarkFlagRequired("district")
	_ = cmd.MarkFlagRequired("max-rank")
	return cmd
}

type historyEntry struct {
	events.HierarchyEventV1
	Changes jsondiff.Patch `json:"changes"`
}

func newHistoryCmd(env *cliEnv) *cobra.Command {
	var (
		nodeID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the recorded audit trail of a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(nodeID)
			if err != nil {
				return withCode(exitValidation, fmt.Errorf("invalid --node: %w", err))
			}
			return env.withService(cmd.Context(), func(ctx context.Context, _ *services.HierarchyService) error {
				evs, err := persistence.NewAuditLogRepository().ListByEntity(ctx, id, limit)
				if err != nil {
					return withCode(exitDB, err)
				}
				entries := make([]historyEntry, 0, len(evs))
				for _, ev := range evs {
					patch, err := ev.Changes()
					if err != nil {
						return withCode(exitDB, fmt.Errorf("diff event %s: %w", ev.EventID, err))
					}
					entries = append(entries, historyEntry{HierarchyEventV1: ev, Changes: patch})
				}
				return env.write(commandOutput{Command: "history", Result: entries})
			})
		},
	}
	cmd.Flags().StringVar(&nodeID, "node", "", "Node UUID (required)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}
