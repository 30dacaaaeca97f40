package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
	"github.com/devotee-admin/hierarchy/modules/person/domain/aggregates/person"
	personpersistence "github.com/devotee-admin/hierarchy/modules/person/infrastructure/persistence"
	personservices "github.com/devotee-admin/hierarchy/modules/person/services"
)

func newPersonCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage the person registry",
	}
	cmd.AddCommand(newPersonAddCmd(env))
	return cmd
}

func newPersonAddCmd(env *cliEnv) *cobra.Command {
	var dto person.CreateDTO
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a person in a district",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd.Context(), func(ctx context.Context, _ *services.HierarchyService) error {
				created, err := personservices.NewPersonService(personpersistence.NewPersonRepository()).Create(ctx, &dto)
				if err != nil {
					var verr *personservices.ValidationError
					if errors.As(err, &verr) || errors.Is(err, person.ErrPernrTaken) {
						return withCode(exitValidation, err)
					}
					return withCode(exitDB, err)
				}
				return env.write(commandOutput{
					Command: "person add",
					Result: map[string]any{
						"person_id":     created.ID(),
						"pernr":         created.Pernr(),
						"display_name":  created.DisplayName(),
						"district_code": created.DistrictCode(),
					},
				})
			})
		},
	}
	cmd.Flags().StringVar(&dto.Pernr, "pernr", "", "Personnel number (required)")
	cmd.Flags().StringVar(&dto.DisplayName, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&dto.DistrictCode, "district", "", "District code (required)")
	return cmd
}
