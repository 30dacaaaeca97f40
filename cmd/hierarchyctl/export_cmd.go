package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/devotee-admin/hierarchy/modules/hierarchy/services"
)

const exportSheet = "Hierarchy"

var exportHeader = []any{"Node ID", "Label", "Role", "Rank", "Supervisor ID", "Supervisor"}

func newExportCmd(env *cliEnv) *cobra.Command {
	var district, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a district's hierarchy to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd.Context(), func(ctx context.Context, svc *services.HierarchyService) error {
				start := time.Now()
				views, err := svc.ListDistrict(ctx, district)
				if err != nil {
					return serviceErr(err)
				}
				if err := writeDistrictWorkbook(out, views); err != nil {
					return err
				}
				return env.write(commandOutput{
					Command:    "export",
					DurationMS: time.Since(start).Milliseconds(),
					Result: map[string]any{
						"district_code": district,
						"rows":          len(views),
						"path":          out,
					},
				})
			})
		},
	}
	cmd.Flags().StringVar(&district, "district", "", "District code (required)")
	cmd.Flags().StringVar(&out, "out", "hierarchy.xlsx", "Output workbook path")
	_ = cmd.MarkFlagRequired("district")
	return cmd
}

func writeDistrictWorkbook(path string, views []services.NodeView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}

	labels := make(map[uuid.UUID]string, len(views))
	for _, v := range views {
		labels[v.ID] = v.Label
	}
	for i, v := range views {
		rank, supervisorID, supervisor := "", "", ""
		if v.Rank != nil {
			rank = strconv.Itoa(*v.Rank)
		}
		if v.SupervisorID != nil {
			supervisorID = v.SupervisorID.String()
			supervisor = labels[*v.SupervisorID]
		}
		row := []any{v.ID.String(), v.Label, v.Role.String(), rank, supervisorID, supervisor}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}

	last, err := excelize.CoordinatesToCellName(len(exportHeader), len(views)+1)
	if err != nil {
		return err
	}
	if err := f.AutoFilter(exportSheet, "A1:"+last, nil); err != nil {
		return err
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return withCode(exitValidation, fmt.Errorf("save %s: %w", path, err))
	}
	return nil
}
