package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"ctcurator/internal/dataset"
	"ctcurator/internal/pipeline"
	"ctcurator/internal/registration"
	"ctcurator/internal/verify"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Audit patient grouping by registering skin surfaces",
		Long: "Registers each patient's latest skin surface onto their earliest one " +
			"and ranks patients by the worst residual distance. Large distances point " +
			"at anatomical change or at two people grouped under one name. " +
			"The audit is read-only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := dataset.Load(filepath.Join(cfg.Paths.OutputDir, pipeline.IndexFile))
			if err != nil {
				return err
			}

			auditor := verify.NewAuditor(cfg.Paths.OutputDir)
			auditor.SamplePoints = cfg.Verify.SamplePoints
			auditor.Registration = registration.Config{
				MaxIterations: cfg.Verify.MaxIterations,
				Tolerance:     registration.DefaultConfig().Tolerance,
			}
			reports, err := auditor.Audit(cmd.Context(), index)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No patients with two or more acquisitions to audit.")
				return nil
			}

			rows := make([][]string, 0, len(reports))
			for _, r := range reports {
				if r.Unverifiable() {
					rows = append(rows, []string{r.PatientID, r.Name, r.Earliest, r.Latest,
						"unverifiable", r.Err.Error()})
					continue
				}
				rows = append(rows, []string{r.PatientID, r.Name, r.Earliest, r.Latest,
					strconv.FormatFloat(r.MaxDistance, 'f', 2, 64),
					strconv.FormatFloat(r.Cost, 'f', 1, 64)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Patient", "Name", "Earliest", "Latest", "Max Dist (mm)", "Cost"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
			return nil
		},
	}
}
