package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ctcurator/internal/journal"
	"ctcurator/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showFailed bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show environment checks and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(results))
			for _, r := range results {
				checkRows = append(checkRows, []string{r.Name, passFail(r.Passed, colorize), r.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "Status", "Detail"},
				checkRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft}))

			store, err := journal.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return printRuns(cmd.Context(), cmd, store, limit, showFailed)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().BoolVar(&showFailed, "failed", false, "List failed units of the shown runs")
	return cmd
}

func printRuns(ctx context.Context, cmd *cobra.Command, store *journal.Store, limit int, showFailed bool) error {
	out := cmd.OutOrStdout()
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs.")
		return nil
	}

	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := ""
		if !run.FinishedAt.IsZero() {
			finished = run.FinishedAt.Format("2006-01-02 15:04:05")
		}
		status := run.Status
		switch status {
		case journal.RunSucceeded:
			status = colorCell(status, ansiGreen, colorize)
		case journal.RunFailed:
			status = colorCell(status, ansiRed, colorize)
		}
		rows = append(rows, []string{
			run.ID[:8],
			run.Stage,
			status,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
			strconv.Itoa(run.CompletedUnits),
			strconv.Itoa(run.FailedUnits),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Run", "Stage", "Status", "Started", "Finished", "Done", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}))

	if !showFailed {
		return nil
	}
	for _, run := range runs {
		if run.FailedUnits == 0 {
			continue
		}
		units, err := store.FailedUnits(ctx, run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nFailed units of run %s:\n", run.ID[:8])
		unitRows := make([][]string, 0, len(units))
		for _, u := range units {
			unitRows = append(unitRows, []string{u.PatientID, u.AcquisitionDate, u.Detail})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Patient", "Date", "Detail"},
			unitRows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft}))
	}
	return nil
}

func passFail(ok, colorize bool) string {
	if ok {
		return colorCell("ok", ansiGreen, colorize)
	}
	return colorCell("failed", ansiRed, colorize)
}
