package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nmfs-ost/dismap/internal/domain"
	"github.com/nmfs-ost/dismap/internal/reconcile"
)

func newReconcileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare primary entity record counts with their sample-location companions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck

			report, err := e.driver(s, nil).CompareCounts(ctx)
			if err != nil {
				return err
			}
			return emit(cmd, report, func(w io.Writer) {
				printReconcile(w, report)
			})
		},
	}
}

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run [csv...]",
		Short: "Classify, build definitions, load the given files and reconcile counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck

			journal, closeJournal, err := e.openJournal()
			if err != nil {
				return err
			}
			defer closeJournal()

			report, err := e.driver(s, journal).Run(ctx, "run", args)
			if err != nil {
				return err
			}
			return emit(cmd, report, func(w io.Writer) {
				printSteps(w, report)
				if report.Reconcile != nil {
					_, _ = fmt.Fprintln(w)
					printReconcile(w, report.Reconcile)
				}
			})
		},
	}
}

func printSteps(w io.Writer, report *reconcile.RunReport) {
	rows := make([][]interface{}, len(report.Steps))
	for i, step := range report.Steps {
		detail := step.Result.Value
		if step.Result.Err != nil {
			detail = step.Result.Err.Error()
		}
		rows[i] = []interface{}{step.Op, step.Entity, string(step.Result.Status), detail}
	}
	_, _ = fmt.Fprintf(w, "run %s\n", report.RunID)
	printTable(w, []interface{}{"Step", "Entity", "Status", "Detail"}, rows)
}

func printReconcile(w io.Writer, report *domain.ReconcileReport) {
	rows := make([][]interface{}, len(report.Discrepancies))
	for i, d := range report.Discrepancies {
		rows[i] = []interface{}{d.Entity, d.Companion, d.MainCount, d.CompanionCount, d.Difference}
	}
	printTable(w, []interface{}{"Entity", "Companion", "Records", "Sample Locations", "Difference"}, rows)
	_, _ = fmt.Fprintf(w, "%d pairs checked, %d discrepancies\n", report.Checked, len(report.Discrepancies))
	if len(report.Skipped) > 0 {
		_, _ = fmt.Fprintf(w, "skipped (no companion): %s\n", strings.Join(report.Skipped, ", "))
	}
}
