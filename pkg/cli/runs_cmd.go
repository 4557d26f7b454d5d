package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmfs-ost/dismap/internal/domain"
)

func newRunsCmd(e *env) *cobra.Command {
	var page domain.PageRequest
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or the steps of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.cfg.Validate(); err != nil {
				return err
			}
			if !e.cfg.JournalEnabled {
				return errors.New("run journal is disabled")
			}
			journal, closeJournal, err := e.openJournal()
			if err != nil {
				return err
			}
			defer closeJournal()
			ctx := cmd.Context()

			if len(args) == 1 {
				if _, err := journal.GetRun(ctx, args[0]); err != nil {
					return err
				}
				steps, err := journal.ListSteps(ctx, args[0])
				if err != nil {
					return err
				}
				return emit(cmd, steps, func(w io.Writer) {
					rows := make([][]interface{}, len(steps))
					for i, s := range steps {
						rows[i] = []interface{}{s.Seq, s.Op, s.Entity, string(s.Status), s.Detail}
					}
					printTable(w, []interface{}{"#", "Step", "Entity", "Status", "Detail"}, rows)
				})
			}

			runs, total, err := journal.ListRuns(ctx, page)
			if err != nil {
				return err
			}
			next := domain.NextPageToken(page.Offset(), page.Limit(), total)
			return emit(cmd, runs, func(w io.Writer) {
				rows := make([][]interface{}, len(runs))
				for i, r := range runs {
					var finished interface{}
					if r.FinishedAt != nil {
						finished = r.FinishedAt.Local().Format(time.DateTime)
					}
					rows[i] = []interface{}{r.ID, r.Command, string(r.Status), r.StartedAt.Local().Format(time.DateTime), finished}
				}
				printTable(w, []interface{}{"ID", "Command", "Status", "Started", "Finished"}, rows)
				if next != "" {
					fmt.Fprintf(w, "next page: --page-token %s\n", next)
				}
			})
		},
	}
	cmd.Flags().IntVar(&page.MaxResults, "max-results", domain.DefaultMaxResults, "Maximum number of runs to list")
	cmd.Flags().StringVar(&page.PageToken, "page-token", "", "Token from a previous listing")
	return cmd
}
