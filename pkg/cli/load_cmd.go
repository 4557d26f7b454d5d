package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/nmfs-ost/dismap/internal/config"
	"github.com/nmfs-ost/dismap/internal/loader"
)

func newLoadCmd(e *env) *cobra.Command {
	var appendRows bool
	cmd := &cobra.Command{
		Use:   "load <csv>...",
		Short: "Load flat files into the store and export them for verification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck

			defs, err := e.builder(s).LoadOrBuild(ctx)
			if err != nil {
				return err
			}
			opts := e.loaderOptions()
			if appendRows {
				opts.Mode = config.LoadModeAppend
			}
			ld := loader.New(s, defs, opts, e.logger)

			sums := make([]*loader.Summary, 0, len(args))
			for _, path := range args {
				sum, err := ld.Load(ctx, path)
				if err != nil {
					return err
				}
				sums = append(sums, sum)
			}
			return emit(cmd, sums, func(w io.Writer) {
				rows := make([][]interface{}, len(sums))
				for i, sum := range sums {
					rows[i] = []interface{}{sum.Entity, sum.Encoding, sum.Rows, sum.NullsRestored, sum.ExportPath}
				}
				printTable(w, []interface{}{"Entity", "Encoding", "Rows", "Nulls", "Export"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&appendRows, "append", false, "Append to existing entities instead of replacing them")
	return cmd
}
