package cli

import (
	"io"
	"sort"

	"github.com/spf13/cobra"
)

func newDefinitionsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "definitions",
		Short: "Rebuild field_definitions.json and table_definitions.json from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck

			defs, err := e.builder(s).BuildAndWrite(ctx)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(defs.Tables))
			for name := range defs.Tables {
				names = append(names, name)
			}
			sort.Strings(names)

			return emit(cmd, defs.Tables, func(w io.Writer) {
				rows := make([][]interface{}, len(names))
				for i, name := range names {
					rows[i] = []interface{}{name, len(defs.Tables[name])}
				}
				printTable(w, []interface{}{"Entity", "Fields"}, rows)
			})
		},
	}
}
