package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{
				"version": version,
				"commit":  commit,
			}
			return emit(cmd, info, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "dismap version %s (commit: %s)\n", version, commit)
			})
		},
	}
}
