package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/nmfs-ost/dismap/internal/flatfile"
)

type sniffResult struct {
	Path        string                    `json:"path"`
	Encoding    string                    `json:"encoding"`
	IndexColumn *int                      `json:"index_column"`
	Dtypes      map[string]flatfile.Dtype `json:"dtypes"`
}

func newSniffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sniff <csv>...",
		Short: "Detect encoding, index column and column dtypes of flat files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := make([]*flatfile.Profile, 0, len(args))
			results := make([]sniffResult, 0, len(args))
			for _, path := range args {
				p, err := flatfile.Sniff(path)
				if err != nil {
					return err
				}
				profiles = append(profiles, p)
				results = append(results, sniffResult{
					Path:        p.Path,
					Encoding:    p.Encoding,
					IndexColumn: p.IndexColumn,
					Dtypes:      p.Dtypes(),
				})
			}
			return emit(cmd, results, func(w io.Writer) {
				var rows [][]interface{}
				for _, p := range profiles {
					var index interface{}
					if p.IndexColumn != nil {
						index = *p.IndexColumn
					}
					for _, c := range p.Columns {
						rows = append(rows, []interface{}{p.Path, p.Encoding, index, c.Name, string(c.Dtype)})
					}
				}
				printTable(w, []interface{}{"File", "Encoding", "Index", "Column", "Dtype"}, rows)
			})
		},
	}
}
