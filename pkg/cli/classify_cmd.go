package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nmfs-ost/dismap/internal/domain"
)

func newClassifyCmd(e *env) *cobra.Command {
	var filter struct {
		dataType string
		suffix   string
	}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show the dataset dictionary, building its cache if absent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := e.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck

			dict, err := e.classifier(s).Dictionary(ctx, domain.DictionaryFilter{
				DataType: domain.DataType(filter.dataType),
				Suffix:   filter.suffix,
			})
			if err != nil {
				return err
			}

			names := make([]string, 0, len(dict))
			for name := range dict {
				names = append(names, name)
			}
			sort.Strings(names)

			return emit(cmd, dict, func(w io.Writer) {
				rows := make([][]interface{}, len(names))
				for i, name := range names {
					rows[i] = []interface{}{name, string(dict[name].DataType), dict[name].CanonicalName}
				}
				printTable(w, []interface{}{"Entity", "Type", "Canonical"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&filter.dataType, "type", "", "Only entities of this type (Table, FeatureClass, View)")
	cmd.Flags().StringVar(&filter.suffix, "suffix", "", "Only entities whose name ends with this suffix")
	return cmd
}

func newCacheCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the dataset dictionary cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the dataset dictionary cache so the next classify rebuilds it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck

			c := e.classifier(s)
			if err := c.Invalidate(); err != nil {
				return err
			}
			return emit(cmd, map[string]string{"removed": c.CachePath()}, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "removed %s\n", c.CachePath())
			})
		},
	})
	return cmd
}
