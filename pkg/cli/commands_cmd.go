package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// CommandEntry describes one CLI command for introspection output.
type CommandEntry struct {
	Path    string      `json:"path"`
	Short   string      `json:"short"`
	Example string      `json:"example,omitempty"`
	Args    string      `json:"args,omitempty"`
	Flags   []FlagEntry `json:"flags,omitempty"`
}

// FlagEntry describes one CLI flag for introspection output.
type FlagEntry struct {
	Name    string `json:"name"`
	Short   string `json:"shorthand,omitempty"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
	Usage   string `json:"usage,omitempty"`
}

func newCommandsCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List all commands with their flags",
		Example: `  dismap commands
  dismap commands --filter load -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := walkCommands(cmd.Root(), "")
			if filter != "" {
				lower := strings.ToLower(filter)
				filtered := entries[:0]
				for _, e := range entries {
					if strings.Contains(strings.ToLower(e.Path+" "+e.Short), lower) {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}

			return emit(cmd, entries, func(w io.Writer) {
				rows := make([][]interface{}, len(entries))
				for i, e := range entries {
					names := make([]string, len(e.Flags))
					for j, f := range e.Flags {
						names[j] = "--" + f.Name
					}
					rows[i] = []interface{}{e.Path, e.Args, e.Short, strings.Join(names, " ")}
				}
				printTable(w, []interface{}{"Command", "Args", "Description", "Flags"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Substring search across command paths and descriptions")
	return cmd
}

// walkCommands collects the leaf commands under cmd, depth first.
func walkCommands(cmd *cobra.Command, parentPath string) []CommandEntry {
	var entries []CommandEntry
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}
		path := child.Name()
		if parentPath != "" {
			path = parentPath + " " + path
		}
		if child.HasSubCommands() {
			entries = append(entries, walkCommands(child, path)...)
			continue
		}

		var args string
		if use := strings.Fields(child.Use); len(use) > 1 {
			args = strings.Join(use[1:], " ")
		}
		entries = append(entries, CommandEntry{
			Path:    path,
			Short:   child.Short,
			Example: child.Example,
			Args:    args,
			Flags:   collectFlags(child.Flags()),
		})
	}
	return entries
}

func collectFlags(fs *pflag.FlagSet) []FlagEntry {
	var flags []FlagEntry
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		flags = append(flags, FlagEntry{
			Name:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
			Usage:   f.Usage,
		})
	})
	return flags
}
