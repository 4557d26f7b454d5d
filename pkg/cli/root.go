// Package cli implements the dismap command-line interface.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nmfs-ost/dismap/internal/config"
	"github.com/nmfs-ost/dismap/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, errorObject(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// errorObject renders err for -o json, exposing the origin of fatal errors.
func errorObject(err error) map[string]interface{} {
	errObj := map[string]interface{}{
		"error": err.Error(),
	}
	var opErr *domain.OpError
	if errors.As(err, &opErr) {
		errObj["op"] = opErr.Op
		errObj["function"] = opErr.Function
		errObj["line"] = opErr.Line
	}
	var partial *domain.PartialWriteError
	if errors.As(err, &partial) {
		errObj["staging"] = partial.Staging
	}
	var coerce *domain.TypeCoercionError
	if errors.As(err, &coerce) {
		errObj["field"] = coerce.Field
		errObj["row"] = coerce.Row
	}
	return errObj
}

func newRootCmd() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:           "dismap",
		Short:         "DisMAP dataset ingestion and reconciliation",
		Long:          "Loads survey flat files into the DisMAP store, maintains field and table definitions, and reconciles record counts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(e.output); err != nil {
				return err
			}
			if err := config.LoadDotEnv(".env"); err != nil {
				return err
			}
			cfg, err := config.Load(e.configPath, e.flags)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			}))
			for _, w := range cfg.Warnings {
				e.logger.Warn(w)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&e.configPath, "config", "c", "", "Project file (default "+config.DefaultFile+")")
	pf.StringVar(&e.flags.StorePath, "store", "", "DuckDB store holding the entities")
	pf.StringVar(&e.flags.CSVDataDir, "csv-data-dir", "", "Directory for definitions, dictionary and exports")
	pf.StringVar(&e.flags.ProjectFilter, "project-filter", "", "Canonical-name suffix selecting primary entities")
	pf.StringVar(&e.flags.LoadMode, "load-mode", "", "Load mode for existing entities (replace, append)")
	pf.StringVar(&e.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&e.flags.NoJournal, "no-journal", false, "Do not record runs in the journal")
	pf.StringVarP(&e.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSniffCmd())
	rootCmd.AddCommand(newDefinitionsCmd(e))
	rootCmd.AddCommand(newClassifyCmd(e))
	rootCmd.AddCommand(newCacheCmd(e))
	rootCmd.AddCommand(newLoadCmd(e))
	rootCmd.AddCommand(newReconcileCmd(e))
	rootCmd.AddCommand(newRunCmd(e))
	rootCmd.AddCommand(newRunsCmd(e))
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
