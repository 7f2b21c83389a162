package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the infer CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "infer",
		Short:   "Reconcile PIT datasets against reference datasets",
		Version: a.version,
		Long: `Infer reconciles the PITs of a source dataset against records in one or
more reference datasets. Declarative rules decide which PIT types are
matched against which datasets, how the search query is built, and which
manual overrides bypass the search backend.

Every outcome is written to <dataset>.log.ndjson; accepted relations to
<dataset>.relations.ndjson and unmatched PITs to <dataset>.errors.ndjson.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.PersistentFlags().BoolVarP(&a.config.Verbose, "verbose", "v", a.config.Verbose, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolVarP(&a.config.Quiet, "quiet", "q", a.config.Quiet, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().StringVarP(&a.config.Format, "format", "o", a.config.Format, "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&a.config.LogLevel, "log-level", a.config.LogLevel, "log level: trace, debug, info, warn, error (overrides -v/-q)")
	rootCmd.PersistentFlags().StringVar(&a.config.RulesDir, "rules", a.config.RulesDir, "directory holding <source>.rules.yaml files")
	rootCmd.PersistentFlags().StringVarP(&a.config.Source, "source", "s", a.config.Source, "source dataset id")

	rootCmd.SetVersionTemplate("infer {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs. Flags are bound to the
// config directly, so only the logger needs rebuilding.
func (a *App) setupCommand(_ *cobra.Command, _ []string) error {
	if a.customLogger {
		return nil
	}
	logger := NewLogger(a.config)
	a.logger = &logger
	return nil
}

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.NewRunCommand())
	rootCmd.AddCommand(a.NewValidateCommand())
	rootCmd.AddCommand(a.NewVersionCommand())
}

// ExitOnError is a helper that prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
