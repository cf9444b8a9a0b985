package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/gitgate/internal/hook"
)

// RootOptions holds global flags for all commands, plus the set of
// compiled-in checks the binary was built with.
type RootOptions struct {
	Verbose bool
	Plugins []hook.Plugin
}

// NewRootCommand creates the root command for the gitgate CLI. plugins is
// the static catalog of compiled-in checks; gitgate ships the framework,
// the binary author ships the policies.
func NewRootCommand(plugins ...hook.Plugin) *cobra.Command {
	opts := &RootOptions{Plugins: plugins}

	cmd := &cobra.Command{
		Use:   "gitgate",
		Short: "gitgate - git hook policy enforcement",
		Long: `A framework for dispatching git and Gerrit hooks to configured
policy checks, collecting their faults into a single report.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel := slog.LevelInfo
			if opts.Verbose {
				logLevel = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			slog.SetDefault(slog.New(handler))
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewInstallCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}
