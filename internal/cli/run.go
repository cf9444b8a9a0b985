package cli

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/roach88/gitgate/internal/gitcmd"
	"github.com/roach88/gitgate/internal/hook"
	"github.com/roach88/gitgate/internal/hookrun"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Git allows overriding the repository command facade (for testing).
	// If nil, defaults to a real git subprocess in the working directory.
	Git gitcmd.Runner
}

// NewRunCommand creates the run command, the dispatch entry point every
// installed hook script execs into.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <hook-name> [args...]",
		Short: "Dispatch one hook invocation",
		Long: `Dispatch one hook invocation to every configured check.

The hook name selects the event being handled (pre-receive, update,
commit-msg, patchset-created, ...); the remaining arguments and standard
input are passed through exactly as git or Gerrit provided them.

Example:
  gitgate run update refs/heads/master <old-sha> <new-sha>
  gitgate run commit-msg .git/COMMIT_EDITMSG`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(opts, args, cmd)
		},
	}

	return cmd
}

func runHook(opts *RunOptions, args []string, cmd *cobra.Command) error {
	git := opts.Git
	if git == nil {
		git = gitcmd.New("")
	}

	ctx := hookrun.New(git, args[0], args[1:])
	ctx.Stdout = cmd.OutOrStdout()
	ctx.Stderr = cmd.ErrOrStderr()
	ctx.Color = isatty.IsTerminal(os.Stderr.Fd())

	catalog, err := hook.NewCatalog(opts.Plugins...)
	if err != nil {
		return WrapExitError(ExitCommandError, "building plugin catalog", err)
	}

	err = hook.Run(hook.NewRegistry(), catalog, ctx, cmd.InOrStdin())
	switch {
	case err == nil:
		return nil
	case hookrun.IsFaultsError(err):
		// The error text is the aggregate fault report.
		return &ExitError{Code: ExitFailure, Err: err}
	default:
		return WrapExitError(ExitCommandError, args[0], err)
	}
}
