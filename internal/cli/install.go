package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gitgate/internal/gitcmd"
	"github.com/roach88/gitgate/internal/hook"
)

// defaultHookFiles are the local git hook points installed when no hook
// names are given. The Gerrit events (patchset-created, ref-update, ...)
// are configured server-side, not as files in .git/hooks.
var defaultHookFiles = []string{
	hook.ApplypatchMsg,
	hook.CommitMsg,
	hook.PostApplypatch,
	hook.PostCommit,
	hook.PostReceive,
	hook.PostUpdate,
	hook.PreApplypatch,
	hook.PreCommit,
	hook.PreReceive,
	hook.Update,
}

const hookScript = `#!/bin/sh
exec gitgate run %s "$@"
`

// InstallOptions holds flags for the install command.
type InstallOptions struct {
	*RootOptions
	Force bool

	// Git allows overriding the repository command facade (for testing).
	Git gitcmd.Runner
}

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InstallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "install [hooks...]",
		Short: "Install hook scripts into .git/hooks",
		Long: `Install thin hook scripts that exec "gitgate run <hook>" into the
repository's hooks directory. Without arguments every local hook point is
installed; otherwise only the named ones.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return installHooks(opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite existing hook files")

	return cmd
}

func installHooks(opts *InstallOptions, hookNames []string) error {
	git := opts.Git
	if git == nil {
		git = gitcmd.New("")
	}
	hooksDir, err := git.Output("rev-parse", "--git-path", "hooks")
	if err != nil {
		return WrapExitError(ExitCommandError, "locating hooks directory", err)
	}
	if err := os.MkdirAll(hooksDir, 0o777); err != nil {
		return WrapExitError(ExitCommandError, "creating hooks directory", err)
	}

	if len(hookNames) == 0 {
		hookNames = defaultHookFiles
	}

	var existing []string
	for _, hookName := range hookNames {
		filename := filepath.Join(hooksDir, hookName)
		content := fmt.Sprintf(hookScript, hookName)

		if data, err := os.ReadFile(filename); err == nil {
			if string(data) == content {
				continue
			}
			if !opts.Force {
				existing = append(existing, filename)
				continue
			}
		}

		slog.Debug("installing hook", "hook", hookName, "path", filename)
		if err := os.WriteFile(filename, []byte(content), 0o700); err != nil {
			return WrapExitError(ExitCommandError, "writing hook", err)
		}
	}

	if len(existing) > 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf(
			"hook files already exist: %s\nre-run with --force to overwrite them",
			strings.Join(existing, ", ")))
	}
	return nil
}
