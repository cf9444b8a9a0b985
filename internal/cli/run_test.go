package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gitgate/internal/hook"
	"github.com/roach88/gitgate/internal/hookrun"
	"github.com/roach88/gitgate/internal/testutil"
)

// newRunFixture wires a run command invocation against a FakeGit, capturing
// the output streams.
func newRunFixture(t *testing.T, plugins []hook.Plugin, records ...string) (*RunOptions, *cobra.Command, *testutil.FakeGit) {
	t.Helper()
	t.Setenv("USER", "tester")

	git := testutil.NewFakeGit()
	out := ""
	for _, r := range records {
		out += r + "\x00"
	}
	git.Respond("config --list -z", out)
	git.Respond("rev-parse --git-dir", t.TempDir())

	opts := &RunOptions{
		RootOptions: &RootOptions{Plugins: plugins},
		Git:         git,
	}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewReader(nil))
	return opts, cmd, git
}

func TestRunHook_Success(t *testing.T) {
	opts, cmd, _ := newRunFixture(t, nil, "user.name\nAlice")

	err := runHook(opts, []string{"update", "refs/heads/master", "1111", "2222"}, cmd)
	assert.NoError(t, err)
}

func TestRunHook_PolicyFailureExitsOne(t *testing.T) {
	plugin := hook.Plugin{Name: "alwaysfail", Register: func(r *hook.Registry) {
		r.Update("alwaysfail", func(ctx *hookrun.Context) error {
			ctx.Faultf("alwaysfail", "rejected on principle")
			return hook.ErrCheckFailed
		})
	}}
	opts, cmd, _ := newRunFixture(t, []hook.Plugin{plugin},
		"gitgate.plugin\nalwaysfail")

	err := runHook(opts, []string{"update", "refs/heads/master", "1111", "2222"}, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "rejected on principle",
		"the error text carries the fault report")
}

func TestRunHook_ConfigErrorExitsTwo(t *testing.T) {
	opts, cmd, git := newRunFixture(t, nil)
	git.Fail("config --list -z", errors.New("not a git repository"))

	err := runHook(opts, []string{"update", "refs/heads/master", "1111", "2222"}, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunHook_UnknownPluginExitsTwo(t *testing.T) {
	opts, cmd, _ := newRunFixture(t, nil, "gitgate.plugin\nnosuch")

	err := runHook(opts, []string{"update", "refs/heads/master", "1111", "2222"}, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_RequiresHookName(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})

	err := cmd.Execute()
	require.Error(t, err)
}
