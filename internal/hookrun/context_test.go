package hookrun

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gitgate/internal/testutil"
)

// env returns a lookup function over a fixed map.
func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestNew_Defaults(t *testing.T) {
	ctx := New(testutil.NewFakeGit(), "update", []string{"refs/heads/master"})

	assert.Equal(t, "update", ctx.HookName)
	assert.Equal(t, []string{"refs/heads/master"}, ctx.Args)
	assert.NotEmpty(t, ctx.RunID)
	assert.Empty(t, ctx.AffectedRefs())
	assert.False(t, ctx.HasFaults())
}

func TestSetAffectedRef_ReplaceKeepsPosition(t *testing.T) {
	ctx := New(testutil.NewFakeGit(), "pre-receive", nil)

	ctx.SetAffectedRef("refs/heads/a", "1111", "2222")
	ctx.SetAffectedRef("refs/heads/b", "3333", "4444")
	ctx.SetAffectedRef("refs/heads/a", "1111", "5555")

	refs := ctx.AffectedRefs()
	require.Len(t, refs, 2)
	assert.Equal(t, "refs/heads/a", refs[0].Name)
	assert.Equal(t, "5555", refs[0].New)
	assert.Equal(t, "refs/heads/b", refs[1].Name)

	assert.Same(t, refs[0], ctx.AffectedRef("refs/heads/a"))
	assert.Nil(t, ctx.AffectedRef("refs/heads/c"))
}

func TestAffectedRef_CreatedDeleted(t *testing.T) {
	created := &AffectedRef{Old: UndefinedCommit, New: "abc"}
	assert.True(t, created.Created())
	assert.False(t, created.Deleted())

	deleted := &AffectedRef{Old: "abc", New: UndefinedCommit}
	assert.True(t, deleted.Deleted())
	assert.False(t, deleted.Created())
}

func TestCaptureStdin_Verbatim(t *testing.T) {
	ctx := New(testutil.NewFakeGit(), "pre-receive", nil)
	input := "1111 2222 refs/heads/a\n3333 4444 refs/heads/b\n"

	require.NoError(t, ctx.CaptureStdin(strings.NewReader(input)))
	assert.Equal(t, []byte(input), ctx.Stdin())
}

func TestCache_ScopedAndPersistent(t *testing.T) {
	ctx := New(testutil.NewFakeGit(), "update", nil)

	a := ctx.Cache("refs.commits")
	a["k"] = 1
	b := ctx.Cache("acl")
	b["k"] = 2

	assert.Equal(t, 1, ctx.Cache("refs.commits")["k"])
	assert.Equal(t, 2, ctx.Cache("acl")["k"])
}

func TestUser_ConfiguredEnvVar(t *testing.T) {
	ctx, _ := newConfigContext(t, "gitgate.userenv\nACME_USER")
	ctx.SetEnvLookup(env(map[string]string{"ACME_USER": "bob", "USER": "nobody"}))

	user, err := ctx.User()
	require.NoError(t, err)
	assert.Equal(t, "bob", user)
}

func TestUser_ConfiguredEnvVarMissingIsFatal(t *testing.T) {
	ctx, _ := newConfigContext(t, "gitgate.userenv\nACME_USER")
	ctx.SetEnvLookup(env(map[string]string{"USER": "bob"}))

	_, err := ctx.User()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACME_USER")
}

func TestUser_FallbackOrder(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	ctx.SetEnvLookup(env(map[string]string{
		"GL_USERNAME": "gitlab-user",
		"USER":        "shell-user",
	}))

	user, err := ctx.User()
	require.NoError(t, err)
	assert.Equal(t, "gitlab-user", user, "GL_USERNAME outranks USER")
}

func TestUser_Unresolvable(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	ctx.SetEnvLookup(env(nil))

	_, err := ctx.User()
	require.Error(t, err)
}

func TestUser_Memoized(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	calls := 0
	ctx.SetEnvLookup(func(name string) (string, bool) {
		if name == "USER" {
			calls++
			return "alice", true
		}
		return "", false
	})

	for i := 0; i < 3; i++ {
		user, err := ctx.User()
		require.NoError(t, err)
		assert.Equal(t, "alice", user)
	}
	assert.Equal(t, 1, calls)
}

func TestAfterRun_Order(t *testing.T) {
	ctx := New(testutil.NewFakeGit(), "patchset-created", nil)

	var order []int
	ctx.AfterRun(func(*Context) error { order = append(order, 1); return nil })
	ctx.AfterRun(func(*Context) error { order = append(order, 2); return nil })

	for _, fn := range ctx.AfterRunCallbacks() {
		require.NoError(t, fn(ctx))
	}
	assert.Equal(t, []int{1, 2}, order)
}

func TestStartTimeout(t *testing.T) {
	ctx, _ := newConfigContext(t, "user.name\nAlice")
	require.NoError(t, ctx.StartTimeout())
	assert.False(t, ctx.Expired(), "no timeout configured means no deadline")

	ctx, _ = newConfigContext(t, "gitgate.timeout\n3600")
	require.NoError(t, ctx.StartTimeout())
	assert.False(t, ctx.Expired(), "a generous deadline has not passed yet")

	ctx, _ = newConfigContext(t, "gitgate.timeout\nsoon")
	require.Error(t, ctx.StartTimeout())
}

func TestGerritOptions_Roundtrip(t *testing.T) {
	ctx := New(testutil.NewFakeGit(), "patchset-created", nil)
	assert.Nil(t, ctx.GerritOptions())

	opts := map[string]string{"change": "I0123", "project": "p"}
	ctx.SetGerritOptions(opts)
	assert.Equal(t, opts, ctx.GerritOptions())
}
