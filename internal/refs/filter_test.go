package refs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gitgate/internal/hookrun"
)

func TestParseNameStatus(t *testing.T) {
	files := parseNameStatus("A\tnew.txt\nM\tlib/mod.go\nR100\trenamed.txt\nD\tgone.txt\n")
	require.Len(t, files, 4)
	assert.Equal(t, FileStatus{Status: "A", Path: "new.txt"}, files[0])
	assert.Equal(t, FileStatus{Status: "R", Path: "renamed.txt"}, files[2], "rename score stripped")
	assert.Equal(t, FileStatus{Status: "D", Path: "gone.txt"}, files[3])
}

func TestStagedFiles(t *testing.T) {
	ctx, git := newRefsContext(t, "pre-commit")
	git.Respond("rev-parse --verify --quiet HEAD", "1111")
	cmdline := "diff-index --name-status --cached HEAD"
	git.Respond(cmdline, "M\ta.go\nA\tb.go\n")

	files, err := StagedFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)

	_, err = StagedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, git.CallCount(cmdline))
}

func TestStagedFiles_UnbornBranch(t *testing.T) {
	// The very first commit has no HEAD to diff against; the empty tree
	// stands in.
	ctx, git := newRefsContext(t, "pre-commit")
	git.Fail("rev-parse --verify --quiet HEAD", errors.New("unborn"))
	git.Respond("diff-index --name-status --cached "+hookrun.EmptyTree, "A\tfirst.go\n")

	files, err := StagedFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "first.go", files[0].Path)
}

func TestRangeFiles(t *testing.T) {
	ctx, git := newRefsContext(t, "update")
	git.Respond("diff-tree --name-status -r old new", "M\ta.go\n")

	files, err := RangeFiles(ctx, "old", "new")
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestRangeFiles_NewRefUsesEmptyTree(t *testing.T) {
	ctx, git := newRefsContext(t, "update")
	git.Respond("diff-tree --name-status -r "+hookrun.EmptyTree+" new", "A\ta.go\n")

	files, err := RangeFiles(ctx, hookrun.UndefinedCommit, "new")
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestCommitFiles_SingleParent(t *testing.T) {
	ctx, git := newRefsContext(t, "update")
	git.Respond("rev-list --no-walk --format="+prettyFormat+" c1", record("c1", "t1", "p1", "Subject\n"))
	git.Respond("diff-tree --name-status -r p1 c1", "M\ta.go\nA\tb.go\n")

	files, err := CommitFiles(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestCommitFiles_MergeIntersectsParents(t *testing.T) {
	// A merge commit only reports paths changed against every parent; a path
	// untouched relative to one parent was already vetted on that line.
	ctx, git := newRefsContext(t, "update")
	git.Respond("rev-list --no-walk --format="+prettyFormat+" m", record("m", "t1", "p1 p2", "Merge\n"))
	git.Respond("diff-tree --name-status -r p1 m", "M\tshared.go\nM\tonly-p1.go\n")
	git.Respond("diff-tree --name-status -r p2 m", "M\tshared.go\nA\tonly-p2.go\n")

	files, err := CommitFiles(ctx, "m")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "shared.go", files[0].Path)
}

func TestCommitFiles_RootCommit(t *testing.T) {
	ctx, git := newRefsContext(t, "update")
	git.Respond("rev-list --no-walk --format="+prettyFormat+" c1", record("c1", "t1", "", "Root\n"))
	git.Respond("diff-tree --name-status -r "+hookrun.EmptyTree+" c1", "A\ta.go\n")

	files, err := CommitFiles(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestFilterStatus(t *testing.T) {
	files := []FileStatus{
		{Status: "A", Path: "a"},
		{Status: "M", Path: "m"},
		{Status: "D", Path: "d"},
	}
	kept := FilterStatus(files, "AM")
	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].Path)
	assert.Equal(t, "m", kept[1].Path)

	assert.Nil(t, FilterStatus(files, "R"))
}
