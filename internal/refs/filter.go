package refs

import (
	"strings"

	"github.com/roach88/gitgate/internal/hookrun"
)

// FileStatus is one entry of a name-status listing: the one-letter change
// status (A, M, D, ...) and the path it applies to.
type FileStatus struct {
	Status string
	Path   string
}

func parseNameStatus(out string) []FileStatus {
	var files []FileStatus
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		// Rename/copy statuses carry a score (R100); keep the letter.
		files = append(files, FileStatus{Status: fields[0][:1], Path: fields[1]})
	}
	return files
}

// StagedFiles compares the staged index against the current tree (the empty
// tree when the repository has no commits yet).
func StagedFiles(ctx *hookrun.Context) ([]FileStatus, error) {
	cache := ctx.Cache("refs.files")
	if cached, ok := cache["staged"]; ok {
		return cached.([]FileStatus), nil
	}
	base := "HEAD"
	if _, err := ctx.Git.Output("rev-parse", "--verify", "--quiet", "HEAD"); err != nil {
		base = hookrun.EmptyTree
	}
	out, err := ctx.Git.Output("diff-index", "--name-status", "--cached", base)
	if err != nil {
		return nil, err
	}
	files := parseNameStatus(out)
	cache["staged"] = files
	return files, nil
}

// RangeFiles compares one commit range against another: the paths changed
// between old and new. A brand-new reference compares against the empty
// tree.
func RangeFiles(ctx *hookrun.Context, old, new string) ([]FileStatus, error) {
	if old == hookrun.UndefinedCommit {
		old = hookrun.EmptyTree
	}
	cache := ctx.Cache("refs.files")
	key := old + ".." + new
	if cached, ok := cache[key]; ok {
		return cached.([]FileStatus), nil
	}
	out, err := ctx.Git.Output("diff-tree", "--name-status", "-r", old, new)
	if err != nil {
		return nil, err
	}
	files := parseNameStatus(out)
	cache[key] = files
	return files, nil
}

// CommitFiles compares a single commit against all of its parents. For a
// merge commit a path is reported only if it was altered relative to every
// parent: files unchanged against at least one parent were already vetted
// on that ancestry line and are deliberately not re-checked.
func CommitFiles(ctx *hookrun.Context, id string) ([]FileStatus, error) {
	cache := ctx.Cache("refs.files")
	key := "commit:" + id
	if cached, ok := cache[key]; ok {
		return cached.([]FileStatus), nil
	}
	c, err := GetCommit(ctx, id)
	if err != nil {
		return nil, err
	}
	parents := c.Parents
	if len(parents) == 0 {
		parents = []string{hookrun.EmptyTree}
	}
	var files []FileStatus
	for i, parent := range parents {
		out, err := ctx.Git.Output("diff-tree", "--name-status", "-r", parent, id)
		if err != nil {
			return nil, err
		}
		changed := parseNameStatus(out)
		if i == 0 {
			files = changed
			continue
		}
		seen := make(map[string]bool, len(changed))
		for _, f := range changed {
			seen[f.Path] = true
		}
		kept := files[:0]
		for _, f := range files {
			if seen[f.Path] {
				kept = append(kept, f)
			}
		}
		files = kept
	}
	cache[key] = files
	return files, nil
}

// FilterStatus keeps the entries whose status letter appears in letters.
func FilterStatus(files []FileStatus, letters string) []FileStatus {
	var kept []FileStatus
	for _, f := range files {
		if strings.Contains(letters, f.Status) {
			kept = append(kept, f)
		}
	}
	return kept
}
