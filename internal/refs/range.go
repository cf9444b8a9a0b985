package refs

import (
	"log/slog"
	"strings"

	"github.com/roach88/gitgate/internal/hookrun"
)

// postAcceptanceHooks are the hook points that run after the proposed
// references already exist in the repository's ref namespace. Everything
// else is pre-acceptance: the new tips are not yet among --branches --tags.
var postAcceptanceHooks = map[string]bool{
	"post-receive": true,
	"post-update":  true,
	"ref-updated":  true,
}

// RefCommits expands an affected reference into the commits it introduces.
func RefCommits(ctx *hookrun.Context, ref *hookrun.AffectedRef) ([]*Commit, error) {
	return CommitRange(ctx, ref.Old, ref.New, nil, nil)
}

// CommitRange returns the ordered list of commits reachable from new but
// not from old or from any other existing reference. opts are extra
// traversal flags for rev-list; paths is an optional path filter. The
// result is memoized per (old, new, opts, paths) within the context.
func CommitRange(ctx *hookrun.Context, old, new string, opts, paths []string) ([]*Commit, error) {
	// A deleted reference introduces nothing.
	if new == hookrun.UndefinedCommit {
		return nil, nil
	}

	// opts and paths are keyed as separate segments so a flag and a path
	// with the same spelling cannot share a memo entry.
	key := old + "\x01" + new + "\x01" + strings.Join(opts, "\x00") + "\x01" + strings.Join(paths, "\x00")
	cache := ctx.Cache("refs.ranges")
	if cached, ok := cache[key]; ok {
		return cached.([]*Commit), nil
	}

	args := []string{"rev-list"}
	args = append(args, opts...)
	args = append(args, "--format="+prettyFormat, new)

	// old may not be covered by the generic exclusion set, so exclude it
	// explicitly unless the reference is brand new. This must come before
	// --not, which reverses the meaning of the ^ prefix.
	if old != hookrun.UndefinedCommit {
		args = append(args, "^"+old)
	}

	exclude, err := exclusionSet(ctx, new)
	if err != nil {
		return nil, err
	}
	args = append(args, "--not")
	args = append(args, exclude...)

	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	out, err := ctx.Git.Output(args...)
	if err != nil {
		return nil, err
	}
	commits, err := parseCommits(out)
	if err != nil {
		return nil, err
	}
	slog.Debug("commit range resolved",
		"run", ctx.RunID, "old", old, "new", new, "commits", len(commits))

	byID := ctx.Cache("refs.commits")
	for _, c := range commits {
		byID[c.ID] = c
	}
	cache[key] = commits
	return commits, nil
}

// exclusionSet computes what "already reachable from every other reference"
// means for the current hook point.
//
// Pre-acceptance, the proposed tips do not exist yet, so excluding
// everything reachable from any branch or tag is safe and can stay
// symbolic. Post-acceptance, the new tip itself is one of --branches
// --tags; the concrete tip list is materialized and the new tip's own entry
// is dropped only when exactly one reference points at it. If two or more
// do, the commit is legitimately old history shared with another ref and
// must stay excluded.
func exclusionSet(ctx *hookrun.Context, new string) ([]string, error) {
	if !postAcceptanceHooks[ctx.HookName] {
		return []string{"--branches", "--tags"}, nil
	}
	tips, err := ctx.Git.OutputLines("rev-parse", "--branches", "--tags")
	if err != nil {
		return nil, err
	}
	pointing, err := ctx.Git.OutputLines("for-each-ref", "--format=%(refname)", "--points-at", new)
	if err != nil {
		return nil, err
	}
	if len(pointing) != 1 {
		return tips, nil
	}
	exclude := make([]string, 0, len(tips))
	dropped := false
	for _, tip := range tips {
		if !dropped && tip == new {
			dropped = true
			continue
		}
		exclude = append(exclude, tip)
	}
	return exclude, nil
}
