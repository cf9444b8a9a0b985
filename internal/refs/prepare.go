package refs

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/gitgate/internal/hookrun"
)

// PrepareReceive consumes the "old new ref" triples streamed on standard
// input by receive-style hooks and records them in the affected-reference
// table. The raw input is retained so it can be replayed byte-for-byte to
// external hook programs.
func PrepareReceive(ctx *hookrun.Context, stdin io.Reader) error {
	if err := ctx.CaptureStdin(stdin); err != nil {
		return err
	}
	for _, line := range strings.Split(string(ctx.Stdin()), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return fmt.Errorf("malformed %s input line %q", ctx.HookName, line)
		}
		ctx.SetAffectedRef(fields[2], fields[0], fields[1])
	}
	return nil
}

// PrepareUpdate records the single reference passed positionally to the
// update hook: ref, old, new.
func PrepareUpdate(ctx *hookrun.Context) error {
	if len(ctx.Args) != 3 {
		return fmt.Errorf("%s hook expects 3 arguments, got %d", ctx.HookName, len(ctx.Args))
	}
	ctx.SetAffectedRef(ctx.Args[0], ctx.Args[1], ctx.Args[2])
	return nil
}

// PrepareGerrit normalizes a remote review hook's --option value pairs. The
// option map is stored on the context for the voting driver and for
// external hook argument flattening, and the patchset's branch/commit is
// recorded as the single affected reference.
func PrepareGerrit(ctx *hookrun.Context) error {
	opts := make(map[string]string, len(ctx.Args)/2)
	for i := 0; i < len(ctx.Args); i++ {
		arg := ctx.Args[i]
		if !strings.HasPrefix(arg, "--") {
			return fmt.Errorf("%s hook: expected option, got %q", ctx.HookName, arg)
		}
		key := strings.TrimPrefix(arg, "--")
		value := ""
		if i+1 < len(ctx.Args) && !strings.HasPrefix(ctx.Args[i+1], "--") {
			value = ctx.Args[i+1]
			i++
		}
		opts[key] = value
	}
	ctx.SetGerritOptions(opts)

	// ref-update style notifications carry the movement explicitly.
	if refname := opts["refname"]; refname != "" {
		old := opts["oldrev"]
		if old == "" {
			old = hookrun.UndefinedCommit
		}
		ctx.SetAffectedRef(refname, old, opts["newrev"])
		return nil
	}

	branch := opts["branch"]
	commit := opts["commit"]
	if branch == "" || commit == "" {
		return fmt.Errorf("%s hook: missing --branch or --commit option", ctx.HookName)
	}
	if !strings.HasPrefix(branch, "refs/") {
		branch = "refs/heads/" + branch
	}
	// The patchset's own commits are exactly new..new^, so resolve the
	// parent when it exists; a root commit keeps the undefined sentinel.
	old := hookrun.UndefinedCommit
	if parent, err := ctx.Git.Output("rev-parse", "--verify", "--quiet", commit+"^"); err == nil && parent != "" {
		old = parent
	}
	ctx.SetAffectedRef(branch, old, commit)
	return nil
}
