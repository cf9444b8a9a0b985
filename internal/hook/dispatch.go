package hook

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/roach88/gitgate/internal/external"
	"github.com/roach88/gitgate/internal/gerrit"
	"github.com/roach88/gitgate/internal/hookrun"
	"github.com/roach88/gitgate/internal/refs"
)

// receiveHooks read "old new ref" triples from standard input.
var receiveHooks = map[string]bool{
	PreReceive:     true,
	PostReceive:    true,
	CommitReceived: true,
	Submit:         true,
}

// gerritHooks carry option/value argument pairs from the review server.
var gerritHooks = map[string]bool{
	PatchsetCreated: true,
	DraftPublished:  true,
	RefUpdate:       true,
}

// votingHooks additionally cast an asynchronous vote after dispatch.
var votingHooks = map[string]bool{
	PatchsetCreated: true,
	DraftPublished:  true,
}

// Run drives one hook invocation end-to-end: canonicalize the hook name,
// resolve the authenticated user, prepare the affected-reference table,
// load the enabled plugins, invoke every registered entry inside an
// isolated failure boundary, run the external hooks and the post-dispatch
// callbacks, and finally surface the accumulated faults exactly once.
//
// A callback that fails is not fatal to the dispatch: subsequent entries
// still run, collecting everything before failing once. Configuration and
// environment errors, by contrast, abort immediately.
func Run(r *Registry, catalog *Catalog, ctx *hookrun.Context, stdin io.Reader) error {
	ctx.HookName = filepath.Base(ctx.HookName)
	hookName := ctx.HookName
	slog.Debug("dispatch starting", "run", ctx.RunID, "hook", hookName)

	if err := ctx.LoadConfig(); err != nil {
		return err
	}
	color, err := ctx.ConfigBool("gitgate", "color", ctx.Color)
	if err != nil {
		return err
	}
	ctx.Color = color
	// The length limit feeds every report rendering, including the vote
	// callback's; reject an invalid value before any check runs.
	if _, _, err := ctx.ConfigInt("gitgate", "error-length-limit"); err != nil {
		return err
	}
	user, err := ctx.User()
	if err != nil {
		return err
	}
	slog.Debug("authenticated user resolved", "run", ctx.RunID, "user", user)

	switch {
	case receiveHooks[hookName]:
		if err := refs.PrepareReceive(ctx, stdin); err != nil {
			return err
		}
	case hookName == Update:
		if err := refs.PrepareUpdate(ctx); err != nil {
			return err
		}
	case gerritHooks[hookName]:
		if err := refs.PrepareGerrit(ctx); err != nil {
			return err
		}
	}

	if votingHooks[hookName] {
		votable, err := gerrit.SetupVoting(ctx)
		if err != nil {
			return err
		}
		if !votable {
			// A draft change is invisible to the voting identity; there is
			// nothing useful this run can do.
			slog.Debug("unvotable change, skipping dispatch", "run", ctx.RunID)
			return nil
		}
	}

	if err := LoadPlugins(ctx, catalog, r); err != nil {
		return err
	}
	if err := ctx.StartTimeout(); err != nil {
		return err
	}

	for _, entry := range r.Entries(hookName) {
		if ctx.Expired() {
			ctx.Fault(hookrun.Fault{
				Message: fmt.Sprintf("timeout exceeded; skipping check %s", entry.Owner),
				Option:  "gitgate.timeout",
			})
			break
		}
		if err := runEntry(ctx, hookName, entry); err != nil {
			return err
		}
	}

	if err := external.Run(ctx); err != nil {
		return err
	}

	for _, fn := range ctx.AfterRunCallbacks() {
		if err := fn(ctx); err != nil {
			return err
		}
	}

	warnOnly := false
	if hookName == PreCommit || hookName == CommitMsg {
		abort, err := ctx.ConfigBool("gitgate", "abort-commit", true)
		if err != nil {
			return err
		}
		warnOnly = !abort
	}
	return ctx.FailOnFaults(warnOnly)
}

// runEntry invokes one registered callback inside its failure boundary. A
// panic is converted into the same faulted representation as an explicit
// failure; only configuration errors propagate.
func runEntry(ctx *hookrun.Context, hookName string, entry Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			recordEntryFault(ctx, hookName, entry, fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()
	cerr := entry.Fn(ctx)
	switch {
	case cerr == nil:
	case errors.Is(cerr, ErrCheckFailed):
		// The check already recorded its faults.
	case hookrun.IsConfigError(cerr):
		return cerr
	default:
		recordEntryFault(ctx, hookName, entry, cerr)
	}
	return nil
}

func recordEntryFault(ctx *hookrun.Context, hookName string, entry Entry, cause error) {
	recordCheckFault(ctx, entry.Owner, hookrun.Fault{
		Message: fmt.Sprintf("check failed on %s hook: %v", hookName, cause),
	})
}

// recordCheckFault records a check's unexpected error under the
// gitgate(owner) identity, with the owner's help-on-error guidance followed
// by the global one.
func recordCheckFault(ctx *hookrun.Context, owner string, f hookrun.Fault) {
	var details []string
	if help, ok := ctx.ConfigValue("gitgate."+strings.ToLower(owner), "help-on-error"); ok {
		details = append(details, help)
	}
	if help, ok := ctx.ConfigValue("gitgate", "help-on-error"); ok {
		details = append(details, help)
	}
	f.Prefix = "gitgate(" + owner + ")"
	f.Details = strings.Join(details, "\n")
	ctx.Fault(f)
}
