package hook

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/gitgate/internal/acl"
	"github.com/roach88/gitgate/internal/hookrun"
	"github.com/roach88/gitgate/internal/refs"
)

// DriverOptions configures a hook driver's optional lifecycle callbacks.
type DriverOptions struct {
	// Setup runs once per invocation, before the first unit is checked.
	Setup Callback

	// Teardown runs once per invocation, after the last unit was checked,
	// even when units failed.
	Teardown Callback
}

// RefCheck examines one affected reference.
type RefCheck func(*hookrun.Context, *hookrun.AffectedRef) error

// CommitCheck examines one commit (a patchset, for the remote review
// drivers).
type CommitCheck func(*hookrun.Context, *refs.Commit) error

// FileCheck examines the commit-message file at path.
type FileCheck func(*hookrun.Context, string) error

// refChangeHooks are the five "something changed a set of references"
// events spanned by CheckAffectedRefs.
var refChangeHooks = []string{CommitReceived, PreReceive, RefUpdate, Submit, Update}

// CheckAffectedRefs registers check across every reference-changing hook
// point. On each invocation the wrapper bypasses administrators, runs
// Setup once, checks each enabled affected reference, runs Teardown once,
// and succeeds iff no reference failed.
func CheckAffectedRefs(r *Registry, owner string, check RefCheck, opts DriverOptions) {
	fn := driver(owner, opts, func(ctx *hookrun.Context) (int, error) {
		failed := 0
		for _, ref := range ctx.AffectedRefs() {
			enabled, err := RefEnabled(ctx, ref.Name)
			if err != nil {
				return 0, err
			}
			if !enabled {
				continue
			}
			ok, err := runUnit(ctx, owner, hookrun.Fault{Ref: ref.Name},
				func() error { return check(ctx, ref) })
			if err != nil {
				return 0, err
			}
			if !ok {
				failed++
			}
		}
		return failed, nil
	})
	for _, hookName := range refChangeHooks {
		r.Register(hookName, owner, fn)
	}
}

// CheckCommit registers check across the two "about to commit" events. The
// unit of work is the current branch; a disabled branch skips the check.
func CheckCommit(r *Registry, owner string, check Callback, opts DriverOptions) {
	fn := driver(owner, opts, func(ctx *hookrun.Context) (int, error) {
		enabled, err := currentBranchEnabled(ctx)
		if err != nil {
			return 0, err
		}
		if !enabled {
			return 0, nil
		}
		ok, err := runUnit(ctx, owner, hookrun.Fault{}, func() error { return check(ctx) })
		if err != nil {
			return 0, err
		}
		if ok {
			return 0, nil
		}
		return 1, nil
	})
	r.Register(PreCommit, owner, fn)
	r.Register(PreApplypatch, owner, fn)
}

// CheckPatchset registers check across the two "patchset arrived" remote
// review events, handing it the patchset's commit.
func CheckPatchset(r *Registry, owner string, check CommitCheck, opts DriverOptions) {
	fn := driver(owner, opts, func(ctx *hookrun.Context) (int, error) {
		failed := 0
		for _, ref := range ctx.AffectedRefs() {
			enabled, err := RefEnabled(ctx, ref.Name)
			if err != nil {
				return 0, err
			}
			if !enabled {
				continue
			}
			commit, err := refs.GetCommit(ctx, ref.New)
			if err != nil {
				return 0, err
			}
			ok, err := runUnit(ctx, owner, hookrun.Fault{Ref: ref.Name, Commit: commit.ID},
				func() error { return check(ctx, commit) })
			if err != nil {
				return 0, err
			}
			if !ok {
				failed++
			}
		}
		return failed, nil
	})
	r.Register(PatchsetCreated, owner, fn)
	r.Register(DraftPublished, owner, fn)
}

// CheckMessageFile registers check across the two "message file available"
// events, handing it the message file path.
func CheckMessageFile(r *Registry, owner string, check FileCheck, opts DriverOptions) {
	fn := driver(owner, opts, func(ctx *hookrun.Context) (int, error) {
		if len(ctx.Args) == 0 {
			return 0, fmt.Errorf("%s hook: missing message file argument", ctx.HookName)
		}
		enabled, err := currentBranchEnabled(ctx)
		if err != nil {
			return 0, err
		}
		if !enabled {
			return 0, nil
		}
		ok, err := runUnit(ctx, owner, hookrun.Fault{},
			func() error { return check(ctx, ctx.Args[0]) })
		if err != nil {
			return 0, err
		}
		if ok {
			return 0, nil
		}
		return 1, nil
	})
	r.Register(CommitMsg, owner, fn)
	r.Register(ApplypatchMsg, owner, fn)
}

// driver builds the common wrapper: admin bypass, Setup, unit iteration,
// Teardown, overall success iff no unit failed.
func driver(owner string, opts DriverOptions, units func(*hookrun.Context) (int, error)) Callback {
	return func(ctx *hookrun.Context) error {
		admin, err := acl.IsAdmin(ctx)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
		if opts.Setup != nil {
			if err := opts.Setup(ctx); err != nil && err != ErrCheckFailed {
				return err
			}
		}
		failed, err := units(ctx)
		if opts.Teardown != nil {
			if terr := opts.Teardown(ctx); terr != nil && terr != ErrCheckFailed && err == nil {
				err = terr
			}
		}
		if err != nil {
			return err
		}
		if failed > 0 {
			return ErrCheckFailed
		}
		return nil
	}
}

// runUnit converts a check's result into (passed, fatal-error). A check
// returning ErrCheckFailed has already recorded its faults; any other plain
// error is recorded here, so a failed unit always leaves a fault behind and
// the run cannot silently succeed. Configuration errors abort the run
// instead.
func runUnit(ctx *hookrun.Context, owner string, unit hookrun.Fault, check func() error) (bool, error) {
	err := check()
	switch {
	case err == nil:
		return true, nil
	case hookrun.IsConfigError(err):
		return false, err
	case errors.Is(err, ErrCheckFailed):
		return false, nil
	default:
		unit.Message = fmt.Sprintf("check failed on %s hook: %v", ctx.HookName, err)
		recordCheckFault(ctx, owner, unit)
		return false, nil
	}
}

// RefEnabled applies the reference-enablement rules: a gitgate.noref match
// disables the reference; otherwise a non-empty gitgate.ref list enables
// only its matches. Matchers are literals or anchored regexps.
func RefEnabled(ctx *hookrun.Context, refName string) (bool, error) {
	match := func(option, spec string) (bool, error) {
		if strings.HasPrefix(spec, "^") {
			re, err := regexp.Compile(spec)
			if err != nil {
				return false, hookrun.NewConfigError(option, "bad reference matcher %q: %v", spec, err)
			}
			return re.MatchString(refName), nil
		}
		return spec == refName, nil
	}
	for _, spec := range ctx.ConfigAll("gitgate", "noref") {
		ok, err := match("gitgate.noref", spec)
		if err != nil || ok {
			return false, err
		}
	}
	enabled := ctx.ConfigAll("gitgate", "ref")
	if len(enabled) == 0 {
		return true, nil
	}
	for _, spec := range enabled {
		ok, err := match("gitgate.ref", spec)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// currentBranchEnabled resolves the branch about to be committed to and
// applies RefEnabled. A detached head has no branch to disable.
func currentBranchEnabled(ctx *hookrun.Context) (bool, error) {
	branch, err := ctx.Git.Output("symbolic-ref", "-q", "HEAD")
	if err != nil || branch == "" {
		return true, nil
	}
	return RefEnabled(ctx, branch)
}
