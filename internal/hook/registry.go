// Package hook is the registry and dispatch engine: checks register
// callbacks against named hook points while plugins load, and one dispatch
// drives an invocation end-to-end.
package hook

import (
	"errors"

	"github.com/roach88/gitgate/internal/hookrun"
)

// Known hook-point names.
const (
	ApplypatchMsg   = "applypatch-msg"
	CommitMsg       = "commit-msg"
	CommitReceived  = "commit-received"
	DraftPublished  = "draft-published"
	PatchsetCreated = "patchset-created"
	PostApplypatch  = "post-applypatch"
	PostCommit      = "post-commit"
	PostReceive     = "post-receive"
	PostUpdate      = "post-update"
	PreApplypatch   = "pre-applypatch"
	PreCommit       = "pre-commit"
	PreReceive      = "pre-receive"
	RefUpdate       = "ref-update"
	Submit          = "submit"
	Update          = "update"
)

// Callback is one registered check. A nil return means the check passed.
// Checks record their own faults on the context and return ErrCheckFailed;
// any other error (or a panic) is recorded as a fault by the dispatcher
// itself.
type Callback func(*hookrun.Context) error

// ErrCheckFailed signals that a check found violations it has already
// recorded as faults. The dispatcher counts the failure without adding a
// second fault.
var ErrCheckFailed = errors.New("check failed")

// Entry pairs a callback with the identity of the plugin that registered
// it.
type Entry struct {
	Owner string
	Fn    Callback
}

// Registry records checks against hook points. It is populated while
// plugins load and consumed exactly once per invocation, in registration
// order; it is never mutated during dispatch. There are no package-level
// registries: one Registry value is constructed per process and passed
// into every component that registers or dispatches.
type Registry struct {
	entries map[string][]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string][]Entry)}
}

// Register appends a callback for the given hook point. Registering
// multiple callbacks for the same hook point is expected: fan-out is how
// several checks target one event.
func (r *Registry) Register(hookName, owner string, fn Callback) {
	r.entries[hookName] = append(r.entries[hookName], Entry{Owner: owner, Fn: fn})
}

// Entries returns a copy of the hook point's entries in registration order.
func (r *Registry) Entries(hookName string) []Entry {
	entries := r.entries[hookName]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Per-hook-point registration helpers.

func (r *Registry) ApplypatchMsg(owner string, fn Callback)   { r.Register(ApplypatchMsg, owner, fn) }
func (r *Registry) CommitMsg(owner string, fn Callback)       { r.Register(CommitMsg, owner, fn) }
func (r *Registry) CommitReceived(owner string, fn Callback)  { r.Register(CommitReceived, owner, fn) }
func (r *Registry) DraftPublished(owner string, fn Callback)  { r.Register(DraftPublished, owner, fn) }
func (r *Registry) PatchsetCreated(owner string, fn Callback) { r.Register(PatchsetCreated, owner, fn) }
func (r *Registry) PostApplypatch(owner string, fn Callback)  { r.Register(PostApplypatch, owner, fn) }
func (r *Registry) PostCommit(owner string, fn Callback)      { r.Register(PostCommit, owner, fn) }
func (r *Registry) PostReceive(owner string, fn Callback)     { r.Register(PostReceive, owner, fn) }
func (r *Registry) PostUpdate(owner string, fn Callback)      { r.Register(PostUpdate, owner, fn) }
func (r *Registry) PreApplypatch(owner string, fn Callback)   { r.Register(PreApplypatch, owner, fn) }
func (r *Registry) PreCommit(owner string, fn Callback)       { r.Register(PreCommit, owner, fn) }
func (r *Registry) PreReceive(owner string, fn Callback)      { r.Register(PreReceive, owner, fn) }
func (r *Registry) RefUpdate(owner string, fn Callback)       { r.Register(RefUpdate, owner, fn) }
func (r *Registry) Submit(owner string, fn Callback)          { r.Register(Submit, owner, fn) }
func (r *Registry) Update(owner string, fn Callback)          { r.Register(Update, owner, fn) }
