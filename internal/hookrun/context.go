// Package hookrun holds the per-invocation state shared by every component
// of a hook run: the memoized configuration, the affected-reference table,
// the accumulated faults, scoped caches, and the post-run callback list.
//
// One Context is created per process run and discarded at exit; nothing
// persists across invocations. The Context is owned by a single goroutine
// and needs no locking.
package hookrun

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/gitgate/internal/gitcmd"
)

// Two reserved commit values are sentinels.
const (
	// UndefinedCommit marks "reference did not exist / was deleted".
	UndefinedCommit = "0000000000000000000000000000000000000000"

	// EmptyTree is git's fixed empty-tree object, marking "no content yet".
	EmptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
)

// AffectedRef is one entry of the affected-reference table: the reference
// name and the commits it moved between.
type AffectedRef struct {
	Name string
	Old  string
	New  string
}

// Deleted reports whether the reference is being removed.
func (r *AffectedRef) Deleted() bool { return r.New == UndefinedCommit }

// Created reports whether the reference is brand new.
func (r *AffectedRef) Created() bool { return r.Old == UndefinedCommit }

// AfterRunFunc is a post-dispatch callback, invoked after every registered
// check and every external hook has run.
type AfterRunFunc func(*Context) error

// Context is the per-run invocation context.
type Context struct {
	// Git is the repository command facade.
	Git gitcmd.Runner

	// HookName is the canonical hook-point basename (e.g. "pre-receive").
	HookName string

	// Args are the hook's positional arguments, after the hook name.
	Args []string

	// RunID correlates every log line of this invocation.
	RunID string

	// Stdout and Stderr are where the run writes user-visible output.
	Stdout io.Writer
	Stderr io.Writer

	// Color enables fault colorization.
	Color bool

	config    map[string]map[string][]string
	configErr error
	caches    map[string]map[string]any

	affected     []*AffectedRef
	affectedByName map[string]*AffectedRef

	faults   []Fault
	afterRun []AfterRunFunc

	stdinData  []byte
	gerritOpts map[string]string

	user         string
	userResolved bool

	deadline time.Time

	lookupEnv func(string) (string, bool)
}

// New creates the invocation context for one hook run.
func New(git gitcmd.Runner, hookName string, args []string) *Context {
	return &Context{
		Git:            git,
		HookName:       hookName,
		Args:           args,
		RunID:          uuid.NewString(),
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		caches:         make(map[string]map[string]any),
		affectedByName: make(map[string]*AffectedRef),
		lookupEnv:      os.LookupEnv,
	}
}

// SetEnvLookup overrides environment lookup. Tests only.
func (c *Context) SetEnvLookup(fn func(string) (string, bool)) {
	c.lookupEnv = fn
	c.userResolved = false
	c.user = ""
}

// Getenv looks up an environment variable through the context's lookup
// function, so tests can scope the environment to the run.
func (c *Context) Getenv(name string) (string, bool) {
	return c.lookupEnv(name)
}

// Cache returns the named scoped cache, creating it on first use. Plugins
// and the resolver use sections to memoize repository queries for the
// lifetime of the run.
func (c *Context) Cache(section string) map[string]any {
	m, ok := c.caches[section]
	if !ok {
		m = make(map[string]any)
		c.caches[section] = m
	}
	return m
}

// SetAffectedRef records one reference movement. Re-recording a name
// replaces its old/new pair but keeps its position in the table.
func (c *Context) SetAffectedRef(name, old, new string) {
	if ref, ok := c.affectedByName[name]; ok {
		ref.Old, ref.New = old, new
		return
	}
	ref := &AffectedRef{Name: name, Old: old, New: new}
	c.affected = append(c.affected, ref)
	c.affectedByName[name] = ref
}

// AffectedRefs returns the affected-reference table in recording order.
func (c *Context) AffectedRefs() []*AffectedRef { return c.affected }

// AffectedRef returns the entry for name, or nil.
func (c *Context) AffectedRef(name string) *AffectedRef {
	return c.affectedByName[name]
}

// CaptureStdin consumes all of r and retains it byte-for-byte so that
// receive-style external hooks can have the exact same input replayed.
func (c *Context) CaptureStdin(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading hook standard input: %w", err)
	}
	c.stdinData = data
	return nil
}

// Stdin returns the captured standard input, or nil if none was consumed.
func (c *Context) Stdin() []byte { return c.stdinData }

// SetGerritOptions stores the flattened option/value pairs of a remote
// review notification hook.
func (c *Context) SetGerritOptions(opts map[string]string) { c.gerritOpts = opts }

// GerritOptions returns the remote-review options, or nil for plain hooks.
func (c *Context) GerritOptions() map[string]string { return c.gerritOpts }

// AfterRun appends a post-dispatch callback.
func (c *Context) AfterRun(fn AfterRunFunc) { c.afterRun = append(c.afterRun, fn) }

// AfterRunCallbacks returns the registered post-dispatch callbacks in
// registration order.
func (c *Context) AfterRunCallbacks() []AfterRunFunc { return c.afterRun }

// userEnvFallback is the chain of well-known variables tried when
// gitgate.userenv is not configured.
var userEnvFallback = []string{"GERRIT_USER", "GL_USERNAME", "USER", "USERNAME"}

// User resolves the authenticated user identity. The result is memoized;
// failure to resolve is an environment error and fatal to the run.
func (c *Context) User() (string, error) {
	if c.userResolved {
		return c.user, nil
	}
	if name, ok := c.ConfigValue("gitgate", "userenv"); ok {
		v, found := c.lookupEnv(name)
		if !found || v == "" {
			return "", fmt.Errorf("cannot resolve authenticated user: gitgate.userenv names %q but it is not set", name)
		}
		c.user, c.userResolved = v, true
		return c.user, nil
	}
	for _, name := range userEnvFallback {
		if v, ok := c.lookupEnv(name); ok && v != "" {
			c.user, c.userResolved = v, true
			return c.user, nil
		}
	}
	return "", fmt.Errorf("cannot resolve authenticated user: none of %v is set", userEnvFallback)
}

// StartTimeout arms the run's soft wall-clock deadline from gitgate.timeout
// (seconds). The deadline is checked cooperatively, never preemptively.
func (c *Context) StartTimeout() error {
	secs, ok, err := c.ConfigInt("gitgate", "timeout")
	if err != nil {
		return err
	}
	if ok && secs > 0 {
		c.deadline = time.Now().Add(time.Duration(secs) * time.Second)
	}
	return nil
}

// Expired reports whether the soft deadline has passed.
func (c *Context) Expired() bool {
	return !c.deadline.IsZero() && time.Now().After(c.deadline)
}
