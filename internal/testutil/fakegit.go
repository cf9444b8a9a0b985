// Package testutil provides deterministic test doubles shared across the
// engine's test suites.
package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/gitgate/internal/gitcmd"
)

// FakeGit is a canned-response gitcmd.Runner. Responses are keyed by the
// space-joined argument list, exactly as the command would appear after
// "git ". Every call is recorded so tests can assert on memoization.
type FakeGit struct {
	Responses map[string]string
	Errors    map[string]error
	Calls     []string
	Stdin     map[string][]byte
}

var _ gitcmd.Runner = (*FakeGit)(nil)

// NewFakeGit returns an empty fake. Unmapped commands fail loudly.
func NewFakeGit() *FakeGit {
	return &FakeGit{
		Responses: make(map[string]string),
		Errors:    make(map[string]error),
		Stdin:     make(map[string][]byte),
	}
}

// Respond registers canned output for the given command line.
func (g *FakeGit) Respond(cmdline, output string) {
	g.Responses[cmdline] = output
}

// Fail registers an error for the given command line.
func (g *FakeGit) Fail(cmdline string, err error) {
	g.Errors[cmdline] = err
}

// Output implements gitcmd.Runner.
func (g *FakeGit) Output(args ...string) (string, error) {
	return g.OutputStdin(nil, args...)
}

// OutputStdin implements gitcmd.Runner.
func (g *FakeGit) OutputStdin(stdin []byte, args ...string) (string, error) {
	key := strings.Join(args, " ")
	g.Calls = append(g.Calls, key)
	if stdin != nil {
		g.Stdin[key] = append([]byte(nil), stdin...)
	}
	if err, ok := g.Errors[key]; ok {
		return "", err
	}
	if out, ok := g.Responses[key]; ok {
		return out, nil
	}
	return "", fmt.Errorf("fakegit: no canned response for %q", key)
}

// OutputLines implements gitcmd.Runner.
func (g *FakeGit) OutputLines(args ...string) ([]string, error) {
	return gitcmd.Lines(g, args...)
}

// CallCount reports how many times the given command line was executed.
func (g *FakeGit) CallCount(cmdline string) int {
	n := 0
	for _, c := range g.Calls {
		if c == cmdline {
			n++
		}
	}
	return n
}
