// Package gitcmd is the repository command facade. Every repository query
// made by the engine (config, rev-list, diff-tree, rev-parse, ...) goes
// through a Runner, so tests can substitute canned output without a real
// repository.
package gitcmd

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes git plumbing commands and returns their output.
//
// Implementations must only be used for commands that return information,
// not commands that modify repository state.
type Runner interface {
	// Output runs the command and returns its standard output with the
	// trailing newline removed.
	Output(args ...string) (string, error)

	// OutputLines runs the command and returns its non-empty output lines
	// with surrounding whitespace trimmed.
	OutputLines(args ...string) ([]string, error)

	// OutputStdin is Output with the given bytes supplied on standard input.
	OutputStdin(stdin []byte, args ...string) (string, error)
}

// CLI runs a real git binary as a subprocess.
type CLI struct {
	// Dir is the working directory for every command. Empty means the
	// process working directory.
	Dir string

	// Bin is the git executable. Defaults to "git".
	Bin string
}

// New returns a CLI facade rooted at dir.
func New(dir string) *CLI {
	return &CLI{Dir: dir, Bin: "git"}
}

func (c *CLI) argv(args []string) []string {
	if c.Dir == "" {
		return args
	}
	return append([]string{"-C", c.Dir}, args...)
}

func (c *CLI) bin() string {
	if c.Bin == "" {
		return "git"
	}
	return c.Bin
}

// Output implements Runner.
func (c *CLI) Output(args ...string) (string, error) {
	return c.OutputStdin(nil, args...)
}

// OutputStdin implements Runner.
func (c *CLI) OutputStdin(stdin []byte, args ...string) (string, error) {
	cmd := exec.Command(c.bin(), c.argv(args)...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	out, err := cmd.Output()
	if err != nil {
		return "", &CommandError{
			Args:   args,
			Err:    err,
			Stderr: strings.TrimSpace(errBuf.String()),
		}
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// OutputLines implements Runner.
func (c *CLI) OutputLines(args ...string) ([]string, error) {
	return Lines(c, args...)
}

// Lines runs the command through r and splits its output into non-empty
// trimmed lines.
func Lines(r Runner, args ...string) ([]string, error) {
	out, err := r.Output(args...)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// CommandError reports a failed git command together with anything it wrote
// to standard error.
type CommandError struct {
	Args   []string
	Err    error
	Stderr string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }
