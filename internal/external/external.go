// Package external locates and runs legacy external hook programs after all
// in-process checks have run: every executable file under the
// hook-point-named subdirectory of each configured external-hooks
// directory, local .git-relative directory first.
package external

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"

	"github.com/roach88/gitgate/internal/hookrun"
)

// receiveStyle marks the hook points whose captured stdin triples must be
// replayed byte-for-byte to every external program.
var receiveStyle = map[string]bool{
	"pre-receive":     true,
	"post-receive":    true,
	"commit-received": true,
	"submit":          true,
}

// Run executes every external hook for the current hook point. Each failed
// program records one fault and does not stop its siblings; only
// configuration problems are returned as errors.
func Run(ctx *hookrun.Context) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	enabled, err := ctx.ConfigBool("gitgate", "externals", true)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	dirs, err := hookDirs(ctx)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0111 == 0 {
				continue
			}
			if ctx.Expired() {
				ctx.Fault(hookrun.Fault{
					Message: fmt.Sprintf("timeout exceeded; skipping external hook %s", path),
					Option:  "gitgate.timeout",
				})
				return nil
			}
			runOne(ctx, path)
		}
	}
	return nil
}

// hookDirs returns the directories to scan for this hook point: the
// repository's own hooks.d first, then every gitgate.externals-dir value.
func hookDirs(ctx *hookrun.Context) ([]string, error) {
	gitDir, err := ctx.Git.Output("rev-parse", "--git-dir")
	if err != nil {
		return nil, fmt.Errorf("locating git directory: %w", err)
	}
	dirs := []string{filepath.Join(gitDir, "hooks.d", ctx.HookName)}
	for _, dir := range ctx.ConfigAll("gitgate", "externals-dir") {
		dirs = append(dirs, filepath.Join(dir, ctx.HookName))
	}
	return dirs, nil
}

// argv builds the external program's argument list. Remote review option
// maps are flattened to a flat --key value list; every other hook passes
// its original positional arguments through.
func argv(ctx *hookrun.Context) []string {
	opts := ctx.GerritOptions()
	if opts == nil {
		return ctx.Args
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, "--"+k, opts[k])
	}
	return args
}

func runOne(ctx *hookrun.Context, path string) {
	var capture bytes.Buffer
	cmd := exec.Command(path, argv(ctx)...)
	// Output is captured for the duration so raw hook output does not
	// interleave with framework-formatted faults, then flushed verbatim
	// if the program succeeded.
	cmd.Stdout = &capture
	cmd.Stderr = &capture
	if receiveStyle[ctx.HookName] {
		cmd.Stdin = bytes.NewReader(ctx.Stdin())
	} else {
		cmd.Stdin = bytes.NewReader(nil)
	}

	slog.Debug("running external hook", "run", ctx.RunID, "path", path)
	if err := cmd.Start(); err != nil {
		ctx.Fault(hookrun.Fault{
			Message: fmt.Sprintf("external hook %s could not be started: %v", path, err),
		})
		return
	}
	err := cmd.Wait()
	if err == nil {
		_, _ = ctx.Stdout.Write(capture.Bytes())
		return
	}

	msg := fmt.Sprintf("external hook %s failed: %v", path, err)
	if ee, ok := err.(*exec.ExitError); ok {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			switch {
			case ws.Signaled() && ws.CoreDump():
				msg = fmt.Sprintf("external hook %s died with signal %d (core dumped)", path, ws.Signal())
			case ws.Signaled():
				msg = fmt.Sprintf("external hook %s died with signal %d (no core dump)", path, ws.Signal())
			case ws.Exited():
				msg = fmt.Sprintf("external hook %s exited with status %d", path, ws.ExitStatus())
			}
		}
	}
	ctx.Fault(hookrun.Fault{
		Message: msg,
		Details: strings.TrimRight(capture.String(), "\n"),
	})
}
