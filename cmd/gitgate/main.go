// Command gitgate dispatches git and Gerrit hooks to configured policy
// checks. This binary ships the framework only; a deployment compiles its
// own checks into the catalog passed to NewRootCommand.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gitgate/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
