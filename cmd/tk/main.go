// Command tk is the tanker CLI (spec.md §6): a thin, external-collaborator
// surface over the tanker package, not where the core logic lives, but
// enough to drive a live schema end to end from a shell.
//
// Grounded on the domain-stack table in SPEC_FULL.md §2+: cobra for the
// command tree (the pattern dphaener-conduit and tordrt-LLMSchema use for
// their own database-facing subcommands) and fatih/color for `read -t`'s
// tabular output.
package main

import (
	"fmt"
	"os"

	"github.com/tanker-db/tanker/cmd/tk/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tk:", err)
		return cli.ExitCode(err)
	}
	return 0
}
