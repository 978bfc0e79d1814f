// Command musicsnap refreshes the stats.fm snapshots served by the portfolio site.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/musicsnap/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
