// Command frameloop validates, orders, runs and tests frame scheduler plans.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/frameloop/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
