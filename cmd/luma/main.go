// Package main provides luma, a fact database and rule engine for programs
// that live on a table.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/luma/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
