// Command closer computes subalgebra closures of finite algebras and their
// powers.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/closer/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "closer: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
