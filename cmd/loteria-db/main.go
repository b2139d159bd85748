// Command loteria-db archives, compiles, and serves Brazilian lottery draw
// results.
package main

import (
	"fmt"
	"os"

	"github.com/rvfranca/loteria-db/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
