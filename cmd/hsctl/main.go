// Command hsctl is the command-line client for the hs-classify API.
package main

import (
	"os"

	"github.com/aduanet/hs-classify/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
