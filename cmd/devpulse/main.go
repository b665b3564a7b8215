// main is the entry point for the devpulse CLI.
package main

import (
	"os"

	"github.com/clifelab/devpulse/cmd"
	"github.com/clifelab/devpulse/internal"
)

func main() {
	if err := cmd.Execute(); err != nil {
		internal.LogWarn("command failed", "error", err)
		os.Exit(1)
	}
}
