// Package main is the shopledger CLI entry point.
package main

import (
	"os"

	"github.com/yhsiang/shopledger/internal/cli"
)

// Version is set at build time.
var Version = "0.1.0"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = Version

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
