// Package main provides the CLI for the leapseed test data generator.
package main

import (
	"os"

	"github.com/leapstack-labs/leapseed/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
