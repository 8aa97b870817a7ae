// Package main is the entry point for the tmlineage CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/tmlineage/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
