// Package main provides the entry point for the everyfind CLI.
package main

import (
	"os"

	"github.com/everyfind/everyfind/cmd/everyfind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
