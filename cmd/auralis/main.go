// Package main is the entry point for the auralis CLI.
//
// Usage:
//
//	auralis [flags] <command> [args]
//
// Commands:
//
//	run       - Start a live console session against a configured provider
//	envelope  - Build and print a context envelope from a transcript file
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/auralis-ai/auralis/cmd/auralis/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
