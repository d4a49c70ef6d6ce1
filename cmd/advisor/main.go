// Package main provides the entry point for the advisor CLI.
package main

import (
	"fmt"
	"os"

	"github.com/advisor-ai/advisor/cmd/advisor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
