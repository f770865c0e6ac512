// Package main provides the entry point for the Wolo CLI.
package main

import (
	"fmt"
	"os"

	"github.com/wolo-run/wolo/cmd/wolo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
