package main

import (
	"os"

	"github.com/wonny/pulse/cmd/pulse/commands"
)

// main is the entry point for the Pulse CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
