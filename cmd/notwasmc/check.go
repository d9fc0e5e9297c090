package main

import (
	"fmt"
	"os"
)

// handleCheckCommand parses and validates a source file without
// producing output. Exit status 1 signals diagnostics at error level.
func handleCheckCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: notwasmc check <file.notwasm>")
		os.Exit(2)
	}

	if _, ok := loadProgram(args[0]); !ok {
		os.Exit(1)
	}
}
