package main

import (
	"fmt"
	"os"

	"github.com/nwlang/notwasm/server"
)

// handleLspCommand starts the language server on stdio. Editors own the
// process lifecycle; we only report a failed startup.
func handleLspCommand() {
	if err := server.NewLSP().Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
