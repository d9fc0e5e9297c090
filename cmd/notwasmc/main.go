// NotWasm compiler CLI - compiles .notwasm source files to WebAssembly
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/nwlang/notwasm/check"
	"github.com/nwlang/notwasm/parser"
	"github.com/nwlang/notwasm/syntax"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (compiler stage logging)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: notwasmc [options] <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  build [-o out] [-emit wasm|ir|wat] [file.notwasm]\n")
		fmt.Fprintf(os.Stderr, "        Compile a source file (or the manifest entry) to a linked module\n")
		fmt.Fprintf(os.Stderr, "  check <file.notwasm>\n")
		fmt.Fprintf(os.Stderr, "        Parse and validate without writing output\n")
		fmt.Fprintf(os.Stderr, "  lsp\n")
		fmt.Fprintf(os.Stderr, "        Start the language server on stdio\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  notwasmc build fib.notwasm            # writes fib.wasm\n")
		fmt.Fprintf(os.Stderr, "  notwasmc build -emit wat fib.notwasm  # writes a disassembly listing\n")
		fmt.Fprintf(os.Stderr, "  notwasmc build                        # entry and output from notwasm.toml\n")
		fmt.Fprintf(os.Stderr, "  notwasmc check fib.notwasm            # diagnostics only\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "build":
		handleBuildCommand(args[1:], *verbose)
	case "check":
		handleCheckCommand(args[1:])
	case "lsp":
		handleLspCommand()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

// loadProgram reads, parses, and checks one source file, printing every
// diagnostic. ok reports whether the program came through error-free.
func loadProgram(path string) (*syntax.Program, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return nil, false
	}

	prog, diags := parser.Parse(string(data))
	if !diags.HasErrors() {
		diags = check.Program(prog)
	}
	if out := diags.Format(path); out != "" {
		fmt.Fprintln(os.Stderr, out)
	}
	if diags.HasErrors() {
		return nil, false
	}
	return prog, true
}
