package main

import (
	"fmt"
	"os"

	"github.com/nwlang/notwasm/compile"
	"github.com/nwlang/notwasm/manifest"
	"github.com/nwlang/notwasm/syntax"
	"github.com/nwlang/notwasm/wasm"
)

// handleBuildCommand compiles one source file to the requested artifact.
// With no file argument the entry point, emit kind, and output path come
// from the nearest notwasm.toml.
func handleBuildCommand(args []string, verbose bool) {
	var source, output, emit, runtimeModule string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -o requires a path")
				os.Exit(2)
			}
			i++
			output = args[i]
		case "-emit", "--emit":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -emit requires one of wasm, ir, wat")
				os.Exit(2)
			}
			i++
			emit = args[i]
		default:
			if source != "" {
				fmt.Fprintf(os.Stderr, "Error: unexpected argument %q\n", args[i])
				os.Exit(2)
			}
			source = args[i]
		}
	}

	if source == "" {
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if m == nil {
			fmt.Fprintln(os.Stderr, "Error: no source file given and no notwasm.toml found")
			os.Exit(1)
		}
		source = m.EntryPath()
		runtimeModule = m.Runtime.Module
		if emit == "" {
			emit = m.Build.Emit
		}
		// The manifest output path only applies when it matches the
		// emit kind actually requested.
		if output == "" && emit == m.Build.Emit {
			output = m.OutputPath()
		}
	}
	if emit == "" {
		emit = "wasm"
	}
	if output == "" {
		output = manifest.OutputFor(source, emit)
	}

	prog, ok := loadProgram(source)
	if !ok {
		os.Exit(1)
	}

	data, err := emitProgram(prog, emit, runtimeModule)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(output, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		fmt.Printf("Wrote %s (%d bytes)\n", output, len(data))
	}
}

// emitProgram lowers a checked program to one artifact kind.
func emitProgram(prog *syntax.Program, emit, runtimeModule string) ([]byte, error) {
	switch emit {
	case "wasm":
		m, err := compile.CompileModule(prog, compile.Options{RuntimeModule: runtimeModule})
		if err != nil {
			return nil, err
		}
		return wasm.Encode(m)
	case "ir":
		return syntax.MarshalProgram(prog)
	case "wat":
		m, err := compile.CompileModule(prog, compile.Options{RuntimeModule: runtimeModule})
		if err != nil {
			return nil, err
		}
		return []byte(m.Disassemble()), nil
	default:
		return nil, fmt.Errorf("unknown emit kind %q (want wasm, ir, or wat)", emit)
	}
}
