// Package manifest handles notwasm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest represents a notwasm.toml project configuration.
type Manifest struct {
	Package Package `toml:"package"`
	Build   Build   `toml:"build"`
	Runtime Runtime `toml:"runtime"`

	// Dir is the directory containing the notwasm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Package contains package metadata.
type Package struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Build configures what to compile and what to write.
type Build struct {
	Entry  string `toml:"entry"`  // source file to compile
	Output string `toml:"output"` // output path; derived from Entry when empty
	Emit   string `toml:"emit"`   // wasm, ir, or wat
}

// Runtime configures how the emitted module links against the runtime.
type Runtime struct {
	Module string `toml:"module"` // import module name; empty means the default
}

// EmitKinds lists the accepted [build] emit values.
var EmitKinds = []string{"wasm", "ir", "wat"}

// Load parses a notwasm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "notwasm.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Build.Entry == "" {
		m.Build.Entry = "main.notwasm"
	}
	if m.Build.Emit == "" {
		m.Build.Emit = "wasm"
	}
	if !validEmit(m.Build.Emit) {
		return nil, fmt.Errorf("%s: unknown emit kind %q (want wasm, ir, or wat)", path, m.Build.Emit)
	}

	return &m, nil
}

func validEmit(kind string) bool {
	for _, k := range EmitKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// FindAndLoad walks up from startDir to find a notwasm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "notwasm.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the source file to compile.
func (m *Manifest) EntryPath() string {
	if filepath.IsAbs(m.Build.Entry) {
		return m.Build.Entry
	}
	return filepath.Join(m.Dir, m.Build.Entry)
}

// OutputPath returns the absolute path of the file to write. When [build]
// output is unset, it is the entry path with the extension the emit kind
// implies.
func (m *Manifest) OutputPath() string {
	if m.Build.Output != "" {
		if filepath.IsAbs(m.Build.Output) {
			return m.Build.Output
		}
		return filepath.Join(m.Dir, m.Build.Output)
	}
	return OutputFor(m.EntryPath(), m.Build.Emit)
}

// OutputFor derives an output filename from a source filename and an emit
// kind: fib.notwasm becomes fib.wasm, fib.ir, or fib.wat.
func OutputFor(src, emit string) string {
	base := strings.TrimSuffix(src, ".notwasm")
	switch emit {
	case "ir":
		return base + ".ir"
	case "wat":
		return base + ".wat"
	default:
		return base + ".wasm"
	}
}
