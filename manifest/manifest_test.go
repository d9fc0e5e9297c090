package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a notwasm.toml
	dir := t.TempDir()
	tomlContent := `
[package]
name = "fib"
version = "0.1.0"

[build]
entry = "src/fib.notwasm"
output = "out/fib.wasm"
emit = "wasm"

[runtime]
module = "jankrt"
`
	if err := os.WriteFile(filepath.Join(dir, "notwasm.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Package.Name != "fib" {
		t.Errorf("package name = %q, want fib", m.Package.Name)
	}
	if m.Package.Version != "0.1.0" {
		t.Errorf("package version = %q, want 0.1.0", m.Package.Version)
	}
	if m.Build.Entry != "src/fib.notwasm" {
		t.Errorf("build entry = %q, want src/fib.notwasm", m.Build.Entry)
	}
	if m.Build.Output != "out/fib.wasm" {
		t.Errorf("build output = %q, want out/fib.wasm", m.Build.Output)
	}
	if m.Build.Emit != "wasm" {
		t.Errorf("build emit = %q, want wasm", m.Build.Emit)
	}
	if m.Runtime.Module != "jankrt" {
		t.Errorf("runtime module = %q, want jankrt", m.Runtime.Module)
	}
	if m.Dir == "" {
		t.Error("Dir not set at load time")
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[package]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, "notwasm.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Build.Entry != "main.notwasm" {
		t.Errorf("default entry = %q, want main.notwasm", m.Build.Entry)
	}
	if m.Build.Emit != "wasm" {
		t.Errorf("default emit = %q, want wasm", m.Build.Emit)
	}
	if m.Runtime.Module != "" {
		t.Errorf("runtime module = %q, want empty (compiler default)", m.Runtime.Module)
	}
}

func TestLoadManifestBadEmit(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[build]
emit = "elf"
`
	if err := os.WriteFile(filepath.Join(dir, "notwasm.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected an error for emit = elf")
	}
	if !strings.Contains(err.Error(), `unknown emit kind "elf"`) {
		t.Errorf("error = %v, want unknown emit kind", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[package]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, "notwasm.toml"), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Package.Name != "found-project" {
		t.Errorf("package name = %q, want found-project", m.Package.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no notwasm.toml exists")
	}
}

func TestEntryAndOutputPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Build: Build{
			Entry:  "src/main.notwasm",
			Output: "dist/main.wasm",
			Emit:   "wasm",
		},
	}

	if got := m.EntryPath(); got != "/app/src/main.notwasm" {
		t.Errorf("EntryPath = %q, want /app/src/main.notwasm", got)
	}
	if got := m.OutputPath(); got != "/app/dist/main.wasm" {
		t.Errorf("OutputPath = %q, want /app/dist/main.wasm", got)
	}

	// Without an explicit output the entry name is reused with the emit
	// kind's extension.
	m.Build.Output = ""
	m.Build.Emit = "wat"
	if got := m.OutputPath(); got != "/app/src/main.wat" {
		t.Errorf("derived OutputPath = %q, want /app/src/main.wat", got)
	}
}

func TestOutputFor(t *testing.T) {
	tests := []struct {
		src  string
		emit string
		want string
	}{
		{"fib.notwasm", "wasm", "fib.wasm"},
		{"fib.notwasm", "ir", "fib.ir"},
		{"fib.notwasm", "wat", "fib.wat"},
		{"dir/prog.notwasm", "wasm", "dir/prog.wasm"},
		{"noext", "wasm", "noext.wasm"},
	}
	for _, tt := range tests {
		if got := OutputFor(tt.src, tt.emit); got != tt.want {
			t.Errorf("OutputFor(%q, %q) = %q, want %q", tt.src, tt.emit, got, tt.want)
		}
	}
}
