package check

import (
	"fmt"
	"strings"
)

// Severity ranks a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

// String returns the printable severity name.
func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "unknown"
	}
}

// Diagnostic is a single finding: what is wrong and where.
type Diagnostic struct {
	Severity Severity
	Message  string
	Line     int // 1-based; 0 means no position
	Column   int
}

// Diagnostics collects findings across a whole program. Checking never
// stops at the first fault; callers decide what to do with the list.
type Diagnostics struct {
	items []Diagnostic
}

// New returns an empty collection.
func New() *Diagnostics {
	return &Diagnostics{}
}

// Errorf records an error at a position.
func (d *Diagnostics) Errorf(line, col int, format string, args ...interface{}) {
	d.items = append(d.items, Diagnostic{
		Severity: Error,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   col,
	})
}

// Warningf records a warning at a position.
func (d *Diagnostics) Warningf(line, col int, format string, args ...interface{}) {
	d.items = append(d.items, Diagnostic{
		Severity: Warning,
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Column:   col,
	})
}

// HasErrors reports whether any finding is an error.
func (d *Diagnostics) HasErrors() bool {
	for _, item := range d.items {
		if item.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns the error-level findings.
func (d *Diagnostics) Errors() []Diagnostic {
	var errs []Diagnostic
	for _, item := range d.items {
		if item.Severity == Error {
			errs = append(errs, item)
		}
	}
	return errs
}

// All returns every finding in the order recorded.
func (d *Diagnostics) All() []Diagnostic {
	return d.items
}

// Count returns the number of findings.
func (d *Diagnostics) Count() int {
	return len(d.items)
}

// Format renders the findings for a terminal, one per line:
//
//	error[prog.notwasm:3:10]: undeclared identifier 'x'
func (d *Diagnostics) Format(filename string) string {
	if len(d.items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range d.items {
		fmt.Fprintf(&b, "%s[%s:%d:%d]: %s",
			item.Severity, filename, item.Line, item.Column, item.Message)
		if i < len(d.items)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
