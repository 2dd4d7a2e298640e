// Package diag implements the shared diagnostic model used across every
// compiler stage: positions, severities, and an accumulate-then-report bag
// mirroring the validator's two-pass accumulation policy.
package diag

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	Warning Severity = iota
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "diag"
	}
}

// Kind names the taxonomy entries from the error-handling design: I/O,
// syntax, semantic, layout, and runtime-of-compile-time.
type Kind string

const (
	KindIO           Kind = "io"
	KindSyntax       Kind = "syntax"
	KindSemantic     Kind = "semantic"
	KindLayout       Kind = "layout"
	KindScripting    Kind = "scripting"
	KindUnclassified Kind = "diag"
)

// Pos is a source position: file, line, and column (1-based).
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Diagnostic is a single error or warning, optionally carrying a "did you
// mean" suggestion produced by the validator's undefined-symbol check.
type Diagnostic struct {
	Kind       Kind
	Severity   Severity
	Pos        Pos
	Message    string
	Suggestion string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
	if d.Suggestion != "" {
		s += fmt.Sprintf(" (did you mean %q?)", d.Suggestion)
	}
	return s
}

// Bag accumulates diagnostics across a compilation stage. It never aborts by
// itself; callers decide whether HasErrors() should stop the pipeline.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic to the bag and mirrors it to logrus immediately,
// matching the CLI's "warnings/errors go to standard error" contract.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
	entry := log.WithField("pos", d.Pos.String())
	switch d.Severity {
	case Warning:
		entry.Warn(d.Message)
	default:
		entry.Error(d.Message)
	}
}

// AddF is a convenience wrapper building a Diagnostic from a format string.
func (b *Bag) AddF(kind Kind, sev Severity, pos Pos, format string, a ...any) {
	b.Add(Diagnostic{Kind: kind, Severity: sev, Pos: pos, Message: fmt.Sprintf(format, a...)})
}

// AddSuggest is like AddF but attaches a "did you mean" suggestion.
func (b *Bag) AddSuggest(kind Kind, pos Pos, suggestion, format string, a ...any) {
	b.Add(Diagnostic{Kind: kind, Severity: Error, Pos: pos, Message: fmt.Sprintf(format, a...), Suggestion: suggestion})
}

// Items returns all accumulated diagnostics in insertion order.
func (b *Bag) Items() []Diagnostic { return b.items }

// Errors returns only Error/Fatal severity diagnostics.
func (b *Bag) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.items {
		if d.Severity != Warning {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only Warning severity diagnostics.
func (b *Bag) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range b.items {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any accumulated diagnostic aborts the pipeline.
func (b *Bag) HasErrors() bool { return len(b.Errors()) > 0 }

// CompileError is returned by the top-level Compile entry point when the
// bag contains errors; it satisfies error and prints every accumulated item.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 1 {
		return e.Diagnostics[0].String()
	}
	return fmt.Sprintf("%d errors, first: %s", len(e.Diagnostics), e.Diagnostics[0])
}
