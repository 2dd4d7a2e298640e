// Package preprocess implements the textual transforms that run before
// lexing: recursive #include expansion with cycle detection, and
// extraction of asm{}, @python{}, and @template{} blocks into side tables so
// the grammar never has to count nested braces itself.
package preprocess

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Tables holds the side tables the AST builder re-links after parsing.
type Tables struct {
	Asm      []string
	Python   []string
	Template []TemplateBlock
}

// TemplateBlock preserves both the filename and the raw context string, as
// for rendering at expansion time.
type TemplateBlock struct {
	File    string
	Context string
}

// FileReader abstracts file access so the pre-processor can be tested
// against an in-memory filesystem without touching disk.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// OSReader reads files from the real filesystem.
type OSReader struct{}

func (OSReader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

var includeRe = regexp.MustCompile(`(?m)^[ \t]*#include[ \t]+"([^"]+)"[ \t]*$`)

// asmOpenRe, pythonOpenRe and templateOpenRe match `asm {`, `@python {`,
// and `@template "file" {` — the opening of a block whose body is taken
// verbatim up to its matching `}`.
var asmOpenRe = regexp.MustCompile(`^asm[ \t]*\{`)
var pythonOpenRe = regexp.MustCompile(`^@python[ \t]*\{`)
var templateOpenRe = regexp.MustCompile(`^@template[ \t]+"([^"]+)"[ \t]*\{`)

// Run expands includes starting from the file at path (read via reader;
// relative includes resolve against the including file's directory) and
// extracts asm/@python/@template bodies, returning the
// rewritten text (with placeholder tokens in their place) and the side
// tables the AST builder re-attaches after parsing.
func Run(path string, reader FileReader) (string, *Tables, error) {
	tables := &Tables{}
	seen := map[string]bool{}
	text, err := expandIncludes(path, reader, seen, tables)
	if err != nil {
		return "", nil, err
	}
	return text, tables, nil
}

// RunText preprocesses an in-memory source fragment (block extraction only,
// no include expansion), used when compile-time scripting re-enters the
// front end with generated source.
func RunText(source string) (string, *Tables, error) {
	tables := &Tables{}
	var out strings.Builder
	lines := strings.Split(source, "\n")
	for i := 0; i < len(lines); i++ {
		rest, err := extractBlocks(lines, &i, tables)
		if err != nil {
			return "", nil, err
		}
		out.WriteString(rest)
		out.WriteString("\n")
	}
	return out.String(), tables, nil
}

func expandIncludes(path string, reader FileReader, stack map[string]bool, tables *Tables) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if stack[abs] {
		return "", fmt.Errorf("include cycle detected: %s", path)
	}
	stack[abs] = true
	defer delete(stack, abs)

	raw, err := reader.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	log.WithField("file", path).Debug("preprocessing")

	var out strings.Builder
	lines := strings.Split(string(raw), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if m := includeRe.FindStringSubmatch(line); m != nil {
			incPath := m[1]
			if !filepath.IsAbs(incPath) {
				incPath = filepath.Join(filepath.Dir(path), incPath)
			}
			expanded, err := expandIncludes(incPath, reader, stack, tables)
			if err != nil {
				return "", err
			}
			out.WriteString(expanded)
			out.WriteString("\n")
			continue
		}
		rest, err := extractBlocks(lines, &i, tables)
		if err != nil {
			return "", err
		}
		out.WriteString(rest)
		out.WriteString("\n")
	}
	return out.String(), nil
}

// extractBlocks looks at lines[*i] for the start of an asm/@python/@template
// block; if found, it scans forward (advancing *i) to the matching closing
// brace, stores the body in the relevant side table, and returns the
// original line with the body replaced by a `{BLOCK_N}` placeholder. Lines
// that don't open a block are returned unchanged.
func extractBlocks(lines []string, i *int, tables *Tables) (string, error) {
	line := lines[*i]
	trimmed := strings.TrimSpace(line)

	// The regexes anchor on the trimmed text, but consumeBlock indexes the
	// original line, so the scan starts just past the opening brace there.
	braceCol := strings.Index(line, "{") + 1
	// tail returns whatever follows the block's closing brace on the line
	// consumeBlock stopped at, so text sharing that line is kept.
	tail := func(body string) string {
		closeCol := braceCol + len(body)
		if nl := strings.LastIndex(body, "\n"); nl >= 0 {
			closeCol = len(body) - nl - 1
		}
		return lines[*i][closeCol+1:]
	}

	switch {
	case asmOpenRe.MatchString(trimmed):
		body, err := consumeBlock(lines, i, braceCol)
		if err != nil {
			return "", err
		}
		idx := len(tables.Asm)
		tables.Asm = append(tables.Asm, body)
		return fmt.Sprintf("asm {BLOCK_%d}", idx) + tail(body), nil

	case pythonOpenRe.MatchString(trimmed):
		body, err := consumeBlock(lines, i, braceCol)
		if err != nil {
			return "", err
		}
		idx := len(tables.Python)
		tables.Python = append(tables.Python, body)
		return fmt.Sprintf("@python {BLOCK_%d}", idx) + tail(body), nil

	default:
		if m := templateOpenRe.FindStringSubmatch(trimmed); m != nil {
			body, err := consumeBlock(lines, i, braceCol)
			if err != nil {
				return "", err
			}
			idx := len(tables.Template)
			tables.Template = append(tables.Template, TemplateBlock{File: m[1], Context: body})
			return fmt.Sprintf("@template %q {BLOCK_%d}", m[1], idx) + tail(body), nil
		}
	}
	return line, nil
}

// consumeBlock scans from the given starting column on lines[*i] (just past
// the opening brace) until the matching closing brace, tracking nesting
// depth so inline braces inside the block don't terminate it early. It
// advances *i to the line containing the closing brace and returns the
// verbatim body text (braces excluded).
func consumeBlock(lines []string, i *int, startCol int) (string, error) {
	depth := 1
	var body strings.Builder
	col := startCol
	for {
		line := lines[*i]
		for col < len(line) {
			c := line[col]
			if c == '{' {
				depth++
			} else if c == '}' {
				depth--
				if depth == 0 {
					return body.String(), nil
				}
			}
			body.WriteByte(c)
			col++
		}
		*i++
		if *i >= len(lines) {
			return "", fmt.Errorf("unterminated block: missing closing brace")
		}
		body.WriteByte('\n')
		col = 0
	}
}
