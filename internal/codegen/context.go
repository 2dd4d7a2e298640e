// Package codegen lowers a validated AST to 68000 assembly text. All
// mutable compilation state — the emitted line buffer, the label counter,
// the PUSH/POP stack, and the loop-label stack — lives on a single Context
// passed by pointer through every lowering function.
package codegen

import (
	"fmt"

	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/diag"
	"github.com/rozensoftware/highamigaassembler/internal/preprocess"
	"github.com/rozensoftware/highamigaassembler/internal/validator"
)

// loopLabels is pushed per enclosing loop so break/continue know where to
// jump.
type loopLabels struct {
	continueLabel string
	endLabel      string
}

// Context carries all per-compilation state through lowering.
type Context struct {
	Info  *validator.ModuleInfo
	Diags *diag.Bag

	// Reader and BaseDir locate `@template` side files; BaseDir
	// is the directory of the root source file.
	Reader  preprocess.FileReader
	BaseDir string

	Lines []string

	labelCounter int
	loopStack    []loopLabels
	pushStack    [][]string

	// per-procedure frame state, reset in Proc lowering.
	proc        *ast.Proc
	scope       *validator.ProcScope
	frameReg    string
	frameSize   int
	localOffset map[string]int // local name -> -offset(fp)
	paramOffset map[string]int // stack param name -> +offset(fp)
	paramReg    map[string]string
}

// NewContext creates an empty lowering context reading template files from
// the real filesystem.
func NewContext(info *validator.ModuleInfo, diags *diag.Bag) *Context {
	return &Context{Info: info, Diags: diags, Reader: preprocess.OSReader{}}
}

// emit appends one assembly line, four-space indented.
func (c *Context) emit(format string, a ...any) {
	c.Lines = append(c.Lines, "    "+fmt.Sprintf(format, a...))
}

// emitRaw appends a line verbatim (labels, directives at column 0).
func (c *Context) emitRaw(line string) {
	c.Lines = append(c.Lines, line)
}

// emitComment appends a comment-only line.
func (c *Context) emitComment(format string, a ...any) {
	c.Lines = append(c.Lines, "    ; "+fmt.Sprintf(format, a...))
}

// newLabel returns a fresh, module-unique label from the monotonic counter.
func (c *Context) newLabel(prefix string) string {
	c.labelCounter++
	return fmt.Sprintf(".%s_%d", prefix, c.labelCounter)
}

func (c *Context) pushLoop(cont, end string) {
	c.loopStack = append(c.loopStack, loopLabels{continueLabel: cont, endLabel: end})
}

func (c *Context) popLoop() {
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
}

func (c *Context) currentLoop() loopLabels {
	if len(c.loopStack) == 0 {
		return loopLabels{}
	}
	return c.loopStack[len(c.loopStack)-1]
}

// unknownShape lowers an unrecognized parse-tree shape to a diagnostic
// comment and a zero result, keeping unhandled shapes visible in the output
// instead of silently assuming anything about them.
func (c *Context) unknownShape(pos diag.Pos, what string) {
	c.Diags.AddF(diag.KindSemantic, diag.Warning, pos, "unhandled %s shape; emitting zero result", what)
	c.emitComment("unhandled %s; substituted 0", what)
}
