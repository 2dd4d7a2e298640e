// Package compiler wires preprocess → lex → parse → validate → codegen →
// peephole into the single entry point the CLI drives; writing the output
// file is left to the CLI.
package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/codegen"
	"github.com/rozensoftware/highamigaassembler/internal/config"
	"github.com/rozensoftware/highamigaassembler/internal/diag"
	"github.com/rozensoftware/highamigaassembler/internal/lexer"
	"github.com/rozensoftware/highamigaassembler/internal/parser"
	"github.com/rozensoftware/highamigaassembler/internal/peephole"
	"github.com/rozensoftware/highamigaassembler/internal/preprocess"
	"github.com/rozensoftware/highamigaassembler/internal/validator"
)

// Result carries everything a caller might want after a successful
// compile: the rendered assembly text and any accumulated warnings (the
// diagnostic bag always comes back even on success, since warnings don't
// abort).
type Result struct {
	Assembly string
	Diags    *diag.Bag
}

// Compile runs the full pipeline for one source file per opts. On
// any syntax or validation error it returns a *diag.CompileError and no
// output is written to disk by this function — the caller (cmd/hasc)
// decides when/whether to write Result.Assembly.
func Compile(opts config.Options) (*Result, error) {
	diags := &diag.Bag{}

	source, path, err := resolveSource(opts)
	if err != nil {
		diags.AddF(diag.KindIO, diag.Fatal, diag.Pos{}, "%v", err)
		return nil, &diag.CompileError{Diagnostics: diags.Items()}
	}

	if opts.Verbose {
		log.WithField("stage", "preprocess").Info("expanding includes and extracting blocks")
	}
	expanded, tables, err := preprocess.Run(path, preprocessReader{source: source, path: path})
	if err != nil {
		diags.AddF(diag.KindIO, diag.Fatal, diag.Pos{}, "%v", err)
		return nil, &diag.CompileError{Diagnostics: diags.Items()}
	}

	if opts.Verbose {
		log.WithField("stage", "lex").Info("tokenizing")
	}
	toks := lexer.New(path, expanded, diags).Tokenize()
	if diags.HasErrors() {
		return nil, &diag.CompileError{Diagnostics: diags.Errors()}
	}

	if opts.Verbose {
		log.WithField("stage", "parse").Info("building AST")
	}
	mod := parser.New(toks, tables, diags).Parse()
	if diags.HasErrors() {
		return nil, &diag.CompileError{Diagnostics: diags.Errors()}
	}

	var info *validator.ModuleInfo
	if opts.NoValidate {
		if opts.Verbose {
			log.WithField("stage", "validate").Warn("skipped (--no-validate)")
		}
		info = bareModuleInfo(mod)
	} else {
		if opts.Verbose {
			log.WithField("stage", "validate").Info("checking symbols and layout")
		}
		info = validator.Validate(mod, diags)
		if diags.HasErrors() {
			return nil, &diag.CompileError{Diagnostics: diags.Errors()}
		}
	}

	if opts.Verbose {
		log.WithField("stage", "codegen").Info("lowering to assembly")
	}
	asm := codegen.Generate(mod, info, diags, filepath.Dir(path))

	if opts.Verbose {
		log.WithField("stage", "peephole").Info("optimizing")
	}
	lines := splitLines(asm)
	optimized := peephole.Optimize(lines)

	return &Result{Assembly: joinLines(optimized), Diags: diags}, nil
}

// bareModuleInfo builds the symbol tables codegen needs when
// --no-validate is set: the validator runs with its diagnostics discarded,
// so section/global/struct/proc shapes are still collected (codegen
// indexes by name). The validator skips its per-procedure pass once the
// first pass reports an error; any procedure left without a scope gets an
// empty one, so locals/params are unknown there and any reference codegen
// can't resolve degrades to its documented zero-result fallback.
func bareModuleInfo(mod *ast.Module) *validator.ModuleInfo {
	diags := &diag.Bag{}
	info := validator.Validate(mod, diags)
	for _, sec := range info.Sections {
		for _, pr := range sec.Procs {
			if pi := info.Procs[pr.Name]; pi != nil && pi.Scope == nil {
				pi.Scope = &validator.ProcScope{Proc: pr, Info: info, Locals: map[string]ast.Type{}, Params: map[string]ast.Param{}}
			}
		}
	}
	return info
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out + "\n"
}

// resolveSource reads either the plain input file or, when opts.Generate
// is set, executes that script (bounded by opts.GenerateTimeout) and uses
// its stdout as the source text.
func resolveSource(opts config.Options) (string, string, error) {
	if opts.Generate == "" {
		b, err := os.ReadFile(opts.Input)
		if err != nil {
			return "", "", fmt.Errorf("reading input %s: %w", opts.Input, err)
		}
		return string(b), opts.Input, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.GenerateTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, opts.Generate)
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("--generate script %s failed: %w", opts.Generate, err)
	}
	return string(out), opts.Generate, nil
}

// preprocessReader adapts an already-read root source string to
// preprocess.FileReader, reading only the root path from memory and
// falling back to disk for every #include (includes are always resolved
// relative to the filesystem).
type preprocessReader struct {
	source string
	path   string
}

func (r preprocessReader) ReadFile(path string) ([]byte, error) {
	if path == r.path {
		return []byte(r.source), nil
	}
	return os.ReadFile(path)
}
