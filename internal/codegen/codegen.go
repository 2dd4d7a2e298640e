// Package codegen lowers a validated module to 68000 assembly text.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/diag"
	"github.com/rozensoftware/highamigaassembler/internal/validator"
)

// Generate lowers an entire module to assembly source text: one
// XREF block for externs, one XDEF block for publics, then each section in
// source order. baseDir anchors relative `@template` file paths.
func Generate(mod *ast.Module, info *validator.ModuleInfo, diags *diag.Bag, baseDir string) string {
	c := NewContext(info, diags)
	c.BaseDir = baseDir
	return c.GenerateModule(mod)
}

// GenerateModule runs the full lowering on an already-configured Context
// (tests inject an in-memory template reader this way).
func (c *Context) GenerateModule(mod *ast.Module) string {
	c.genXrefXdef(mod)
	for _, it := range mod.Items {
		if sec, ok := it.(*ast.Section); ok {
			c.genSection(sec)
		}
	}
	return strings.Join(c.Lines, "\n") + "\n"
}

// genXrefXdef emits the two whole-module reference blocks, de-duplicated
// and sorted for deterministic output.
func (c *Context) genXrefXdef(mod *ast.Module) {
	var externs []string
	for name := range c.Info.Externs {
		externs = append(externs, name)
	}
	for name := range c.Info.ExternVars {
		externs = append(externs, name)
	}
	externs = lo.Uniq(externs)
	sort.Strings(externs)
	if len(externs) > 0 {
		c.emitRaw(fmt.Sprintf("\tXREF\t%s", strings.Join(externs, ",")))
	}

	var publics []string
	for name := range c.Info.Publics {
		publics = append(publics, name)
	}
	publics = lo.Uniq(publics)
	sort.Strings(publics)
	if len(publics) > 0 {
		c.emitRaw(fmt.Sprintf("\tXDEF\t%s", strings.Join(publics, ",")))
	}
}

// genSection emits one SECTION block and its contents in source order
//.
func (c *Context) genSection(sec *ast.Section) {
	c.emitRaw("")
	c.emitRaw(fmt.Sprintf("\tSECTION\t%s,%s", sec.Name, sec.Directive()))

	for _, it := range sec.Items {
		switch x := it.(type) {
		case *ast.GlobalVar:
			c.genGlobalVar(x)
		case *ast.StructVar:
			c.genStructVar(x)
		case *ast.ConstDecl:
			// Constants are compile-time only; nothing is emitted for them
			// in a data/bss section.
		}
	}

	for _, pr := range sec.Procs {
		c.emitRaw("")
		c.genProc(pr)
	}
}

// genGlobalVar emits a scalar or array global: initialized arrays
// expand to a `dc` comma list, uninitialized arrays allocate zero bytes by
// type, BSS vars use `ds`.
func (c *Context) genGlobalVar(v *ast.GlobalVar) {
	c.emitRaw(v.Name + ":")
	count := c.elemCount(v.Name, v.Dims)

	if v.InBSS {
		c.emit("ds.%s\t%d", v.Type.Suffix(), count)
		return
	}

	if v.Init == nil {
		c.emit("ds.%s\t%d", v.Type.Suffix(), count)
		return
	}

	vals := make([]string, 0, len(v.Init))
	for _, e := range v.Init {
		vals = append(vals, c.constOperand(e))
	}
	c.emit("dc.%s\t%s", v.Type.Suffix(), strings.Join(vals, ","))
}

// elemCount returns the total element count for an array global. The
// validator resolves named-constant dimensions into the global's symbol
// entry; the raw literal product only backs up a --no-validate run, where
// named dimensions stay unresolved.
func (c *Context) elemCount(name string, dims []ast.DimExpr) int {
	if g, ok := c.Info.Globals[name]; ok && len(g.Dims) > 0 {
		n := 1
		for _, d := range g.Dims {
			if d > 0 {
				n *= d
			}
		}
		return n
	}
	if len(dims) == 0 {
		return 1
	}
	n := 1
	for _, d := range dims {
		if d.Literal > 0 {
			n *= d.Literal
		}
	}
	return n
}

// constOperand renders a compile-time constant initializer expression as
// an assembler literal: numbers and negated numbers directly, names through
// the module's resolved constant table (an unknown name is emitted as a
// symbol). Any other shape records a warning and emits 0.
func (c *Context) constOperand(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.NumberExpr:
		return fmt.Sprintf("%d", x.Value)
	case *ast.VarRefExpr:
		if v, ok := c.Info.Consts[x.Name]; ok {
			return fmt.Sprintf("%d", v)
		}
		return x.Name
	case *ast.UnaryOpExpr:
		if x.Op == "-" {
			return "-" + c.constOperand(x.X)
		}
	}
	c.Diags.AddF(diag.KindSemantic, diag.Warning, e.Position(), "non-constant global initializer; emitting 0")
	return "0"
}

// genStructVar emits a struct global or struct array: total byte
// count, a field `equ` label per field, and `__stride` for arrays.
func (c *Context) genStructVar(v *ast.StructVar) {
	layout := c.Info.Structs[v.Name]
	if layout == nil {
		l := validator.ComputeStructLayout(v.Name, v.Fields)
		layout = &l
	}

	c.emitRaw(v.Name + ":")
	count := c.elemCount(v.Name, v.Dims)
	total := layout.Stride * count
	if v.InBSS || v.Init == nil {
		c.emit("ds.b\t%d", total)
	} else {
		for _, elemInit := range v.Init {
			c.genStructInit(layout, elemInit)
		}
	}

	for _, f := range layout.Fields {
		c.emitRaw(fmt.Sprintf("%s_%s\tequ\t%s+%d", v.Name, f.Name, v.Name, f.Offset))
	}
	c.emitRaw(fmt.Sprintf("%s__size\tequ\t%d", v.Name, layout.Size))
	if len(v.Dims) > 0 {
		c.emitRaw(fmt.Sprintf("%s__stride\tequ\t%d", v.Name, layout.Stride))
	}
}

// genStructInit emits one struct element's field initializers in
// declaration order, filling alignment gaps and missing trailing fields
// with zero bytes so each element occupies exactly one stride.
func (c *Context) genStructInit(layout *validator.StructLayout, fields []ast.Expr) {
	cur := 0
	for i, f := range layout.Fields {
		if f.Offset > cur {
			c.emit("ds.b\t%d", f.Offset-cur)
		}
		if i < len(fields) {
			c.emit("dc.%s\t%s", f.Type.Suffix(), c.constOperand(fields[i]))
		} else {
			c.emit("dc.%s\t0", f.Type.Suffix())
		}
		cur = f.Offset + f.Type.Size
	}
	if cur < layout.Stride {
		c.emit("ds.b\t%d", layout.Stride-cur)
	}
}
