package codegen

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/validator"
)

// symbolRefPattern matches an inline-asm `@name` substitution token: an
// at-sign followed by an identifier, resolved against the enclosing
// procedure's scope before the block is emitted verbatim.
var symbolRefPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// genAsm splices a captured `asm { ... }` block into the output, resolving
// every `@name` reference to its concrete operand; each line that had a
// substitution is preceded by a comment recording it so the emitted text
// stays readable.
func (c *Context) genAsm(x *ast.AsmStmt) {
	lines := strings.Split(x.Body, "\n")
	for _, line := range lines {
		resolved, subs := c.resolveAsmLine(line)
		if len(subs) == 0 {
			c.emitRaw(line)
			continue
		}
		c.emitComment("asm: %s", strings.Join(subs, ", "))
		c.emitRaw(resolved)
	}
}

func (c *Context) resolveAsmLine(line string) (string, []string) {
	var subs []string
	out := symbolRefPattern.ReplaceAllStringFunc(line, func(tok string) string {
		name := tok[1:]
		ref, ok := c.resolveAsmSymbol(name)
		if !ok {
			subs = append(subs, name+"=<unresolved>")
			return "<ERROR:" + name + ">"
		}
		subs = append(subs, name+"="+ref)
		return ref
	})
	return out, subs
}

// resolveAsmSymbol resolves one `@name` reference against the current
// procedure scope (locals, params, globals, constants). It reports false
// when the name isn't a known identifier, and resolveAsmLine then emits a
// visible `<ERROR:name>` marker in its place.
func (c *Context) resolveAsmSymbol(name string) (string, bool) {
	if c.scope == nil {
		return name, false
	}
	sym, ok := c.scope.Resolve(name)
	if !ok {
		return name, false
	}
	if sym.Kind == validator.SymConst {
		return "#" + strconv.Itoa(sym.Const), true
	}
	if sym.Reg != "" {
		return sym.Reg, true
	}
	return c.symbolRef(sym, name), true
}
