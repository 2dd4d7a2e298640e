package codegen

import (
	"github.com/rozensoftware/highamigaassembler/internal/ast"
)

// genCall lowers a call expression/statement: every register the
// callee takes arguments in, except d0 (which carries the return value),
// is saved around the call, stack arguments are
// pushed right-to-left so the first argument ends up at the lowest address,
// register arguments are loaded, then `jsr` plus a stack cleanup for
// however many bytes were pushed, and the saved registers come back in
// reverse order. External functions declare no register parameters, so they
// fall out as plain stack-only cdecl calls.
func (c *Context) genCall(x *ast.CallExpr) {
	sig, ok := c.lookupCallee(x.Name)
	if !ok {
		c.emitComment("call to unresolved symbol %s", x.Name)
		c.emit("jsr %s", x.Name)
		return
	}

	var saved []string
	for i, p := range sig.Params {
		if i < len(x.Args) && p.Reg != "" && p.Reg != "d0" {
			saved = append(saved, p.Reg)
		}
	}
	// With a6 as the frame register the caller has to protect it too;
	// a4/a3/a5 frame registers are callee-preserved address registers, so
	// no per-call save is needed.
	if c.frameReg == "a6" {
		saved = append(saved, "a6")
	}
	for _, r := range saved {
		c.emit("move.l %s,-(sp)", r)
	}

	var stackArgs []ast.Expr
	for i := len(x.Args) - 1; i >= 0; i-- {
		if i < len(sig.Params) && sig.Params[i].Reg != "" {
			continue
		}
		stackArgs = append(stackArgs, x.Args[i])
	}
	for _, arg := range stackArgs {
		c.genExpr(arg)
		c.emit("move.l d0,-(sp)")
	}

	// Register arguments last, right to left, each one evaluated and moved
	// into place immediately so the evaluation of one argument can never
	// clobber another already-placed register argument.
	for i := len(x.Args) - 1; i >= 0; i-- {
		if i >= len(sig.Params) {
			continue
		}
		p := sig.Params[i]
		if p.Reg == "" {
			continue
		}
		c.genExpr(x.Args[i])
		if isAddrReg(p.Reg) {
			c.emit("movea.l d0,%s", p.Reg)
		} else if p.Reg != "d0" {
			c.emit("move.l d0,%s", p.Reg)
		}
	}

	c.emit("jsr %s", x.Name)
	if n := 4 * len(stackArgs); n > 0 {
		if n <= 8 {
			c.emit("addq.l #%d,sp", n)
		} else {
			c.emit("add.l #%d,sp", n)
		}
	}
	for i := len(saved) - 1; i >= 0; i-- {
		if isAddrReg(saved[i]) {
			c.emit("movea.l (sp)+,%s", saved[i])
		} else {
			c.emit("move.l (sp)+,%s", saved[i])
		}
	}
}

// lookupCallee finds a procedure or extern-function signature.
func (c *Context) lookupCallee(name string) (callSig, bool) {
	if pi, ok := c.Info.Procs[name]; ok {
		return callSig{Params: pi.Params}, true
	}
	if ei, ok := c.Info.Externs[name]; ok {
		return callSig{Params: ei.Params}, true
	}
	return callSig{}, false
}

type callSig struct {
	Params []ast.Param
}
