package codegen

import (
	"strings"

	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/validator"
)

// genStmts lowers a statement list in order.
func (c *Context) genStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.genStmt(s)
	}
}

func (c *Context) genStmt(s ast.Stmt) {
	switch x := s.(type) {
	case *ast.VarDeclStmt:
		if x.Init != nil {
			c.genExpr(x.Init)
			c.emit("move.%s d0,%s", x.Type.Suffix(), c.localRef(x.Name))
		}

	case *ast.AssignStmt:
		c.genAssign(x.Target, x.Value)

	case *ast.CompoundAssignStmt:
		c.genCompoundAssign(x)

	case *ast.IfStmt:
		c.genIf(x)

	case *ast.WhileStmt:
		c.genWhile(x)

	case *ast.DoWhileStmt:
		c.genDoWhile(x)

	case *ast.ForStmt:
		c.genFor(x)

	case *ast.RepeatStmt:
		c.genRepeat(x)

	case *ast.ReturnStmt:
		if x.Value != nil {
			c.genExpr(x.Value)
		}
		c.genEpilogue(c.proc)

	case *ast.BreakStmt:
		c.emit("bra %s", c.currentLoop().endLabel)

	case *ast.ContinueStmt:
		c.emit("bra %s", c.currentLoop().continueLabel)

	case *ast.ExprStmt:
		c.genExpr(x.X)

	case *ast.CallStmt:
		c.genCall(x.Call)

	case *ast.PushStmt:
		c.genPush(x)

	case *ast.PopStmt:
		c.genPop(x)

	case *ast.AsmStmt:
		c.genAsm(x)

	case *ast.MacroCallStmt:
		c.genMacroCall(x)

	case *ast.TemplateStmt:
		c.genTemplate(x)

	case *ast.PythonStmt:
		c.genPython(x)

	default:
		c.unknownShape(s.Position(), "statement")
	}
}

// genAssign lowers `target = value`: value first, then store per
// the target's addressing mode.
func (c *Context) genAssign(target, value ast.Expr) {
	switch t := target.(type) {
	case *ast.VarRefExpr:
		c.genExpr(value)
		sym, ok := c.scope.Resolve(t.Name)
		if !ok {
			c.emitComment("assignment to unresolved variable %s", t.Name)
			return
		}
		if sym.Kind == validator.SymParam {
			// Parameter slots hold full longs (see genLoadVar).
			if isAddrReg(sym.Reg) {
				c.emit("movea.l d0,%s", sym.Reg)
				return
			}
			c.emit("move.l d0,%s", c.symbolRef(sym, t.Name))
			return
		}
		ref := c.symbolRef(sym, t.Name)
		c.emit("move.%s d0,%s", storeSuffix(sym.Type), ref)

	case *ast.ArrayAccessExpr:
		c.genExpr(value)
		c.emit("move.l d0,-(sp)")
		c.genAddressOf(t)
		c.emit("move.l (sp)+,d0")
		c.emit("move.%s d0,(a0)", storeSuffix(c.elemTypeOf(t)))

	case *ast.MemberAccessExpr:
		c.genExpr(value)
		c.emit("move.l d0,-(sp)")
		c.genAddressOf(t)
		c.emit("move.l (sp)+,d0")
		c.emit("move.%s d0,(a0)", storeSuffix(c.fieldTypeOf(t)))

	case *ast.UnaryOpExpr:
		if t.Op == "*" {
			c.genExpr(value)
			c.emit("move.l d0,-(sp)")
			c.genExpr(t.X)
			c.emit("movea.l d0,a0")
			c.emit("move.l (sp)+,d0")
			c.emit("move.l d0,(a0)")
			return
		}
		c.unknownShape(target.Position(), "assignment target")

	default:
		c.unknownShape(target.Position(), "assignment target")
	}
}

func storeSuffix(t ast.Type) string {
	if t.Size == 0 {
		return "l"
	}
	return t.Suffix()
}

// genCompoundAssign lowers `target op= value` by desugaring to a plain
// binary op plus assignment, matching how the parser already represents
// the same operator set for plain BinOpExpr.
func (c *Context) genCompoundAssign(x *ast.CompoundAssignStmt) {
	op := strings.TrimSuffix(x.Op, "=")
	combined := &ast.BinOpExpr{Base: x.Base, Op: op, Left: x.Target, Right: x.Value}
	c.genAssign(x.Target, combined)
}

// genIf lowers if/else: the condition is inverted so the taken
// branch skips the then-block, avoiding an extra unconditional jump when
// there's no else.
func (c *Context) genIf(x *ast.IfStmt) {
	elseLbl := c.newLabel("if_else")
	endLbl := c.newLabel("if_end")
	c.genCondBranch(x.Cond, true, elseLbl)
	c.genStmts(x.Then)
	if x.Else != nil {
		c.emit("bra %s", endLbl)
		c.emitRaw(elseLbl + ":")
		c.genStmts(x.Else)
		c.emitRaw(endLbl + ":")
	} else {
		c.emitRaw(elseLbl + ":")
	}
}

func (c *Context) genWhile(x *ast.WhileStmt) {
	topLbl := c.newLabel("while_top")
	endLbl := c.newLabel("while_end")
	c.pushLoop(topLbl, endLbl)
	c.emitRaw(topLbl + ":")
	c.genCondBranch(x.Cond, true, endLbl)
	c.genStmts(x.Body)
	c.emit("bra %s", topLbl)
	c.emitRaw(endLbl + ":")
	c.popLoop()
}

func (c *Context) genDoWhile(x *ast.DoWhileStmt) {
	topLbl := c.newLabel("dowhile_top")
	contLbl := c.newLabel("dowhile_cont")
	endLbl := c.newLabel("dowhile_end")
	c.pushLoop(contLbl, endLbl)
	c.emitRaw(topLbl + ":")
	c.genStmts(x.Body)
	c.emitRaw(contLbl + ":")
	c.genCondBranch(x.Cond, false, topLbl)
	c.emitRaw(endLbl + ":")
	c.popLoop()
}

// genFor lowers the bounded counting loop: init, then a
// top-tested comparison against End, body, then Step (default 1) applied
// before looping back.
func (c *Context) genFor(x *ast.ForStmt) {
	topLbl := c.newLabel("for_top")
	contLbl := c.newLabel("for_cont")
	endLbl := c.newLabel("for_end")
	c.pushLoop(contLbl, endLbl)

	c.genExpr(x.Start)
	ref := c.forVarRef(x.Var)
	c.emit("move.l d0,%s", ref)

	// Loop head: branch out once the counter exceeds End (so `for i = 0 to
	// 0` runs exactly once). End is evaluated first so the counter's load
	// can't be clobbered by a compound bound expression.
	c.emitRaw(topLbl + ":")
	c.genExpr(x.End)
	c.emit("move.l d0,d1")
	c.emit("move.l %s,d0", ref)
	c.emit("cmp.l d1,d0")
	c.emit("bgt %s", endLbl)

	c.genStmts(x.Body)

	c.emitRaw(contLbl + ":")
	c.emit("move.l %s,d0", ref)
	if x.Step != nil {
		c.emit("move.l d0,d1")
		c.genExpr(x.Step)
		c.emit("add.l d1,d0")
	} else {
		c.emit("addq.l #1,d0")
	}
	c.emit("move.l d0,%s", ref)
	c.emit("bra %s", topLbl)
	c.emitRaw(endLbl + ":")
	c.popLoop()
}

func (c *Context) forVarRef(name string) string {
	if sym, ok := c.scope.Resolve(name); ok {
		return c.symbolRef(sym, name)
	}
	return c.localRef(name)
}

// genRepeat lowers the `repeat N { ... }` fixed-count loop onto `dbra d7`
// (`repeat 0` keeps dbra's native wrap: the counter underflows and the
// body runs 65,536 times; there is deliberately no zero guard).
func (c *Context) genRepeat(x *ast.RepeatStmt) {
	topLbl := c.newLabel("repeat_top")
	contLbl := c.newLabel("repeat_cont")
	endLbl := c.newLabel("repeat_end")
	c.pushLoop(contLbl, endLbl)

	c.genExpr(x.Count)
	c.emit("subq.l #1,d0")
	c.emit("move.l d0,d7")
	c.emitRaw(topLbl + ":")

	c.genStmts(x.Body)

	c.emitRaw(contLbl + ":")
	c.emit("dbra d7,%s", topLbl)
	c.emitRaw(endLbl + ":")
	c.popLoop()
}

// genCondBranch evaluates cond and branches to label when the condition is
// false (jumpIfFalse=true, used by if/while) or when it is true
// (jumpIfFalse=false, used by do-while's "loop while true"). Comparisons
// are special-cased to fold the test into a single compare+branch instead
// of materializing 0/1 and re-testing it.
func (c *Context) genCondBranch(cond ast.Expr, jumpIfFalse bool, label string) {
	if b, ok := cond.(*ast.BinOpExpr); ok && isComparison(b.Op) {
		op := c.genCompare(b)
		if jumpIfFalse {
			op = negateComparison(op)
		}
		c.emit("%s %s", branchMnemonic(op, c.comparisonSigned(b)), label)
		return
	}
	c.genExpr(cond)
	c.emit("tst.l d0")
	if jumpIfFalse {
		c.emit("beq %s", label)
	} else {
		c.emit("bne %s", label)
	}
}

func negateComparison(op string) string {
	switch op {
	case "==":
		return "!="
	case "!=":
		return "=="
	case "<":
		return ">="
	case "<=":
		return ">"
	case ">":
		return "<="
	case ">=":
		return "<"
	}
	return op
}

// genPush lowers PUSH(reg, ...): movem.l with the register list, tracked on
// a stack so the matching POP() (which carries no explicit list) knows
// which registers to restore.
func (c *Context) genPush(x *ast.PushStmt) {
	c.pushStack = append(c.pushStack, x.Regs)
	c.emit("movem.l %s,-(sp)", strings.Join(x.Regs, "/"))
}

func (c *Context) genPop(x *ast.PopStmt) {
	regs := x.Regs
	if len(regs) == 0 && len(c.pushStack) > 0 {
		regs = c.pushStack[len(c.pushStack)-1]
		c.pushStack = c.pushStack[:len(c.pushStack)-1]
	}
	c.emit("movem.l (sp)+,%s", strings.Join(reverseRegs(regs), "/"))
}

func reverseRegs(regs []string) []string {
	out := make([]string, len(regs))
	for i, r := range regs {
		out[len(regs)-1-i] = r
	}
	return out
}
