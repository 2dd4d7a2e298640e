package codegen

import (
	"github.com/rozensoftware/highamigaassembler/internal/ast"
)

// genUnary lowers !, ~, -, &, and *.
func (c *Context) genUnary(x *ast.UnaryOpExpr) {
	switch x.Op {
	case "&":
		c.genAddressOf(x.X)
		c.emit("move.l a0,d0")
	case "*":
		c.genExpr(x.X)
		c.emit("movea.l d0,a0")
		c.emit("move.l (a0),d0")
	case "-":
		c.genExpr(x.X)
		c.emit("neg.l d0")
	case "~":
		c.genExpr(x.X)
		c.emit("not.l d0")
	case "!":
		c.genExpr(x.X)
		c.emit("tst.l d0")
		c.emit("seq d0")
		c.emit("andi.l #$FF,d0")
		c.emit("neg.b d0")
	default:
		c.unknownShape(x.Pos, "unary operator "+x.Op)
	}
}

// genIncDec lowers pre/post ++ and -- on an lvalue: the address is
// computed once, the updated value is written back, and d0 holds the
// pre- or post-update value per Pre.
func (c *Context) genIncDec(x *ast.IncDecExpr) {
	c.genAddressOf(x.X)
	c.emit("movea.l a0,a1")
	t := c.lvalueType(x.X)
	c.loadFromAddr(t, "a1")
	if !x.Pre {
		c.emit("move.l d0,d1")
	}
	if x.Op == "++" {
		c.emit("addq.l #1,d0")
	} else {
		c.emit("subq.l #1,d0")
	}
	c.storeToAddr(t, "a1")
	if !x.Pre {
		c.emit("move.l d1,d0")
	}
}

func (c *Context) lvalueType(e ast.Expr) ast.Type {
	switch x := e.(type) {
	case *ast.VarRefExpr:
		if sym, ok := c.scope.Resolve(x.Name); ok {
			return sym.Type
		}
	case *ast.ArrayAccessExpr:
		return c.elemTypeOf(x)
	case *ast.MemberAccessExpr:
		return c.fieldTypeOf(x)
	}
	return unknownType
}

func (c *Context) loadFromAddr(t ast.Type, addrReg string) {
	c.loadSized("("+addrReg+")", t)
}

func (c *Context) storeToAddr(t ast.Type, addrReg string) {
	c.emit("move.%s d0,(%s)", t.Suffix(), addrReg)
}

// constFold evaluates an expression at compile time when every leaf is a
// number literal or a named constant, so `1+2` lowers as a single immediate
// load rather than a staged add.
func (c *Context) constFold(e ast.Expr) (int, bool) {
	switch x := e.(type) {
	case *ast.NumberExpr:
		return x.Value, true
	case *ast.VarRefExpr:
		if v, ok := c.Info.Consts[x.Name]; ok {
			return v, true
		}
	case *ast.UnaryOpExpr:
		v, ok := c.constFold(x.X)
		if !ok {
			return 0, false
		}
		switch x.Op {
		case "-":
			return -v, true
		case "~":
			return ^v, true
		case "!":
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
	case *ast.BinOpExpr:
		l, lok := c.constFold(x.Left)
		r, rok := c.constFold(x.Right)
		if !lok || !rok {
			return 0, false
		}
		return foldBinary(x.Op, l, r)
	}
	return 0, false
}

func foldBinary(op string, l, r int) (int, bool) {
	switch op {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case "%":
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case "&":
		return l & r, true
	case "|":
		return l | r, true
	case "^":
		return l ^ r, true
	case "<<":
		if r < 0 || r > 31 {
			return 0, false
		}
		return l << uint(r), true
	case ">>":
		if r < 0 || r > 31 {
			return 0, false
		}
		return l >> uint(r), true
	case "==":
		return boolInt(l == r), true
	case "!=":
		return boolInt(l != r), true
	case "<":
		return boolInt(l < r), true
	case "<=":
		return boolInt(l <= r), true
	case ">":
		return boolInt(l > r), true
	case ">=":
		return boolInt(l >= r), true
	case "&&":
		return boolInt(l != 0 && r != 0), true
	case "||":
		return boolInt(l != 0 || r != 0), true
	}
	return 0, false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isSimpleOperand reports whether evaluating e touches only d0, so a value
// staged in d1 survives across it; anything compound spills through the
// stack instead.
func isSimpleOperand(e ast.Expr) bool {
	switch e.(type) {
	case *ast.NumberExpr, *ast.VarRefExpr, *ast.GetRegExpr:
		return true
	}
	return false
}

// genOperands evaluates Left into d0 and Right into d1. A simple right
// operand is staged through d1 directly; a compound right operand forces the
// left value out to the stack so the recursive evaluation can't clobber it.
func (c *Context) genOperands(left, right ast.Expr) {
	c.genExpr(left)
	if isSimpleOperand(right) {
		c.emit("move.l d0,d1")
		c.genExpr(right)
		c.emit("exg d0,d1")
		return
	}
	c.emit("move.l d0,-(sp)")
	c.genExpr(right)
	c.emit("move.l d0,d1")
	c.emit("move.l (sp)+,d0")
}

// genBinOp lowers binary operators: && and || short-circuit;
// comparisons materialize a 0/1 result in d0; constant operands use
// immediate instruction forms; everything else stages left/right in d0/d1.
func (c *Context) genBinOp(x *ast.BinOpExpr) {
	if v, ok := c.constFold(x); ok {
		c.emit("move.l #%d,d0", v)
		return
	}

	switch x.Op {
	case "&&":
		c.genShortCircuit(x, false)
		return
	case "||":
		c.genShortCircuit(x, true)
		return
	}

	if isComparison(x.Op) {
		c.genComparison(x)
		return
	}

	if k, ok := c.constFold(x.Right); ok {
		c.genExpr(x.Left)
		c.genBinOpImmediate(x, k)
		return
	}

	c.genOperands(x.Left, x.Right)

	switch x.Op {
	case "+":
		c.emit("add.l d1,d0")
	case "-":
		c.emit("sub.l d1,d0")
	case "&":
		c.emit("and.l d1,d0")
	case "|":
		c.emit("or.l d1,d0")
	case "^":
		c.emit("eor.l d1,d0")
	case "<<":
		c.emit("asl.l d1,d0")
	case ">>":
		if c.isSignedBinOperand(x.Left) {
			c.emit("asr.l d1,d0")
		} else {
			c.emit("lsr.l d1,d0")
		}
	case "*":
		c.emit("muls.w d1,d0")
	case "/":
		c.emit("divs.w d1,d0")
		c.emit("ext.l d0")
	case "%":
		c.emit("divs.w d1,d0")
		c.emit("swap d0")
		c.emit("ext.l d0")
	default:
		c.unknownShape(x.Pos, "binary operator "+x.Op)
	}
}

// genBinOpImmediate combines d0 with the constant k using immediate
// instruction forms: addq/subq for small adds, andi/ori/eori,
// immediate shifts, and shift sequences for division by a power of two.
func (c *Context) genBinOpImmediate(x *ast.BinOpExpr, k int) {
	switch x.Op {
	case "+":
		if k >= 1 && k <= 8 {
			c.emit("addq.l #%d,d0", k)
		} else if k != 0 {
			c.emit("add.l #%d,d0", k)
		}
	case "-":
		if k >= 1 && k <= 8 {
			c.emit("subq.l #%d,d0", k)
		} else if k != 0 {
			c.emit("sub.l #%d,d0", k)
		}
	case "&":
		c.emit("andi.l #%d,d0", k)
	case "|":
		c.emit("ori.l #%d,d0", k)
	case "^":
		c.emit("eori.l #%d,d0", k)
	case "<<":
		c.emitImmediateShift("asl.l", k)
	case ">>":
		if c.isSignedBinOperand(x.Left) {
			c.emitImmediateShift("asr.l", k)
		} else {
			c.emitImmediateShift("lsr.l", k)
		}
	case "*":
		if shift, ok := powerOfTwoShift(k); ok {
			c.emitImmediateShift("asl.l", shift)
		} else {
			c.emit("muls.w #%d,d0", k)
		}
	case "/":
		if shift, ok := powerOfTwoShift(k); ok {
			c.emitImmediateShift("asr.l", shift)
		} else {
			c.emit("divs.w #%d,d0", k)
			c.emit("ext.l d0")
		}
	case "%":
		c.emit("divs.w #%d,d0", k)
		c.emit("swap d0")
		c.emit("ext.l d0")
	default:
		c.unknownShape(x.Pos, "binary operator "+x.Op)
	}
}

// emitImmediateShift emits a constant shift on d0, split into chunks of 8
// since the immediate shift form caps its count at 8.
func (c *Context) emitImmediateShift(op string, count int) {
	for count > 8 {
		c.emit("%s #8,d0", op)
		count -= 8
	}
	if count > 0 {
		c.emit("%s #%d,d0", op, count)
	}
}

func powerOfTwoShift(k int) (int, bool) {
	if k <= 1 || k&(k-1) != 0 {
		return 0, false
	}
	shift := 0
	for k > 1 {
		k >>= 1
		shift++
	}
	return shift, true
}

func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

// genCompare emits the compare whose flags reflect left-right, using
// immediate cmp forms when either side folds to a constant, and returns the
// operator to test (swapped when a constant left forced the operands to
// trade places).
func (c *Context) genCompare(x *ast.BinOpExpr) string {
	if k, ok := c.constFold(x.Right); ok {
		c.genExpr(x.Left)
		c.emit("cmp.l #%d,d0", k)
		return x.Op
	}
	if k, ok := c.constFold(x.Left); ok {
		c.genExpr(x.Right)
		c.emit("cmp.l #%d,d0", k)
		return swapComparison(x.Op)
	}
	c.genOperands(x.Left, x.Right)
	c.emit("cmp.l d1,d0")
	return x.Op
}

// swapComparison mirrors an operator across swapped operands: `K < x`
// becomes `x > K`.
func swapComparison(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	}
	return op
}

// genComparison materializes a 0/1 boolean in d0 via cmp + s<cc> +
// andi.l #$FF + neg.b: scc writes $FF on true, the mask clears the
// stale upper bits, and negating the low byte turns $FF into 1.
func (c *Context) genComparison(x *ast.BinOpExpr) {
	op := c.genCompare(x)
	signed := c.comparisonSigned(x)
	c.emit("%s d0", setMnemonic(op, signed))
	c.emit("andi.l #$FF,d0")
	c.emit("neg.b d0")
}

// comparisonSigned selects signed vs. unsigned condition codes from the
// operands' declared types: one unsigned side makes the whole compare
// unsigned.
func (c *Context) comparisonSigned(x *ast.BinOpExpr) bool {
	return c.isSignedBinOperand(x.Left) && c.isSignedBinOperand(x.Right)
}

// setMnemonic maps a comparison operator to the scc form taken when it
// holds.
func setMnemonic(op string, signed bool) string {
	switch op {
	case "==":
		return "seq"
	case "!=":
		return "sne"
	case "<":
		if signed {
			return "slt"
		}
		return "scs"
	case "<=":
		if signed {
			return "sle"
		}
		return "sls"
	case ">":
		if signed {
			return "sgt"
		}
		return "shi"
	case ">=":
		if signed {
			return "sge"
		}
		return "scc"
	}
	return "seq"
}

// branchMnemonic maps a comparison operator to the branch taken when it
// holds, selecting signed or unsigned mnemonics by operand type.
func branchMnemonic(op string, signed bool) string {
	switch op {
	case "==":
		return "beq"
	case "!=":
		return "bne"
	case "<":
		if signed {
			return "blt"
		}
		return "blo"
	case "<=":
		if signed {
			return "ble"
		}
		return "bls"
	case ">":
		if signed {
			return "bgt"
		}
		return "bhi"
	case ">=":
		if signed {
			return "bge"
		}
		return "bhs"
	}
	return "beq"
}

// isSignedBinOperand best-efforts the signedness of an operand for
// mnemonic selection; unresolvable shapes default to signed,
// matching the language's plain `int` default.
func (c *Context) isSignedBinOperand(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.VarRefExpr:
		if sym, ok := c.scope.Resolve(x.Name); ok {
			return sym.Type.Signed
		}
	case *ast.ArrayAccessExpr:
		return c.elemTypeOf(x).Signed
	case *ast.MemberAccessExpr:
		return c.fieldTypeOf(x).Signed
	}
	return true
}

// genShortCircuit lowers && (isOr=false) and || (isOr=true): the right
// side is only evaluated when the left side doesn't already decide the
// result, and the decided branch for either operand jumps straight to the
// matching result without re-testing d0.
func (c *Context) genShortCircuit(x *ast.BinOpExpr, isOr bool) {
	decideLbl := c.newLabel("sc_decide")
	doneLbl := c.newLabel("sc_done")
	branch := "beq"
	if isOr {
		branch = "bne"
	}

	c.genExpr(x.Left)
	c.emit("tst.l d0")
	c.emit("%s %s", branch, decideLbl)
	c.genExpr(x.Right)
	c.emit("tst.l d0")
	c.emit("%s %s", branch, decideLbl)
	if isOr {
		c.emit("moveq #0,d0")
	} else {
		c.emit("moveq #1,d0")
	}
	c.emit("bra %s", doneLbl)
	c.emitRaw(decideLbl + ":")
	if isOr {
		c.emit("moveq #1,d0")
	} else {
		c.emit("moveq #0,d0")
	}
	c.emitRaw(doneLbl + ":")
}
