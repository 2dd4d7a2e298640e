package codegen

import (
	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/validator"
)

// genExpr lowers an expression, leaving its value in d0 (the
// single-accumulator convention; d1 is the scratch register used to stage
// a second operand across the recursive evaluation of the other side).
func (c *Context) genExpr(e ast.Expr) {
	switch x := e.(type) {
	case *ast.NumberExpr:
		c.emit("move.l #%d,d0", x.Value)

	case *ast.VarRefExpr:
		c.genLoadVar(x.Name)

	case *ast.GetRegExpr:
		c.emit("move.l %s,d0", x.Reg)

	case *ast.SetRegExpr:
		c.genExpr(x.Value)
		if isAddrReg(x.Reg) {
			c.emit("movea.l d0,%s", x.Reg)
		} else {
			c.emit("move.l d0,%s", x.Reg)
		}

	case *ast.ArrayAccessExpr:
		c.genAddressOf(x)
		c.loadFromA0(c.elemTypeOf(x))

	case *ast.MemberAccessExpr:
		c.genAddressOf(x)
		c.loadFromA0(c.fieldTypeOf(x))

	case *ast.UnaryOpExpr:
		if v, ok := c.constFold(x); ok {
			c.emit("move.l #%d,d0", v)
			return
		}
		c.genUnary(x)

	case *ast.IncDecExpr:
		c.genIncDec(x)

	case *ast.BinOpExpr:
		c.genBinOp(x)

	case *ast.CallExpr:
		c.genCall(x)

	default:
		c.unknownShape(e.Position(), "expression")
	}
}

// genLoadVar loads a scalar variable's value into d0, sign/zero-extending
// per its declared type and storage class.
func (c *Context) genLoadVar(name string) {
	sym, ok := c.scope.Resolve(name)
	if !ok {
		c.emitComment("unresolved variable %s", name)
		c.emit("moveq #0,d0")
		return
	}
	if sym.Kind == validator.SymConst {
		c.emit("move.l #%d,d0", sym.Const)
		return
	}
	if sym.Kind == validator.SymParam {
		// Parameters are always widened to 32 bits by the caller: register
		// parameters were mirrored to their slot as longs
		// and stack parameters were pushed as longs, so a full move.l is
		// the correct load regardless of the declared width.
		if isAddrReg(sym.Reg) {
			c.emit("move.l %s,d0", sym.Reg)
			return
		}
		c.emit("move.l %s,d0", c.symbolRef(sym, name))
		return
	}
	ref := c.symbolRef(sym, name)
	c.loadSized(ref, sym.Type)
}

// loadSized emits the move + extension sequence for reading a typed memory
// operand into d0.
func (c *Context) loadSized(ref string, t ast.Type) {
	switch {
	case t.Pointer || t.Size == 4:
		c.emit("move.l %s,d0", ref)
	case t.Size == 2:
		c.emit("moveq #0,d0")
		c.emit("move.w %s,d0", ref)
		if t.Signed {
			c.emit("ext.l d0")
		}
	default:
		c.emit("moveq #0,d0")
		c.emit("move.b %s,d0", ref)
		if t.Signed {
			c.emit("ext.w d0")
			c.emit("ext.l d0")
		}
	}
}

// loadFromA0 loads the value addressed by a0 into d0, sized per t.
func (c *Context) loadFromA0(t ast.Type) {
	c.loadSized("(a0)", t)
}

// symbolRef returns the memory-operand text for a resolved symbol: locals
// by frame offset, data-register parameters by their mirror slot, stack
// parameters by their a6 offset, address-register parameters by register.
func (c *Context) symbolRef(sym validator.Symbol, name string) string {
	switch sym.Kind {
	case validator.SymLocal:
		return c.localRef(name)
	case validator.SymParam:
		if isDataReg(sym.Reg) {
			return c.localRef(name)
		}
		if ref, ok := c.paramRef(name); ok {
			return ref
		}
		return name
	default:
		// Globals and externs are referenced by symbol name; vasm resolves
		// the absolute/PC-relative addressing mode.
		return name
	}
}

// genAddressOf computes the effective address of an lvalue expression into
// a0 (array indexing and member access both resolve to an address
// before the load/store that wraps them).
func (c *Context) genAddressOf(e ast.Expr) {
	switch x := e.(type) {
	case *ast.VarRefExpr:
		sym, ok := c.scope.Resolve(x.Name)
		if !ok {
			c.emitComment("unresolved variable %s", x.Name)
			c.emit("suba.l a0,a0")
			return
		}
		if sym.Kind == validator.SymParam && isAddrReg(sym.Reg) {
			c.emit("movea.l %s,a0", sym.Reg)
			return
		}
		c.emit("lea %s,a0", c.symbolRef(sym, x.Name))

	case *ast.ArrayAccessExpr:
		c.genLinearIndex(x)
		c.genScaleIndex(elemStride(c.elemTypeOf(x)))
		if base, ok := x.Array.(*ast.VarRefExpr); ok {
			c.emit("move.l d0,d1")
			c.genAddressOf(base)
			c.emit("adda.l d1,a0")
			return
		}
		c.emit("move.l d0,-(sp)")
		c.genAddressOf(x.Array)
		c.emit("move.l (sp)+,d0")
		c.emit("adda.l d0,a0")

	case *ast.MemberAccessExpr:
		c.genAddressOf(x.X)
		if layout := c.structLayoutOf(x.X); layout != nil {
			if f, ok := layout.Field(x.Field); ok && f.Offset != 0 {
				c.emit("adda.l #%d,a0", f.Offset)
			}
		}

	case *ast.UnaryOpExpr:
		if x.Op == "*" {
			c.genExpr(x.X)
			c.emit("movea.l d0,a0")
			return
		}
		c.unknownShape(e.Position(), "lvalue")

	default:
		c.unknownShape(e.Position(), "lvalue")
	}
}

// genLinearIndex leaves the flattened element index in d0: the single index
// for 1D access, `row*cols + col` for 2D, and the row-major
// generalization beyond that.
func (c *Context) genLinearIndex(x *ast.ArrayAccessExpr) {
	c.genExpr(x.Indices[0])
	if len(x.Indices) == 1 {
		return
	}
	var dims []int
	if name, ok := baseVarName(x.Array); ok {
		if g, ok := c.Info.Globals[name]; ok {
			dims = g.Dims
		}
	}
	for i := 1; i < len(x.Indices); i++ {
		cols := 0
		if i < len(dims) {
			cols = dims[i]
		}
		if cols > 0 {
			if shift, ok := powerOfTwoShift(cols); ok {
				c.emitImmediateShift("asl.l", shift)
			} else {
				c.emit("mulu.w #%d,d0", cols)
			}
		}
		if isSimpleOperand(x.Indices[i]) {
			c.emit("move.l d0,d1")
			c.genExpr(x.Indices[i])
			c.emit("add.l d1,d0")
		} else {
			c.emit("move.l d0,-(sp)")
			c.genExpr(x.Indices[i])
			c.emit("add.l (sp)+,d0")
		}
	}
}

// genScaleIndex scales the flattened index in d0 by the element stride,
// shifting when the stride is a power of two.
func (c *Context) genScaleIndex(stride int) {
	if stride <= 1 {
		return
	}
	if shift, ok := powerOfTwoShift(stride); ok {
		c.emitImmediateShift("asl.l", shift)
		return
	}
	c.emit("mulu.w #%d,d0", stride)
}
