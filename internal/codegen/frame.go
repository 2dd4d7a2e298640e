package codegen

import (
	"github.com/rozensoftware/highamigaassembler/internal/ast"
)

// framePreference orders the frame-register candidates: a4/a3/a5 avoid
// saving a6 around every call, falling back to a6 when all three are locked.
var framePreference = []string{"a4", "a3", "a5"}

func chooseFrameReg(locked map[string]bool) string {
	for _, r := range framePreference {
		if !locked[r] {
			return r
		}
	}
	return "a6"
}

// genProc lowers one procedure: frame setup, parameter mirroring, body, and
// epilogue.
func (c *Context) genProc(pr *ast.Proc) {
	pi := c.Info.Procs[pr.Name]
	if pi == nil || pi.Scope == nil {
		c.unknownShape(pr.Pos, "procedure (missing validated scope)")
		return
	}
	c.proc = pr
	c.scope = pi.Scope
	c.frameReg = chooseFrameReg(c.Info.LockedRegs)
	c.localOffset = map[string]int{}
	c.paramOffset = map[string]int{}
	c.paramReg = map[string]string{}
	c.pushStack = nil
	c.loopStack = nil

	c.emitRaw(pr.Name + ":")

	// Stack parameters are pushed right-to-left at the call site, so the
	// first parameter sits at the lowest positive offset: 8 + 4*i off a6
	// after `link`. Register parameters get no stack slot of
	// their own, but every data-register parameter is mirrored into a
	// local slot (step 4 below) since data registers are caller-save.
	stackIndex := 0
	for _, p := range pr.Params {
		if p.Reg != "" {
			c.paramReg[p.Name] = p.Reg
		} else {
			c.paramOffset[p.Name] = 8 + 4*stackIndex
			stackIndex++
		}
	}

	// Local layout: every local variable, plus a mirror slot for each
	// data-register parameter, offsets aligned to even,
	// total rounded up to a multiple of 4.
	offset := 0
	dataRegMirror := map[string]int{}
	for _, p := range pr.Params {
		if p.Reg != "" && isDataReg(p.Reg) {
			offset = alignUp(offset, 2) + 4
			dataRegMirror[p.Name] = -offset
		}
	}
	for _, name := range c.scope.LocalOrder {
		t := c.scope.Locals[name]
		offset = alignUp(offset, sizeAlign(t.Size)) + t.Size
		offset = alignUp(offset, 2)
		c.localOffset[name] = -offset
	}
	for name, off := range dataRegMirror {
		c.localOffset[name] = off
	}
	frameSize := alignUp(offset, 4)
	// With no locals to address there is nothing to gain from a dedicated
	// frame register; a6 alone gives the canonical `link a6,#0` shape.
	if frameSize == 0 {
		c.frameReg = "a6"
	}
	// A non-a6 frame register needs a slot of its own at the bottom of the
	// frame; saving it inside the frame (rather than pushing before link)
	// keeps stack parameters at their 8+4*i(a6) offsets.
	if c.frameReg != "a6" {
		frameSize += 4
	}
	c.frameSize = frameSize

	if frameSize == 0 {
		c.emit("link a6,#0")
	} else {
		c.emit("link a6,#-%d", frameSize)
	}

	if c.frameReg != "a6" {
		c.emit("move.l %s,-%d(a6)", c.frameReg, frameSize)
		c.emit("movea.l a6,%s", c.frameReg)
	}

	// Step 4: mirror every data-register parameter into its reserved slot
	// immediately, since registers are caller-save across any call in the
	// body.
	for _, p := range pr.Params {
		if p.Reg != "" && isDataReg(p.Reg) {
			c.emit("move.l %s,%d(%s)", p.Reg, c.localOffset[p.Name], c.frameReg)
		}
	}

	c.genStmts(pr.Body)

	// Every explicit `return` lowers its own epilogue; append the implicit
	// one only when the body doesn't already end on a return path.
	if !endsWithReturn(pr.Body) {
		c.genEpilogue(pr)
	}
}

func endsWithReturn(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	_, ok := body[len(body)-1].(*ast.ReturnStmt)
	return ok
}

func isDataReg(r string) bool { return len(r) == 2 && r[0] == 'd' }
func isAddrReg(r string) bool { return len(r) == 2 && r[0] == 'a' }

func sizeAlign(size int) int {
	if size >= 4 {
		return 4
	}
	if size == 2 {
		return 2
	}
	return 1
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	if r := v % align; r != 0 {
		v += align - r
	}
	return v
}

// genEpilogue tears down the frame: restore the saved frame register from
// its slot first (its slot lives inside the frame, which unlk discards),
// then `unlk a6; rts`.
func (c *Context) genEpilogue(pr *ast.Proc) {
	if c.frameReg != "a6" {
		c.emit("movea.l -%d(a6),%s", c.frameSize, c.frameReg)
	}
	c.emit("unlk a6")
	c.emit("rts")
}

// localRef returns the `offset(fp)` operand for a local variable.
func (c *Context) localRef(name string) string {
	off := c.localOffset[name]
	if off == 0 {
		return "(" + c.frameReg + ")"
	}
	return itoa(off) + "(" + c.frameReg + ")"
}

// paramRef returns the operand for a parameter: either its pinned register,
// or its stack offset off a6 (stack parameters are always relative to a6,
// since they were pushed before `link` regardless of the chosen frame
// register).
func (c *Context) paramRef(name string) (string, bool) {
	if reg, ok := c.paramReg[name]; ok {
		return reg, true
	}
	if off, ok := c.paramOffset[name]; ok {
		return itoa(off) + "(a6)", true
	}
	return "", false
}

func itoa(v int) string {
	if v < 0 {
		return "-" + itoaAbs(-v)
	}
	return itoaAbs(v)
}

func itoaAbs(v int) string {
	if v == 0 {
		return "0"
	}
	digits := []byte{}
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}
