package codegen

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rozensoftware/highamigaassembler/internal/diag"
	"github.com/rozensoftware/highamigaassembler/internal/lexer"
	"github.com/rozensoftware/highamigaassembler/internal/parser"
	"github.com/rozensoftware/highamigaassembler/internal/preprocess"
	"github.com/rozensoftware/highamigaassembler/internal/validator"
)

// mapReader serves @template side files from memory.
type mapReader map[string]string

func (m mapReader) ReadFile(path string) ([]byte, error) {
	if src, ok := m[path]; ok {
		return []byte(src), nil
	}
	return nil, fmt.Errorf("no such file: %s", path)
}

func generate(t *testing.T, src string) string {
	t.Helper()
	return generateWith(t, src, nil)
}

func generateWith(t *testing.T, src string, files map[string]string) string {
	t.Helper()
	text, tables, err := preprocess.RunText(src)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	diags := &diag.Bag{}
	toks := lexer.New("test.has", text, diags).Tokenize()
	mod := parser.New(toks, tables, diags).Parse()
	if diags.HasErrors() {
		t.Fatalf("parse errors: %v", diags.Errors())
	}
	info := validator.Validate(mod, diags)
	if diags.HasErrors() {
		t.Fatalf("validate errors: %v", diags.Errors())
	}
	c := NewContext(info, diags)
	if files != nil {
		c.Reader = mapReader(files)
	}
	return c.GenerateModule(mod)
}

func TestEmptyProcFrame(t *testing.T) {
	asm := generate(t, "code C: proc f() { }")
	for _, want := range []string{"f:", "link a6,#0", "unlk a6", "rts"} {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
}

func TestConstantFoldedReturn(t *testing.T) {
	asm := generate(t, "code C: proc f() -> int { return 1+2; }")
	if !strings.Contains(asm, "move.l #3,d0") {
		t.Errorf("1+2 not folded to an immediate load:\n%s", asm)
	}
	if strings.Contains(asm, "add.l") {
		t.Errorf("constant add survived folding:\n%s", asm)
	}
}

func TestSectionDirectives(t *testing.T) {
	asm := generate(t, "data D: x.l\nbss_chip G: buf.b[8]\ncode C: proc f() { }")
	for _, want := range []string{"SECTION\tD,data", "SECTION\tG,bss_c", "SECTION\tC,code"} {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
}

func TestDataArrayInitializer(t *testing.T) {
	asm := generate(t, "const N = 4;\ndata D: arr.w[N] = { 1,2,3,4 }")
	if !strings.Contains(asm, "arr:") {
		t.Errorf("label arr missing:\n%s", asm)
	}
	if !strings.Contains(asm, "dc.w\t1,2,3,4") {
		t.Errorf("dc.w list missing:\n%s", asm)
	}
}

func TestBSSAllocation(t *testing.T) {
	asm := generate(t, "bss B: buf.w[32]")
	if !strings.Contains(asm, "ds.w\t32") {
		t.Errorf("ds.w 32 missing:\n%s", asm)
	}
}

func TestBSSConstantDimension(t *testing.T) {
	asm := generate(t, "const N = 4;\nbss B: buf.w[N]")
	if !strings.Contains(asm, "ds.w\t4") {
		t.Errorf("named-constant dimension not resolved for allocation:\n%s", asm)
	}
}

func TestUninitializedDataArrayConstantDimension(t *testing.T) {
	asm := generate(t, "const N = 16;\ndata D: tab.l[N]")
	if !strings.Contains(asm, "ds.l\t16") {
		t.Errorf("named-constant dimension not resolved for allocation:\n%s", asm)
	}
}

func TestStructEmission(t *testing.T) {
	asm := generate(t, "bss B: struct Sprite[4] { x.w, y.w, img.l }")
	wants := []string{
		"Sprite:",
		"ds.b\t32", // 8-byte stride * 4 elements
		"Sprite_x\tequ\tSprite+0",
		"Sprite_y\tequ\tSprite+2",
		"Sprite_img\tequ\tSprite+4",
		"Sprite__size\tequ\t8",
		"Sprite__stride\tequ\t8",
	}
	for _, want := range wants {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
}

func TestStructArrayConstantDimension(t *testing.T) {
	asm := generate(t, "const COUNT = 4;\nbss B: struct Sprite[COUNT] { x.w, y.w, img.l }")
	// 8-byte stride * 4 elements
	if !strings.Contains(asm, "ds.b\t32") {
		t.Errorf("named-constant struct dimension not resolved for allocation:\n%s", asm)
	}
}

func TestXrefXdefBlocks(t *testing.T) {
	asm := generate(t, "extern func OpenLibrary(name: long, ver: long) -> long\npublic main\ncode C: proc main() { }")
	lines := strings.Split(asm, "\n")
	var xrefIdx, xdefIdx, secIdx int = -1, -1, -1
	for i, l := range lines {
		switch {
		case strings.Contains(l, "XREF"):
			xrefIdx = i
		case strings.Contains(l, "XDEF"):
			xdefIdx = i
		case strings.Contains(l, "SECTION"):
			if secIdx < 0 {
				secIdx = i
			}
		}
	}
	if xrefIdx < 0 || !strings.Contains(lines[xrefIdx], "OpenLibrary") {
		t.Errorf("XREF block missing OpenLibrary:\n%s", asm)
	}
	if xdefIdx < 0 || !strings.Contains(lines[xdefIdx], "main") {
		t.Errorf("XDEF block missing main:\n%s", asm)
	}
	if secIdx >= 0 && (xrefIdx > secIdx || xdefIdx > secIdx) {
		t.Errorf("XREF/XDEF must precede sections (xref=%d xdef=%d sec=%d)", xrefIdx, xdefIdx, secIdx)
	}
}

func TestRegisterParamsMirroredToSlots(t *testing.T) {
	asm := generate(t, "code C: proc g(__reg(d0) a: int, __reg(d1) b: int) -> int { return a + b; }")
	// prologue saves d0/d1 into the frame, the body reloads from there
	for _, want := range []string{"move.l d0,-4(a4)", "move.l d1,-8(a4)", "move.l -4(a4),d0", "move.l -8(a4),d0"} {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
	if !strings.Contains(asm, "add.l d1,d0") {
		t.Errorf("missing add of staged operands:\n%s", asm)
	}
}

func TestFrameRegisterSavedInsideFrame(t *testing.T) {
	asm := generate(t, "code C: proc f() { var x: int x = 1 }")
	// one long local plus the a4 save slot
	for _, want := range []string{"link a6,#-8", "move.l a4,-8(a6)", "movea.l a6,a4", "movea.l -8(a6),a4"} {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
}

func TestLockedFrameRegistersFallBack(t *testing.T) {
	asm := generate(t, "#pragma lockreg(a4, a3, a5)\ncode C: proc f() { var x: int x = 1 }")
	if strings.Contains(asm, "(a4)") || strings.Contains(asm, "(a3)") || strings.Contains(asm, "(a5)") {
		t.Errorf("locked registers used for the frame:\n%s", asm)
	}
	if !strings.Contains(asm, "(a6)") {
		t.Errorf("a6 fallback not used:\n%s", asm)
	}
}

func TestStackParamOffsets(t *testing.T) {
	asm := generate(t, "code C: proc f(a: int, b: int) -> int { return a + b; }")
	if !strings.Contains(asm, "8(a6)") || !strings.Contains(asm, "12(a6)") {
		t.Errorf("stack params not at 8(a6)/12(a6):\n%s", asm)
	}
}

func TestForLoopComparison(t *testing.T) {
	asm := generate(t, `code C: proc h() -> int {
	var x: int
	var i: int
	x = 0
	for i = 1 to 3 { x = x + i; }
	return x;
}`)
	if !strings.Contains(asm, "cmp.l d1,d0") {
		t.Errorf("loop comparison missing:\n%s", asm)
	}
	if !strings.Contains(asm, "bgt") {
		t.Errorf("loop exit branch must be bgt:\n%s", asm)
	}
	if !strings.Contains(asm, "addq.l #1,d0") {
		t.Errorf("counter increment missing:\n%s", asm)
	}
}

func TestUnsignedComparisonBranch(t *testing.T) {
	asm := generate(t, `code C: proc s(v: u16) -> int {
	if (v < 1) { return -1; } else { return 1; }
}`)
	if strings.Contains(asm, "bge ") || strings.Contains(asm, "blt ") {
		t.Errorf("signed branch used for unsigned operand:\n%s", asm)
	}
	if !strings.Contains(asm, "bhs") {
		t.Errorf("inverted unsigned branch (bhs) missing:\n%s", asm)
	}
}

func TestSignedComparisonBranch(t *testing.T) {
	asm := generate(t, `code C: proc s(v: int) -> int {
	if (v < 1) { return -1; } else { return 1; }
}`)
	if !strings.Contains(asm, "bge") {
		t.Errorf("inverted signed branch (bge) missing:\n%s", asm)
	}
}

func TestRepeatUsesDbra(t *testing.T) {
	asm := generate(t, "code C: proc f() { var x: int repeat 8 { x = 0 } }")
	for _, want := range []string{"subq.l #1,d0", "move.l d0,d7", "dbra d7,"} {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
}

func TestDivisionByPowerOfTwoUsesShift(t *testing.T) {
	asm := generate(t, "code C: proc f(n: int) -> int { return n / 8; }")
	if !strings.Contains(asm, "asr.l #3,d0") {
		t.Errorf("n/8 should shift:\n%s", asm)
	}
	if strings.Contains(asm, "divs") {
		t.Errorf("divs used for a power-of-two divide:\n%s", asm)
	}
}

func TestGeneralDivisionUsesDivs(t *testing.T) {
	asm := generate(t, "code C: proc f(n: int) -> int { return n / 3; }")
	if !strings.Contains(asm, "divs.w #3,d0") {
		t.Errorf("n/3 should use divs.w:\n%s", asm)
	}
}

func TestModuloSwapsRemainder(t *testing.T) {
	asm := generate(t, "code C: proc f(n: int) -> int { return n % 7; }")
	for _, want := range []string{"divs.w #7,d0", "swap d0", "ext.l d0"} {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
}

func TestLargeShiftSplitsIntoChunks(t *testing.T) {
	asm := generate(t, "code C: proc f(n: int) -> int { return n / 1024; }")
	if !strings.Contains(asm, "asr.l #8,d0") || !strings.Contains(asm, "asr.l #2,d0") {
		t.Errorf("/1024 should shift by 8 then 2:\n%s", asm)
	}
}

func TestArrayIndexStrideShift(t *testing.T) {
	asm := generate(t, `data D: tab.l[8]
code C: proc f(i: int) -> int { return tab[i]; }`)
	if !strings.Contains(asm, "asl.l #2,d0") {
		t.Errorf("long-array index should scale by shift:\n%s", asm)
	}
	if !strings.Contains(asm, "lea tab,a0") {
		t.Errorf("base address load missing:\n%s", asm)
	}
}

func TestByteArrayIndexHasNoScaling(t *testing.T) {
	asm := generate(t, `data D: arr.b[8]
code C: proc f(i: int) -> int { return arr[i]; }`)
	if strings.Contains(asm, "asl.l") || strings.Contains(asm, "mulu.w") {
		t.Errorf("byte-array index must not be scaled:\n%s", asm)
	}
	if !strings.Contains(asm, "move.b (a0),d0") {
		t.Errorf("byte element load missing:\n%s", asm)
	}
}

func TestTwoDimensionalIndex(t *testing.T) {
	asm := generate(t, `data D: grid.w[4][6]
code C: proc f(r: int, c: int) -> int { return grid[r][c]; }`)
	// row*6 (not a power of two) then +col, then *2 scale
	if !strings.Contains(asm, "mulu.w #6,d0") {
		t.Errorf("row scale by columns missing:\n%s", asm)
	}
	if !strings.Contains(asm, "asl.l #1,d0") {
		t.Errorf("element stride scale missing:\n%s", asm)
	}
}

func TestAddressOfGlobal(t *testing.T) {
	asm := generate(t, "data D: x.l\ncode C: proc f() -> long { return &x; }")
	if !strings.Contains(asm, "lea x,a0") || !strings.Contains(asm, "move.l a0,d0") {
		t.Errorf("&x lowering missing:\n%s", asm)
	}
}

func TestDereference(t *testing.T) {
	asm := generate(t, "code C: proc f(p: long) -> int { return *p; }")
	if !strings.Contains(asm, "movea.l d0,a0") || !strings.Contains(asm, "move.l (a0),d0") {
		t.Errorf("*p lowering missing:\n%s", asm)
	}
}

func TestInlineAsmSubstitution(t *testing.T) {
	asm := generate(t, `code C: proc k() {
	var counter: int
	counter = 5
	asm {
	move.l @counter,d3
	}
}`)
	if !strings.Contains(asm, "move.l -4(a4),d3") {
		t.Errorf("@counter not substituted:\n%s", asm)
	}
	// substitution comment precedes the substituted line
	idx := strings.Index(asm, "; asm: counter=-4(a4)")
	if idx < 0 {
		t.Fatalf("substitution comment missing:\n%s", asm)
	}
	if idx > strings.Index(asm, "move.l -4(a4),d3") {
		t.Errorf("comment must precede the substituted line:\n%s", asm)
	}
}

func TestInlineAsmRegisterParam(t *testing.T) {
	asm := generate(t, `code C: proc k(__reg(a0) src: long) {
	asm {
	move.l (@src),d2
	}
}`)
	if !strings.Contains(asm, "move.l (a0),d2") {
		t.Errorf("@src should substitute the parameter register:\n%s", asm)
	}
}

func TestInlineAsmConstant(t *testing.T) {
	asm := generate(t, `const DELAY = 50;
code C: proc k() {
	asm {
	move.w @DELAY,d1
	}
}`)
	if !strings.Contains(asm, "move.w #50,d1") {
		t.Errorf("@DELAY should substitute an immediate:\n%s", asm)
	}
}

func TestMacroExpansion(t *testing.T) {
	asm := generate(t, `macro STORE(v) { target = v }
data D: target.l
code C: proc f() { STORE(42) }`)
	if !strings.Contains(asm, "move.l #42,d0") || !strings.Contains(asm, "move.l d0,target") {
		t.Errorf("macro body not expanded with substituted argument:\n%s", asm)
	}
}

func TestCallStackArgsCleanup(t *testing.T) {
	asm := generate(t, `extern func Blit(src: long, dst: long)
code C: proc f() { call Blit(1, 2) }`)
	if !strings.Contains(asm, "jsr Blit") {
		t.Errorf("jsr missing:\n%s", asm)
	}
	if !strings.Contains(asm, "addq.l #8,sp") {
		t.Errorf("stack cleanup for two longs missing:\n%s", asm)
	}
	// right-to-left push: 2 first, then 1
	i2 := strings.Index(asm, "move.l #2,d0")
	i1 := strings.Index(asm, "move.l #1,d0")
	if i2 < 0 || i1 < 0 || i2 > i1 {
		t.Errorf("stack args must push right-to-left:\n%s", asm)
	}
}

func TestCallRegisterArgs(t *testing.T) {
	asm := generate(t, `code C: proc callee(__reg(d1) n: int) { }
proc caller() { call callee(9) }`)
	if !strings.Contains(asm, "move.l d0,d1") {
		t.Errorf("register arg not moved into d1:\n%s", asm)
	}
	if !strings.Contains(asm, "move.l d1,-(sp)") || !strings.Contains(asm, "move.l (sp)+,d1") {
		t.Errorf("caller must save/restore d1 around the call:\n%s", asm)
	}
}

func TestPushPopMovem(t *testing.T) {
	asm := generate(t, "code C: proc f() { PUSH(d2, d3) POP() }")
	if !strings.Contains(asm, "movem.l d2/d3,-(sp)") {
		t.Errorf("PUSH movem missing:\n%s", asm)
	}
	if !strings.Contains(asm, "movem.l (sp)+,d3/d2") {
		t.Errorf("POP movem (reversed) missing:\n%s", asm)
	}
}

func TestShortCircuitAnd(t *testing.T) {
	asm := generate(t, "code C: proc f(a: int, b: int) -> int { return a && b; }")
	if !strings.Contains(asm, "tst.l d0") || !strings.Contains(asm, "beq") {
		t.Errorf("short-circuit test/branch missing:\n%s", asm)
	}
}

func TestComparisonMaterializesBool(t *testing.T) {
	asm := generate(t, "code C: proc f(a: int) -> int { return a == 3; }")
	for _, want := range []string{"cmp.l #3,d0", "seq d0", "andi.l #$FF,d0", "neg.b d0"} {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
}

func TestConstantLeftComparisonSwaps(t *testing.T) {
	asm := generate(t, "code C: proc f(a: int) -> int { return 3 < a; }")
	if !strings.Contains(asm, "cmp.l #3,d0") {
		t.Errorf("constant-left compare should use an immediate:\n%s", asm)
	}
	if !strings.Contains(asm, "sgt d0") {
		t.Errorf("swapped predicate (3<a => a>3) missing:\n%s", asm)
	}
}

func TestGetSetReg(t *testing.T) {
	asm := generate(t, `code C: proc f() { var x: int x = GetReg("d3") SetReg("a2", x) }`)
	if !strings.Contains(asm, "move.l d3,d0") {
		t.Errorf("GetReg lowering missing:\n%s", asm)
	}
	if !strings.Contains(asm, "movea.l d0,a2") {
		t.Errorf("SetReg lowering missing:\n%s", asm)
	}
}

func TestTemplateSplicing(t *testing.T) {
	files := map[string]string{"init.tpl": "x = {{.count}}\n"}
	asm := generateWith(t, `code C: proc f() {
	var x: int
	@template "init.tpl" {
	count = 7
	}
}`, files)
	if !strings.Contains(asm, "move.l #7,d0") {
		t.Errorf("template output not spliced as statements:\n%s", asm)
	}
}

func TestTemplateMissingFileComments(t *testing.T) {
	asm := generateWith(t, `code C: proc f() {
	@template "gone.tpl" {
	}
}`, map[string]string{})
	if !strings.Contains(asm, "; template gone.tpl could not be read") {
		t.Errorf("missing-template comment absent:\n%s", asm)
	}
}

func TestPythonGeneratedCode(t *testing.T) {
	asm := generate(t, `code C: proc f() {
	var x: int
	@python {
	generated_code = []
	for i in range(3):
	    generated_code.append("x = {i}")
	}
}`)
	// three generated assignments: x=0, x=1, x=2
	for _, want := range []string{"move.l #0,d0", "move.l #1,d0", "move.l #2,d0"} {
		if !strings.Contains(asm, want) {
			t.Errorf("output missing %q:\n%s", want, asm)
		}
	}
}

func TestPythonFailureComments(t *testing.T) {
	asm := generate(t, `code C: proc f() {
	@python {
	import os
	}
}`)
	if !strings.Contains(asm, "; @python block") || !strings.Contains(asm, "failed") {
		t.Errorf("script failure must surface as a comment:\n%s", asm)
	}
}

func TestDeterministicOutput(t *testing.T) {
	src := `extern func A()
extern func B()
public f
data D: x.l = 1
code C: proc f() { var i: int for i = 0 to 3 { x = i } }`
	first := generate(t, src)
	for i := 0; i < 3; i++ {
		if again := generate(t, src); again != first {
			t.Fatalf("output differs between runs:\n--- first\n%s\n--- again\n%s", first, again)
		}
	}
}

func TestFrameBalance(t *testing.T) {
	asm := generate(t, `code C: proc f(v: int) -> int {
	if (v > 0) { return 1; }
	return 0;
}`)
	if got := strings.Count(asm, "link a6"); got != 1 {
		t.Errorf("link count = %d, want 1:\n%s", got, asm)
	}
	// one unlk per return path: the early return and the trailing one
	if got := strings.Count(asm, "unlk a6"); got != 2 {
		t.Errorf("unlk count = %d, want 2 (one per return path):\n%s", got, asm)
	}
	if got := strings.Count(asm, "rts"); got != 2 {
		t.Errorf("rts count = %d, want 2:\n%s", got, asm)
	}
}
