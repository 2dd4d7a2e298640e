package parser

import (
	"strings"
	"testing"

	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/diag"
	"github.com/rozensoftware/highamigaassembler/internal/lexer"
	"github.com/rozensoftware/highamigaassembler/internal/preprocess"
)

func parseSrc(t *testing.T, src string) (*ast.Module, *diag.Bag) {
	t.Helper()
	text, tables, err := preprocess.RunText(src)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	diags := &diag.Bag{}
	toks := lexer.New("test.has", text, diags).Tokenize()
	mod := New(toks, tables, diags).Parse()
	return mod, diags
}

func mustParse(t *testing.T, src string) *ast.Module {
	t.Helper()
	mod, diags := parseSrc(t, src)
	if diags.HasErrors() {
		t.Fatalf("unexpected parse errors: %v", diags.Errors())
	}
	return mod
}

func TestParseCodeSectionWithProc(t *testing.T) {
	mod := mustParse(t, "code C: proc f() -> int { return 1+2; }")
	if len(mod.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(mod.Items))
	}
	sec, ok := mod.Items[0].(*ast.Section)
	if !ok {
		t.Fatalf("Items[0] = %T, want *ast.Section", mod.Items[0])
	}
	if sec.Name != "C" || sec.Kind != ast.SectionCode || sec.Chip {
		t.Errorf("section = %+v", sec)
	}
	if len(sec.Procs) != 1 || sec.Procs[0].Name != "f" {
		t.Fatalf("Procs = %+v", sec.Procs)
	}
	if sec.Procs[0].Return == nil || sec.Procs[0].Return.Size != 4 {
		t.Errorf("return type = %+v, want 4-byte int", sec.Procs[0].Return)
	}
	ret, ok := sec.Procs[0].Body[0].(*ast.ReturnStmt)
	if !ok {
		t.Fatalf("Body[0] = %T, want *ast.ReturnStmt", sec.Procs[0].Body[0])
	}
	if _, ok := ret.Value.(*ast.BinOpExpr); !ok {
		t.Errorf("return value = %T, want *ast.BinOpExpr", ret.Value)
	}
}

func TestParseDataSectionArray(t *testing.T) {
	mod := mustParse(t, "const N = 4;\ndata D: arr.w[N] = { 1,2,3,4 }")
	sec := mod.Items[1].(*ast.Section)
	gv, ok := sec.Items[0].(*ast.GlobalVar)
	if !ok {
		t.Fatalf("section item = %T, want *ast.GlobalVar", sec.Items[0])
	}
	if gv.Name != "arr" || gv.Type.Size != 2 {
		t.Errorf("var = %+v", gv)
	}
	if len(gv.Dims) != 1 || gv.Dims[0].Name != "N" {
		t.Errorf("Dims = %+v, want one named N", gv.Dims)
	}
	if len(gv.Init) != 4 {
		t.Errorf("len(Init) = %d, want 4", len(gv.Init))
	}
}

func TestParseChipSection(t *testing.T) {
	mod := mustParse(t, "data_chip G: buf.b[100]")
	sec := mod.Items[0].(*ast.Section)
	if !sec.Chip || sec.Kind != ast.SectionData {
		t.Errorf("section = %+v, want chip data", sec)
	}
	if sec.Directive() != "data_c" {
		t.Errorf("Directive() = %q, want data_c", sec.Directive())
	}
}

func TestParseStruct(t *testing.T) {
	mod := mustParse(t, "bss B: struct Sprite[8] { x.w, y.w, ptr.l }")
	sec := mod.Items[0].(*ast.Section)
	sv, ok := sec.Items[0].(*ast.StructVar)
	if !ok {
		t.Fatalf("section item = %T, want *ast.StructVar", sec.Items[0])
	}
	if sv.Name != "Sprite" || !sv.InBSS {
		t.Errorf("struct = %+v", sv)
	}
	if len(sv.Fields) != 3 || sv.Fields[2].Name != "ptr" || sv.Fields[2].Type.Size != 4 {
		t.Errorf("Fields = %+v", sv.Fields)
	}
	if len(sv.Dims) != 1 || sv.Dims[0].Literal != 8 {
		t.Errorf("Dims = %+v", sv.Dims)
	}
}

func TestParseRegisterParams(t *testing.T) {
	mod := mustParse(t, "code C: proc g(__reg(d0) a: int, __reg(a1) p: int*, n: word) { }")
	pr := mod.Items[0].(*ast.Section).Procs[0]
	if len(pr.Params) != 3 {
		t.Fatalf("len(Params) = %d, want 3", len(pr.Params))
	}
	if pr.Params[0].Reg != "d0" || pr.Params[1].Reg != "a1" || pr.Params[2].Reg != "" {
		t.Errorf("Params = %+v", pr.Params)
	}
	if !pr.Params[1].Type.Pointer {
		t.Errorf("p should be a pointer type: %+v", pr.Params[1].Type)
	}
	if pr.Params[2].Type.Size != 2 {
		t.Errorf("n should be 2 bytes: %+v", pr.Params[2].Type)
	}
}

func TestParseControlFlow(t *testing.T) {
	src := `code C: proc f() {
	var i: int
	var x: int
	for i = 1 to 10 by 2 {
		if (x < 5) { x = x + 1; } else { break; }
	}
	while (x > 0) { x = x - 1; }
	do { x++; } while (x < 3)
	repeat 8 { x = 0; }
}`
	pr := mustParse(t, src).Items[0].(*ast.Section).Procs[0]
	if len(pr.Body) != 6 {
		t.Fatalf("len(Body) = %d, want 6", len(pr.Body))
	}
	forStmt, ok := pr.Body[2].(*ast.ForStmt)
	if !ok {
		t.Fatalf("Body[2] = %T, want *ast.ForStmt", pr.Body[2])
	}
	if forStmt.Var != "i" || forStmt.Step == nil {
		t.Errorf("for = %+v", forStmt)
	}
	if _, ok := pr.Body[3].(*ast.WhileStmt); !ok {
		t.Errorf("Body[3] = %T, want *ast.WhileStmt", pr.Body[3])
	}
	if _, ok := pr.Body[4].(*ast.DoWhileStmt); !ok {
		t.Errorf("Body[4] = %T, want *ast.DoWhileStmt", pr.Body[4])
	}
	if _, ok := pr.Body[5].(*ast.RepeatStmt); !ok {
		t.Errorf("Body[5] = %T, want *ast.RepeatStmt", pr.Body[5])
	}
}

func TestParsePragmaLockReg(t *testing.T) {
	mod := mustParse(t, "#pragma lockreg(d3, a2)")
	pragma, ok := mod.Items[0].(*ast.PragmaLockReg)
	if !ok {
		t.Fatalf("Items[0] = %T, want *ast.PragmaLockReg", mod.Items[0])
	}
	if len(pragma.Regs) != 2 || pragma.Regs[0] != "d3" || pragma.Regs[1] != "a2" {
		t.Errorf("Regs = %v", pragma.Regs)
	}
}

func TestParseUnknownPragmaWarns(t *testing.T) {
	_, diags := parseSrc(t, "#pragma optimize(3)")
	if diags.HasErrors() {
		t.Fatalf("unknown pragma should warn, not error: %v", diags.Errors())
	}
	if len(diags.Warnings()) == 0 {
		t.Fatal("expected an unknown-pragma warning")
	}
}

func TestParseDirectives(t *testing.T) {
	mod := mustParse(t, "#warning \"old api\"")
	w, ok := mod.Items[0].(*ast.WarningDirective)
	if !ok {
		t.Fatalf("Items[0] = %T, want *ast.WarningDirective", mod.Items[0])
	}
	if w.Message != "old api" {
		t.Errorf("Message = %q", w.Message)
	}
}

func TestParseExternDecls(t *testing.T) {
	src := `extern func AllocMem(size: long, flags: long) -> long
extern var VBlankCount: long
func LocalHelper(n: int)`
	mod := mustParse(t, src)
	if len(mod.Items) != 3 {
		t.Fatalf("len(Items) = %d, want 3", len(mod.Items))
	}
	fn := mod.Items[0].(*ast.ExternDecl)
	if fn.Kind != ast.DeclFunc || !fn.Extern || len(fn.Sig.Params) != 2 || fn.Sig.Return == nil {
		t.Errorf("extern func = %+v", fn)
	}
	v := mod.Items[1].(*ast.ExternDecl)
	if v.Kind != ast.DeclVar || v.Name != "VBlankCount" {
		t.Errorf("extern var = %+v", v)
	}
	lf := mod.Items[2].(*ast.ExternDecl)
	if lf.Extern || lf.Kind != ast.DeclFunc {
		t.Errorf("forward func = %+v", lf)
	}
}

func TestParseMacro(t *testing.T) {
	mod := mustParse(t, "macro WAIT(n) { repeat n { } }")
	mac, ok := mod.Items[0].(*ast.MacroDef)
	if !ok {
		t.Fatalf("Items[0] = %T, want *ast.MacroDef", mod.Items[0])
	}
	if mac.Name != "WAIT" || len(mac.Params) != 1 || mac.Params[0] != "n" {
		t.Errorf("macro = %+v", mac)
	}
}

func TestParsePushPop(t *testing.T) {
	pr := mustParse(t, "code C: proc f() { PUSH(d2, d3) POP() }").Items[0].(*ast.Section).Procs[0]
	push, ok := pr.Body[0].(*ast.PushStmt)
	if !ok {
		t.Fatalf("Body[0] = %T, want *ast.PushStmt", pr.Body[0])
	}
	if len(push.Regs) != 2 {
		t.Errorf("Regs = %v", push.Regs)
	}
	if _, ok := pr.Body[1].(*ast.PopStmt); !ok {
		t.Errorf("Body[1] = %T, want *ast.PopStmt", pr.Body[1])
	}
}

func TestParseIntrinsics(t *testing.T) {
	pr := mustParse(t, `code C: proc f() { var x: int x = GetReg("d3") SetReg("a0", x) }`).Items[0].(*ast.Section).Procs[0]
	asgn := pr.Body[1].(*ast.AssignStmt)
	gr, ok := asgn.Value.(*ast.GetRegExpr)
	if !ok {
		t.Fatalf("value = %T, want *ast.GetRegExpr", asgn.Value)
	}
	if gr.Reg != "d3" {
		t.Errorf("Reg = %q", gr.Reg)
	}
	es := pr.Body[2].(*ast.ExprStmt)
	sr, ok := es.X.(*ast.SetRegExpr)
	if !ok {
		t.Fatalf("X = %T, want *ast.SetRegExpr", es.X)
	}
	if sr.Reg != "a0" {
		t.Errorf("Reg = %q", sr.Reg)
	}
}

func TestVarOutsideProcGetsSpecializedError(t *testing.T) {
	_, diags := parseSrc(t, "var x: int")
	if !diags.HasErrors() {
		t.Fatal("expected an error for var at module scope")
	}
	msg := diags.Errors()[0].Message
	if !strings.Contains(msg, "only valid inside a procedure") {
		t.Errorf("message = %q, want the specialized var placement hint", msg)
	}
}

func TestParsePrecedence(t *testing.T) {
	pr := mustParse(t, "code C: proc f() -> int { return 1 + 2 * 3; }").Items[0].(*ast.Section).Procs[0]
	ret := pr.Body[0].(*ast.ReturnStmt)
	add := ret.Value.(*ast.BinOpExpr)
	if add.Op != "+" {
		t.Fatalf("top op = %q, want +", add.Op)
	}
	mul, ok := add.Right.(*ast.BinOpExpr)
	if !ok || mul.Op != "*" {
		t.Errorf("right = %+v, want 2*3", add.Right)
	}
}

func TestParseInlineAsmStmt(t *testing.T) {
	pr := mustParse(t, "code C: proc f() {\nasm {\n    nop\n}\n}").Items[0].(*ast.Section).Procs[0]
	asm, ok := pr.Body[0].(*ast.AsmStmt)
	if !ok {
		t.Fatalf("Body[0] = %T, want *ast.AsmStmt", pr.Body[0])
	}
	if !strings.Contains(asm.Body, "nop") {
		t.Errorf("Body = %q", asm.Body)
	}
}
