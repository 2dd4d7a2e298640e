// Package validator implements the two-pass semantic check and
// symbol-table construction: a module-wide first pass
// (directives, constants, struct layouts, globals/externs/procs/macros) and
// a per-procedure second pass (locals, name resolution, arity, PUSH/POP
// balance, pointer-parameter heuristics).
package validator

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/diag"
)

// reservedRegs can never be locked or allocated: d7 backs `dbra` in
// `repeat`, a6 is the fallback/default frame pointer, a7 is the stack
// pointer.
var reservedRegs = map[string]bool{"d7": true, "a6": true, "a7": true}

var allDataRegs = []string{"d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7"}
var allAddrRegs = []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"}

// StructLayout is the computed field offset table for a struct
// declaration: bytes are unpadded, words align to 2, longs align to 4, and
// the total stride rounds up to an even number.
type StructLayout struct {
	Name   string
	Fields []FieldLayout
	Size   int // always equal to Stride
	Stride int
}

// FieldLayout is one field's resolved offset inside its struct.
type FieldLayout struct {
	Name   string
	Type   ast.Type
	Offset int
}

func (l *StructLayout) Field(name string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}

// ComputeStructLayout lays out fields in declaration order under the
// alignment rules above.
func ComputeStructLayout(name string, fields []ast.StructField) StructLayout {
	layout := StructLayout{Name: name}
	offset := 0
	for _, f := range fields {
		align := 1
		switch f.Type.Size {
		case 2:
			align = 2
		case 4:
			align = 4
		}
		if offset%align != 0 {
			offset += align - offset%align
		}
		layout.Fields = append(layout.Fields, FieldLayout{Name: f.Name, Type: f.Type, Offset: offset})
		offset += f.Type.Size
	}
	if offset%2 != 0 {
		offset++
	}
	layout.Size = offset
	layout.Stride = offset
	return layout
}

// GlobalInfo describes a resolved data/bss global or struct global.
type GlobalInfo struct {
	Name    string
	Type    ast.Type
	Dims    []int // resolved dimensions, outermost first
	IsArray bool
	Struct  *StructLayout // non-nil for struct globals/arrays
	InBSS   bool
	Init    []ast.Expr
	StructInit [][]ast.Expr
}

// ProcInfo is the resolved signature of a procedure or extern func callee,
// used for arity/register-parameter checks at call sites (macros are kept
// as their MacroDef instead).
type ProcInfo struct {
	Name    string
	Params  []ast.Param
	Return  *ast.Type
	IsExtern bool
	// Scope is populated for non-extern procedures after the per-procedure
	// pass runs, so codegen can reuse the resolved locals/params table
	// instead of re-walking the body.
	Scope *ProcScope
}

// ModuleInfo is the module-wide symbol table produced by the first pass.
type ModuleInfo struct {
	Consts    map[string]int
	Globals   map[string]*GlobalInfo
	Structs   map[string]*StructLayout
	Procs     map[string]*ProcInfo
	Externs   map[string]*ProcInfo
	ExternVars map[string]ast.Type
	Macros    map[string]*ast.MacroDef
	Publics   map[string]bool
	LockedRegs map[string]bool
	// Sections in source order, for codegen.
	Sections []*ast.Section
}

func newModuleInfo() *ModuleInfo {
	return &ModuleInfo{
		Consts:     map[string]int{},
		Globals:    map[string]*GlobalInfo{},
		Structs:    map[string]*StructLayout{},
		Procs:      map[string]*ProcInfo{},
		Externs:    map[string]*ProcInfo{},
		ExternVars: map[string]ast.Type{},
		Macros:     map[string]*ast.MacroDef{},
		Publics:    map[string]bool{},
		LockedRegs: map[string]bool{},
	}
}

// Validate runs both passes and returns the module info plus any recorded
// diagnostics (via diags). Callers should abort before code generation when
// diags.HasErrors().
func Validate(mod *ast.Module, diags *diag.Bag) *ModuleInfo {
	info := newModuleInfo()

	// --- first pass -----------------------------------------------------
	for _, item := range mod.Items {
		switch it := item.(type) {
		case *ast.Section:
			info.Sections = append(info.Sections, it)
		case *ast.ConstDecl:
			validateConstDecl(it, info, diags)
		case *ast.PublicDecl:
			info.Publics[it.Name] = true
		case *ast.WarningDirective:
			diags.AddF(diag.KindSemantic, diag.Warning, it.Pos, "%s", it.Message)
		case *ast.ErrorDirective:
			diags.AddF(diag.KindSemantic, diag.Fatal, it.Pos, "%s", it.Message)
		case *ast.PragmaLockReg:
			validatePragmaLockReg(it, info, diags)
		case *ast.MacroDef:
			if _, dup := info.Macros[it.Name]; dup {
				diags.AddF(diag.KindSemantic, diag.Error, it.Pos, "duplicate macro definition: %s", it.Name)
			}
			info.Macros[it.Name] = it
		case *ast.ExternDecl:
			validateExternDecl(it, info, diags)
		}
	}

	// Section bodies: constants first (so dimension resolution below sees
	// every constant regardless of which section declared it), then
	// globals/structs, then code-section procs.
	for _, sec := range info.Sections {
		for _, item := range sec.Items {
			if cd, ok := item.(*ast.ConstDecl); ok {
				validateConstDecl(cd, info, diags)
			}
		}
		for _, cd := range sec.Consts {
			validateConstDecl(cd, info, diags)
		}
	}
	for _, sec := range info.Sections {
		if sec.Kind == ast.SectionCode {
			continue
		}
		for _, item := range sec.Items {
			switch it := item.(type) {
			case *ast.GlobalVar:
				validateGlobalVar(it, sec, info, diags)
			case *ast.StructVar:
				validateStructVar(it, sec, info, diags)
			}
		}
	}
	for _, sec := range info.Sections {
		if sec.Kind != ast.SectionCode {
			continue
		}
		for _, pr := range sec.Procs {
			if _, dup := info.Procs[pr.Name]; dup {
				diags.AddF(diag.KindSemantic, diag.Error, pr.Pos, "duplicate procedure definition: %s", pr.Name)
				continue
			}
			info.Procs[pr.Name] = &ProcInfo{Name: pr.Name, Params: pr.Params, Return: pr.Return}
		}
	}

	if diags.HasErrors() {
		return info
	}

	// --- second pass: per procedure --------------------------------------
	for _, sec := range info.Sections {
		if sec.Kind != ast.SectionCode {
			continue
		}
		for _, pr := range sec.Procs {
			scope := validateProc(pr, info, diags)
			if pi, ok := info.Procs[pr.Name]; ok {
				pi.Scope = scope
			}
		}
	}

	return info
}

func validateConstDecl(cd *ast.ConstDecl, info *ModuleInfo, diags *diag.Bag) {
	if _, dup := info.Consts[cd.Name]; dup {
		diags.AddF(diag.KindSemantic, diag.Error, cd.Pos, "duplicate constant definition: %s", cd.Name)
		return
	}
	info.Consts[cd.Name] = cd.Value
}

func validatePragmaLockReg(p *ast.PragmaLockReg, info *ModuleInfo, diags *diag.Bag) {
	for _, r := range p.Regs {
		if !isRegisterName(r) {
			diags.AddF(diag.KindSemantic, diag.Error, p.Pos, "invalid register name in #pragma lockreg: %s", r)
			continue
		}
		if reservedRegs[r] {
			diags.AddF(diag.KindSemantic, diag.Error, p.Pos, "cannot lock reserved register %s (d7/a6/a7 are reserved)", r)
			continue
		}
		info.LockedRegs[r] = true
	}
}

func isRegisterName(r string) bool {
	return lo.Contains(allDataRegs, r) || lo.Contains(allAddrRegs, r)
}

// intrinsicRegs is the register set GetReg/SetReg accept: all data
// registers plus a0–a3 (a4–a7 are frame/stack territory).
var intrinsicRegs = append(append([]string{}, allDataRegs...), "a0", "a1", "a2", "a3")

func checkIntrinsicReg(r string, pos diag.Pos, intrinsic string, diags *diag.Bag) {
	if !lo.Contains(intrinsicRegs, r) {
		diags.AddF(diag.KindSemantic, diag.Error, pos, "%s: invalid register %q (valid: d0-d7, a0-a3)", intrinsic, r)
	}
}

func validateExternDecl(e *ast.ExternDecl, info *ModuleInfo, diags *diag.Bag) {
	if e.Kind == ast.DeclVar {
		info.ExternVars[e.Name] = e.VarType
		return
	}
	if _, dup := info.Externs[e.Name]; dup {
		diags.AddF(diag.KindSemantic, diag.Error, e.Pos, "duplicate extern/func declaration: %s", e.Name)
		return
	}
	info.Externs[e.Name] = &ProcInfo{Name: e.Name, Params: e.Sig.Params, Return: e.Sig.Return, IsExtern: true}
}

// resolveDim resolves a single dimension to an integer, reporting an error
// if it names an unknown constant.
func resolveDim(d ast.DimExpr, info *ModuleInfo, diags *diag.Bag) int {
	if d.Name == "" {
		return d.Literal
	}
	if v, ok := info.Consts[d.Name]; ok {
		return v
	}
	diags.AddF(diag.KindLayout, diag.Error, d.Pos, "array dimension %q does not name a known constant", d.Name)
	return 0
}

func validateGlobalVar(gv *ast.GlobalVar, sec *ast.Section, info *ModuleInfo, diags *diag.Bag) {
	if _, dup := info.Globals[gv.Name]; dup {
		diags.AddF(diag.KindSemantic, diag.Error, gv.Pos, "duplicate global definition: %s", gv.Name)
		return
	}
	dims := lo.Map(gv.Dims, func(d ast.DimExpr, _ int) int { return resolveDim(d, info, diags) })
	if len(dims) > 0 && len(gv.Init) > 0 {
		total := 1
		for _, d := range dims {
			total *= d
		}
		if total != len(gv.Init) {
			diags.AddF(diag.KindLayout, diag.Error, gv.Pos,
				"array initializer for %s has %d elements, expected %d", gv.Name, len(gv.Init), total)
		}
	}
	info.Globals[gv.Name] = &GlobalInfo{
		Name: gv.Name, Type: gv.Type, Dims: dims, IsArray: len(dims) > 0,
		InBSS: sec.Kind == ast.SectionBSS, Init: gv.Init,
	}
}

func validateStructVar(sv *ast.StructVar, sec *ast.Section, info *ModuleInfo, diags *diag.Bag) {
	if _, dup := info.Globals[sv.Name]; dup {
		diags.AddF(diag.KindSemantic, diag.Error, sv.Pos, "duplicate global definition: %s", sv.Name)
		return
	}
	layout := ComputeStructLayout(sv.Name, sv.Fields)
	info.Structs[sv.Name] = &layout
	// Derived constants so expressions can reference the computed layout
	//; codegen additionally emits them as `equ` labels.
	info.Consts[sv.Name+"__size"] = layout.Size
	info.Consts[sv.Name+"__stride"] = layout.Stride
	dims := lo.Map(sv.Dims, func(d ast.DimExpr, _ int) int { return resolveDim(d, info, diags) })
	if len(dims) > 0 && len(sv.Init) > 0 {
		total := 1
		for _, d := range dims {
			total *= d
		}
		if total != len(sv.Init) {
			diags.AddF(diag.KindLayout, diag.Error, sv.Pos,
				"struct array initializer for %s has %d elements, expected %d", sv.Name, len(sv.Init), total)
		}
	}
	for _, init := range sv.Init {
		if len(init) != len(sv.Fields) {
			diags.AddF(diag.KindLayout, diag.Error, sv.Pos,
				"struct initializer for %s has %d values, expected %d fields", sv.Name, len(init), len(sv.Fields))
		}
	}
	info.Globals[sv.Name] = &GlobalInfo{
		Name: sv.Name, Dims: dims, IsArray: len(dims) > 0, Struct: &layout,
		InBSS: sec.Kind == ast.SectionBSS, StructInit: sv.Init,
	}
}

// ---------------------------------------------------------------------
// Per-procedure pass
// ---------------------------------------------------------------------

// SymKind classifies a resolved name inside a procedure body.
type SymKind int

const (
	SymLocal SymKind = iota
	SymParam
	SymGlobal
	SymExtern
	SymConst
)

// Symbol is what a VarRef/ArrayAccess/etc. resolves to.
type Symbol struct {
	Kind  SymKind
	Name  string
	Type  ast.Type
	Reg   string // SymParam register params only
	Const int    // SymConst only
}

// ProcScope is the merged symbol table for one procedure: locals +
// parameters layered over the module-global tables, with constants taking
// precedence on name collision.
type ProcScope struct {
	Proc    *ast.Proc
	Info    *ModuleInfo
	Locals  map[string]ast.Type
	// LocalOrder preserves declaration order for deterministic frame layout.
	LocalOrder []string
	Params     map[string]ast.Param
	pushStack  [][]string
	loopDepth  int
}

func newScope(pr *ast.Proc, info *ModuleInfo) *ProcScope {
	s := &ProcScope{Proc: pr, Info: info, Locals: map[string]ast.Type{}, Params: map[string]ast.Param{}}
	for _, p := range pr.Params {
		s.Params[p.Name] = p
	}
	return s
}

func (s *ProcScope) declareLocal(name string, t ast.Type) {
	if _, exists := s.Locals[name]; !exists {
		s.LocalOrder = append(s.LocalOrder, name)
	}
	s.Locals[name] = t
}

// Resolve looks up name with constants-first precedence.
func (s *ProcScope) Resolve(name string) (Symbol, bool) {
	if v, ok := s.Info.Consts[name]; ok {
		return Symbol{Kind: SymConst, Name: name, Const: v, Type: ast.Type{Name: "int", Size: 4, Signed: true}}, true
	}
	if t, ok := s.Locals[name]; ok {
		return Symbol{Kind: SymLocal, Name: name, Type: t}, true
	}
	if p, ok := s.Params[name]; ok {
		return Symbol{Kind: SymParam, Name: name, Type: p.Type, Reg: p.Reg}, true
	}
	if g, ok := s.Info.Globals[name]; ok {
		t := g.Type
		if g.Struct != nil {
			t = ast.Type{Name: name, Size: g.Struct.Size}
		}
		return Symbol{Kind: SymGlobal, Name: name, Type: t}, true
	}
	if t, ok := s.Info.ExternVars[name]; ok {
		return Symbol{Kind: SymExtern, Name: name, Type: t}, true
	}
	return Symbol{}, false
}

// candidatePool collects every resolvable name for "did you mean" matching.
func (s *ProcScope) candidatePool() []string {
	var names []string
	for n := range s.Info.Consts {
		names = append(names, n)
	}
	for n := range s.Locals {
		names = append(names, n)
	}
	for n := range s.Params {
		names = append(names, n)
	}
	for n := range s.Info.Globals {
		names = append(names, n)
	}
	for n := range s.Info.ExternVars {
		names = append(names, n)
	}
	sort.Strings(names)
	return lo.Uniq(names)
}

// suggest returns the best case-insensitive prefix/substring match for name
// from the candidate pool, or "" if nothing is close.
func suggest(name string, pool []string) string {
	lower := strings.ToLower(name)
	best := ""
	bestScore := 0
	for _, c := range pool {
		cl := strings.ToLower(c)
		score := 0
		switch {
		case strings.HasPrefix(cl, lower) || strings.HasPrefix(lower, cl):
			score = 2
		case strings.Contains(cl, lower) || strings.Contains(lower, cl):
			score = 1
		}
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	return best
}

func validateProc(pr *ast.Proc, info *ModuleInfo, diags *diag.Bag) *ProcScope {
	scope := newScope(pr, info)
	collectLocals(pr.Body, scope)
	walkStmts(pr.Body, scope, diags, pr)
	if len(scope.pushStack) > 0 {
		diags.AddF(diag.KindSemantic, diag.Error, pr.Pos, "unbalanced PUSH in procedure %s: %d unmatched PUSH block(s)", pr.Name, len(scope.pushStack))
	}
	return scope
}

// collectLocals recursively gathers `var` declarations and `for` loop
// counters, per the rule "recursively collect local variable
// declarations, including for counters (only if not pre-declared)".
func collectLocals(stmts []ast.Stmt, scope *ProcScope) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.VarDeclStmt:
			scope.declareLocal(s.Name, s.Type)
		case *ast.ForStmt:
			if _, exists := scope.Locals[s.Var]; !exists {
				if _, isParam := scope.Params[s.Var]; !isParam {
					scope.declareLocal(s.Var, ast.Type{Name: "int", Size: 4, Signed: true})
					s.Declared = true
				}
			}
			collectLocals(s.Body, scope)
		case *ast.IfStmt:
			collectLocals(s.Then, scope)
			collectLocals(s.Else, scope)
		case *ast.WhileStmt:
			collectLocals(s.Body, scope)
		case *ast.DoWhileStmt:
			collectLocals(s.Body, scope)
		case *ast.RepeatStmt:
			collectLocals(s.Body, scope)
		}
	}
}

func walkStmts(stmts []ast.Stmt, scope *ProcScope, diags *diag.Bag, pr *ast.Proc) {
	for _, stmt := range stmts {
		walkStmt(stmt, scope, diags, pr)
	}
}

func walkStmt(stmt ast.Stmt, scope *ProcScope, diags *diag.Bag, pr *ast.Proc) {
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		if s.Init != nil {
			walkExpr(s.Init, scope, diags)
		}
	case *ast.AssignStmt:
		walkExpr(s.Target, scope, diags)
		walkExpr(s.Value, scope, diags)
	case *ast.CompoundAssignStmt:
		walkExpr(s.Target, scope, diags)
		walkExpr(s.Value, scope, diags)
	case *ast.IfStmt:
		walkExpr(s.Cond, scope, diags)
		walkStmts(s.Then, scope, diags, pr)
		walkStmts(s.Else, scope, diags, pr)
	case *ast.WhileStmt:
		scope.loopDepth++
		walkExpr(s.Cond, scope, diags)
		walkStmts(s.Body, scope, diags, pr)
		scope.loopDepth--
	case *ast.DoWhileStmt:
		scope.loopDepth++
		walkStmts(s.Body, scope, diags, pr)
		walkExpr(s.Cond, scope, diags)
		scope.loopDepth--
	case *ast.ForStmt:
		scope.loopDepth++
		walkExpr(s.Start, scope, diags)
		walkExpr(s.End, scope, diags)
		if s.Step != nil {
			walkExpr(s.Step, scope, diags)
		}
		walkStmts(s.Body, scope, diags, pr)
		scope.loopDepth--
	case *ast.RepeatStmt:
		scope.loopDepth++
		walkExpr(s.Count, scope, diags)
		walkStmts(s.Body, scope, diags, pr)
		scope.loopDepth--
	case *ast.ReturnStmt:
		if s.Value != nil {
			walkExpr(s.Value, scope, diags)
			if pr.Return == nil {
				diags.AddF(diag.KindSemantic, diag.Warning, s.Pos, "return with a value in void procedure %s", pr.Name)
			}
		} else if pr.Return != nil {
			diags.AddF(diag.KindSemantic, diag.Warning, s.Pos, "empty return in non-void procedure %s", pr.Name)
		}
	case *ast.BreakStmt:
		if scope.loopDepth == 0 {
			diags.AddF(diag.KindSemantic, diag.Error, s.Pos, "break outside a loop")
		}
	case *ast.ContinueStmt:
		if scope.loopDepth == 0 {
			diags.AddF(diag.KindSemantic, diag.Error, s.Pos, "continue outside a loop")
		}
	case *ast.ExprStmt:
		walkExpr(s.X, scope, diags)
	case *ast.CallStmt:
		walkExpr(s.Call, scope, diags)
	case *ast.PushStmt:
		for _, r := range s.Regs {
			if !isRegisterName(r) {
				diags.AddF(diag.KindSemantic, diag.Error, s.Pos, "invalid register in PUSH: %s", r)
			}
		}
		scope.pushStack = append(scope.pushStack, s.Regs)
	case *ast.PopStmt:
		if len(scope.pushStack) == 0 {
			diags.AddF(diag.KindSemantic, diag.Error, s.Pos, "POP without a matching PUSH")
			return
		}
		top := scope.pushStack[len(scope.pushStack)-1]
		scope.pushStack = scope.pushStack[:len(scope.pushStack)-1]
		s.Regs = top
	case *ast.AsmStmt:
		// inline-asm @symbol resolution happens in codegen, where frame
		// offsets are known; the validator only checks the block parses.
	case *ast.MacroCallStmt:
		validateCallLike(s.Pos, s.Name, s.Args, scope, diags)
		for _, a := range s.Args {
			walkExpr(a, scope, diags)
		}
	case *ast.TemplateStmt, *ast.PythonStmt:
		// compile-time scripting is expanded during codegen; no
		// static symbol resolution happens over its body here.
	}
}

func walkExpr(e ast.Expr, scope *ProcScope, diags *diag.Bag) {
	switch x := e.(type) {
	case *ast.NumberExpr:
		return
	case *ast.GetRegExpr:
		checkIntrinsicReg(x.Reg, x.Pos, "GetReg", diags)
	case *ast.SetRegExpr:
		checkIntrinsicReg(x.Reg, x.Pos, "SetReg", diags)
		walkExpr(x.Value, scope, diags)
	case *ast.VarRefExpr:
		if _, ok := scope.Resolve(x.Name); !ok {
			sug := suggest(x.Name, scope.candidatePool())
			diags.AddSuggest(diag.KindSemantic, x.Pos, sug, "undefined symbol: %s", x.Name)
		}
	case *ast.ArrayAccessExpr:
		walkExpr(x.Array, scope, diags)
		for _, idx := range x.Indices {
			walkExpr(idx, scope, diags)
		}
	case *ast.MemberAccessExpr:
		walkExpr(x.X, scope, diags)
		structName := structNameOf(x.X, scope)
		if structName != "" {
			if layout, ok := scope.Info.Structs[structName]; ok {
				if _, ok := layout.Field(x.Field); !ok {
					diags.AddF(diag.KindSemantic, diag.Error, x.Pos, "struct %s has no field %s", structName, x.Field)
				}
			}
		}
	case *ast.BinOpExpr:
		walkExpr(x.Left, scope, diags)
		walkExpr(x.Right, scope, diags)
	case *ast.UnaryOpExpr:
		walkExpr(x.X, scope, diags)
	case *ast.IncDecExpr:
		walkExpr(x.X, scope, diags)
	case *ast.CallExpr:
		validateCallLike(x.Pos, x.Name, x.Args, scope, diags)
		for _, a := range x.Args {
			walkExpr(a, scope, diags)
		}
	}
}

// structNameOf best-efforts the struct type name behind a member-access
// base expression, covering the common `var.field` and `arr[i].field` cases.
func structNameOf(e ast.Expr, scope *ProcScope) string {
	switch x := e.(type) {
	case *ast.VarRefExpr:
		if g, ok := scope.Info.Globals[x.Name]; ok && g.Struct != nil {
			return g.Struct.Name
		}
	case *ast.ArrayAccessExpr:
		return structNameOf(x.Array, scope)
	}
	return ""
}

// validateCallLike checks arity for a call to a procedure, extern func, or
// macro, and warns on the "likely-missing address-of" heuristic: a
// bare identifier argument passed to a parameter whose name contains "ptr".
func validateCallLike(pos diag.Pos, name string, args []ast.Expr, scope *ProcScope, diags *diag.Bag) {
	var params []ast.Param
	found := true
	switch {
	case scope.Info.Procs[name] != nil:
		params = scope.Info.Procs[name].Params
	case scope.Info.Externs[name] != nil:
		params = scope.Info.Externs[name].Params
	case scope.Info.Macros[name] != nil:
		mac := scope.Info.Macros[name]
		if len(args) != len(mac.Params) {
			diags.AddF(diag.KindSemantic, diag.Error, pos, "macro %s expects %d argument(s), got %d", name, len(mac.Params), len(args))
		}
		return
	default:
		found = false
	}
	if !found {
		sug := suggest(name, append(scope.candidatePool(), procAndMacroNames(scope.Info)...))
		diags.AddSuggest(diag.KindSemantic, pos, sug, "call to undefined procedure/function/macro: %s", name)
		return
	}
	if len(args) != len(params) {
		diags.AddF(diag.KindSemantic, diag.Error, pos, "%s expects %d argument(s), got %d", name, len(params), len(args))
		return
	}
	for i, arg := range args {
		if i >= len(params) {
			break
		}
		if strings.Contains(strings.ToLower(params[i].Name), "ptr") {
			if ref, ok := arg.(*ast.VarRefExpr); ok {
				diags.AddF(diag.KindSemantic, diag.Warning, arg.Position(),
					"argument %s passed to pointer-named parameter %s without &; likely-missing address-of", ref.Name, params[i].Name)
			}
		}
	}
}

func procAndMacroNames(info *ModuleInfo) []string {
	var names []string
	for n := range info.Procs {
		names = append(names, n)
	}
	for n := range info.Externs {
		names = append(names, n)
	}
	for n := range info.Macros {
		names = append(names, n)
	}
	return names
}
