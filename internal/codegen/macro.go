package codegen

import (
	"github.com/rozensoftware/highamigaassembler/internal/ast"
)

// genMacroCall expands a macro call: the macro body is
// deep-copied and every parameter reference is substituted with the
// argument expression from the call site, then the substituted body is
// lowered as if it had been written inline. A name that is not a macro but
// a procedure or extern function is lowered as a plain call instead.
func (c *Context) genMacroCall(x *ast.MacroCallStmt) {
	def, ok := c.Info.Macros[x.Name]
	if !ok {
		if _, isCallee := c.lookupCallee(x.Name); isCallee {
			c.genCall(&ast.CallExpr{Base: x.Base, Name: x.Name, Args: x.Args})
			return
		}
		c.emitComment("call to undefined macro %s", x.Name)
		return
	}
	subst := map[string]ast.Expr{}
	for i, p := range def.Params {
		if i < len(x.Args) {
			subst[p] = x.Args[i]
		}
	}
	body := substStmts(def.Body, subst)
	c.genStmts(body)
}

func substStmts(stmts []ast.Stmt, subst map[string]ast.Expr) []ast.Stmt {
	out := make([]ast.Stmt, len(stmts))
	for i, s := range stmts {
		out[i] = substStmt(s, subst)
	}
	return out
}

func substStmt(s ast.Stmt, subst map[string]ast.Expr) ast.Stmt {
	switch x := s.(type) {
	case *ast.VarDeclStmt:
		y := *x
		y.Init = substExpr(x.Init, subst)
		return &y
	case *ast.AssignStmt:
		y := *x
		y.Target = substExpr(x.Target, subst)
		y.Value = substExpr(x.Value, subst)
		return &y
	case *ast.CompoundAssignStmt:
		y := *x
		y.Target = substExpr(x.Target, subst)
		y.Value = substExpr(x.Value, subst)
		return &y
	case *ast.IfStmt:
		y := *x
		y.Cond = substExpr(x.Cond, subst)
		y.Then = substStmts(x.Then, subst)
		y.Else = substStmts(x.Else, subst)
		return &y
	case *ast.WhileStmt:
		y := *x
		y.Cond = substExpr(x.Cond, subst)
		y.Body = substStmts(x.Body, subst)
		return &y
	case *ast.DoWhileStmt:
		y := *x
		y.Body = substStmts(x.Body, subst)
		y.Cond = substExpr(x.Cond, subst)
		return &y
	case *ast.ForStmt:
		y := *x
		y.Start = substExpr(x.Start, subst)
		y.End = substExpr(x.End, subst)
		y.Step = substExpr(x.Step, subst)
		y.Body = substStmts(x.Body, subst)
		return &y
	case *ast.RepeatStmt:
		y := *x
		y.Count = substExpr(x.Count, subst)
		y.Body = substStmts(x.Body, subst)
		return &y
	case *ast.ReturnStmt:
		y := *x
		y.Value = substExpr(x.Value, subst)
		return &y
	case *ast.ExprStmt:
		y := *x
		y.X = substExpr(x.X, subst)
		return &y
	case *ast.CallStmt:
		y := *x
		call := substExpr(x.Call, subst).(*ast.CallExpr)
		y.Call = call
		return &y
	case *ast.MacroCallStmt:
		y := *x
		y.Args = substExprList(x.Args, subst)
		return &y
	default:
		return s
	}
}

func substExpr(e ast.Expr, subst map[string]ast.Expr) ast.Expr {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *ast.VarRefExpr:
		if repl, ok := subst[x.Name]; ok {
			return repl
		}
		return x
	case *ast.ArrayAccessExpr:
		y := *x
		y.Array = substExpr(x.Array, subst)
		y.Indices = substExprList(x.Indices, subst)
		return &y
	case *ast.MemberAccessExpr:
		y := *x
		y.X = substExpr(x.X, subst)
		return &y
	case *ast.BinOpExpr:
		y := *x
		y.Left = substExpr(x.Left, subst)
		y.Right = substExpr(x.Right, subst)
		return &y
	case *ast.UnaryOpExpr:
		y := *x
		y.X = substExpr(x.X, subst)
		return &y
	case *ast.IncDecExpr:
		y := *x
		y.X = substExpr(x.X, subst)
		return &y
	case *ast.CallExpr:
		y := *x
		y.Args = substExprList(x.Args, subst)
		return &y
	case *ast.SetRegExpr:
		y := *x
		y.Value = substExpr(x.Value, subst)
		return &y
	default:
		return e
	}
}

func substExprList(exprs []ast.Expr, subst map[string]ast.Expr) []ast.Expr {
	if exprs == nil {
		return nil
	}
	out := make([]ast.Expr, len(exprs))
	for i, e := range exprs {
		out[i] = substExpr(e, subst)
	}
	return out
}
