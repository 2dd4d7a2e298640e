package codegen

import (
	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/validator"
)

// structNameOf best-efforts the struct type name backing a member-access
// base expression, mirroring the validator's own heuristic (only module
// globals carry struct layouts; locals and parameters are always scalar).
func (c *Context) structNameOf(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.VarRefExpr:
		if g, ok := c.Info.Globals[x.Name]; ok && g.Struct != nil {
			return g.Struct.Name
		}
	case *ast.ArrayAccessExpr:
		return c.structNameOf(x.Array)
	case *ast.MemberAccessExpr:
		if layout := c.structLayoutOf(x.X); layout != nil {
			if f, ok := layout.Field(x.Field); ok {
				return f.Type.Name
			}
		}
	}
	return ""
}

func (c *Context) structLayoutOf(e ast.Expr) *validator.StructLayout {
	name := c.structNameOf(e)
	if name == "" {
		return nil
	}
	return c.Info.Structs[name]
}

// elemTypeOf returns the element type of the array being indexed by x,
// falling back to a 4-byte signed long when it can't be determined (an
// unresolved-shape situation already diagnosed elsewhere).
func (c *Context) elemTypeOf(x *ast.ArrayAccessExpr) ast.Type {
	name, ok := baseVarName(x.Array)
	if !ok {
		return unknownType
	}
	if g, ok := c.Info.Globals[name]; ok {
		if g.Struct != nil {
			return ast.Type{Name: g.Struct.Name, Size: g.Struct.Size}
		}
		return g.Type
	}
	if sym, ok := c.scope.Resolve(name); ok {
		return sym.Type
	}
	return unknownType
}

// fieldTypeOf returns the declared type of the field named by a
// MemberAccessExpr.
func (c *Context) fieldTypeOf(x *ast.MemberAccessExpr) ast.Type {
	if layout := c.structLayoutOf(x.X); layout != nil {
		if f, ok := layout.Field(x.Field); ok {
			return f.Type
		}
	}
	return unknownType
}

var unknownType = ast.Type{Name: "int", Size: 4, Signed: true}

func baseVarName(e ast.Expr) (string, bool) {
	switch x := e.(type) {
	case *ast.VarRefExpr:
		return x.Name, true
	case *ast.ArrayAccessExpr:
		return baseVarName(x.Array)
	}
	return "", false
}

// elemStride returns the per-element byte stride used when scaling an
// array index. Scalar elements use their natural size (a byte array is
// indexed byte by byte); struct element sizes arrive here already rounded
// to an even stride by the layout computation.
func elemStride(t ast.Type) int {
	if t.Size == 0 {
		return 4
	}
	return t.Size
}
