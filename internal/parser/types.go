package parser

import "github.com/rozensoftware/highamigaassembler/internal/ast"

// suffixType maps a declaration's `.b`/`.w`/`.l` size suffix to a Type,
// always with a signed representation: a suffix carries no signedness, so
// suffix-declared globals and struct fields load sign-extended. Variables
// declared with a full primitive name get their type from nameType instead.
func suffixType(suffix string) ast.Type {
	switch suffix {
	case ".b":
		return ast.Type{Name: "byte", Size: 1, Signed: true}
	case ".w":
		return ast.Type{Name: "word", Size: 2, Signed: true}
	default:
		return ast.Type{Name: "long", Size: 4, Signed: true}
	}
}

// primitiveSizes maps every primitive spelling to (size, signed).
var primitiveSizes = map[string]struct {
	Size   int
	Signed bool
}{
	"byte": {1, true}, "i8": {1, true}, "u8": {1, false}, "char": {1, true}, "bool": {1, false},
	"BYTE": {1, true}, "UBYTE": {1, false},
	"word": {2, true}, "short": {2, true}, "i16": {2, true}, "u16": {2, false},
	"WORD": {2, true}, "UWORD": {2, false},
	"long": {4, true}, "int": {4, true}, "i32": {4, true}, "u32": {4, false}, "ptr": {4, false},
	"LONG": {4, true}, "ULONG": {4, false}, "APTR": {4, false},
}

// nameType maps a declared type name (optionally pointer-suffixed) to a Type.
func nameType(name string, pointer bool) ast.Type {
	if pointer {
		elem := nameType(name, false)
		return ast.Type{Name: name + "*", Size: 4, Pointer: true, Elem: &elem}
	}
	if sz, ok := primitiveSizes[name]; ok {
		return ast.Type{Name: name, Size: sz.Size, Signed: sz.Signed}
	}
	// Unknown/struct type name: treat as an opaque 4-byte reference. The
	// name is not checked against the known structs by any later pass.
	return ast.Type{Name: name, Size: 4, Signed: false}
}
