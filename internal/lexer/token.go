package lexer

import "github.com/rozensoftware/highamigaassembler/internal/diag"

// Kind classifies a Token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Number
	String
	// Punctuation / operators, returned verbatim in Value.
	Punct
	// AsmBlock / PythonBlock / TemplateBlock are the synthetic placeholder
	// tokens the pre-processor substitutes for extracted blocks:
	// `asm {BLOCK_N}`, `@python {BLOCK_N}`, `@template "f" {BLOCK_N}`.
	AsmBlock
	PythonBlock
	TemplateBlock
)

// Token is a single lexical unit with its source position.
type Token struct {
	Kind    Kind
	Value   string
	Number  int
	Pos     diag.Pos
	BlockID int // valid for AsmBlock/PythonBlock/TemplateBlock
	// TemplateFile carries the preserved filename for TemplateBlock tokens.
	TemplateFile string
}

// keywords is the reserved-word set; anything else lexes as Ident.
var keywords = map[string]bool{
	"data": true, "data_chip": true, "bss": true, "bss_chip": true,
	"code": true, "code_chip": true, "struct": true, "proc": true,
	"var": true, "const": true, "macro": true, "extern": true, "func": true,
	"public": true, "if": true, "else": true, "while": true, "do": true,
	"for": true, "to": true, "by": true, "repeat": true, "break": true,
	"continue": true, "return": true, "asm": true, "call": true,
	"PUSH": true, "POP": true, "GetReg": true, "SetReg": true,
}

// IsKeyword reports whether name is a reserved word.
func IsKeyword(name string) bool { return keywords[name] }
