// Package lexer tokenizes pre-processed HAS source. It never sees raw
// #include directives or asm/@python/@template bodies directly: those are
// expanded or extracted by internal/preprocess first, leaving only the
// synthetic placeholder tokens behind.
package lexer

import (
	"strconv"
	"strings"

	"github.com/rozensoftware/highamigaassembler/internal/diag"
)

type charGroup []byte

func (g charGroup) matches(b byte) bool {
	for _, v := range g {
		if v == b {
			return true
		}
	}
	return false
}

var whitespace = charGroup{' ', '\t', '\r'}

// two-character punctuation, matched before single characters so greedy
// matching works.
var puncts2 = []string{"&&", "||", "==", "!=", "<=", ">=", "<<", ">>", "++", "--",
	"+=", "-=", "*=", "/=", "&=", "|=", "^=", "->"}

// Lexer turns pre-processed source text into a Token stream.
type Lexer struct {
	file  string
	input string
	pos   int
	line  int
	col   int
	diags *diag.Bag
	// prev remembers the last emitted token so `%` can be disambiguated:
	// after an operand (`x % 2`) it is the modulo operator, elsewhere
	// (`%1010`) it starts a binary literal.
	prev Token
}

// New creates a Lexer over the given pre-processed source.
func New(file, input string, diags *diag.Bag) *Lexer {
	return &Lexer{file: file, input: input, line: 1, col: 1, diags: diags}
}

func (l *Lexer) curPos() diag.Pos { return diag.Pos{File: l.file, Line: l.line, Col: l.col} }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

func (l *Lexer) advance() byte {
	b := l.peekByte()
	if l.pos < len(l.input) {
		l.pos++
		if b == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
	return b
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for whitespace.matches(l.peekByte()) {
			l.advance()
		}
		if l.peekByte() == '\n' {
			l.advance()
			continue
		}
		if l.peekByte() == '/' && l.peekByteAt(1) == '/' {
			for l.peekByte() != '\n' && l.peekByte() != 0 {
				l.advance()
			}
			continue
		}
		if l.peekByte() == '/' && l.peekByteAt(1) == '*' {
			l.advance()
			l.advance()
			for !(l.peekByte() == '*' && l.peekByteAt(1) == '/') && l.peekByte() != 0 {
				l.advance()
			}
			l.advance()
			l.advance()
			continue
		}
		return
	}
}

// Tokenize runs the full lex pass and returns the token stream terminated by
// an EOF token.
func (l *Lexer) Tokenize() []Token {
	var toks []Token
	for {
		tok := l.next()
		toks = append(toks, tok)
		l.prev = tok
		if tok.Kind == EOF {
			break
		}
	}
	return toks
}

func (l *Lexer) next() Token {
	l.skipWhitespaceAndComments()
	pos := l.curPos()
	b := l.peekByte()
	if b == 0 {
		return Token{Kind: EOF, Pos: pos}
	}

	// Placeholder blocks: `asm {BLOCK_N}`, `@python {BLOCK_N}`,
	// `@template "file" {BLOCK_N}` — recognized whole, here, rather than as
	// separate punctuation, because the parser needs the block ID intact.
	if strings.HasPrefix(l.input[l.pos:], "asm") && l.afterIdentBoundary(3) {
		if id, ok := l.tryPlaceholder("asm"); ok {
			return Token{Kind: AsmBlock, Pos: pos, BlockID: id}
		}
	}
	if b == '@' {
		if strings.HasPrefix(l.input[l.pos:], "@python") {
			save := l.pos
			l.pos += len("@python")
			if id, ok := l.tryPlaceholder(""); ok {
				return Token{Kind: PythonBlock, Pos: pos, BlockID: id}
			}
			l.pos = save
		}
		if strings.HasPrefix(l.input[l.pos:], "@template") {
			save := l.pos
			l.pos += len("@template")
			l.skipWhitespaceAndComments()
			file := ""
			if l.peekByte() == '"' {
				file = l.lexStringLiteral()
				l.skipWhitespaceAndComments()
			}
			if id, ok := l.tryPlaceholder(""); ok {
				return Token{Kind: TemplateBlock, Pos: pos, BlockID: id, TemplateFile: file}
			}
			l.pos = save
		}
	}

	if isIdentStart(b) {
		start := l.pos
		for isIdentCont(l.peekByte()) {
			l.advance()
		}
		return Token{Kind: Ident, Value: l.input[start:l.pos], Pos: pos}
	}

	if isDigit(b) {
		return l.lexNumber(pos)
	}
	if b == '$' && isHexDigit(l.peekByteAt(1)) {
		return l.lexNumber(pos)
	}
	if b == '%' && (l.peekByteAt(1) == '0' || l.peekByteAt(1) == '1') && !l.afterOperand() {
		return l.lexNumber(pos)
	}

	if b == '"' {
		s := l.lexStringLiteral()
		return Token{Kind: String, Value: s, Pos: pos}
	}

	for _, p := range puncts2 {
		if strings.HasPrefix(l.input[l.pos:], p) {
			l.advance()
			l.advance()
			return Token{Kind: Punct, Value: p, Pos: pos}
		}
	}
	l.advance()
	return Token{Kind: Punct, Value: string(b), Pos: pos}
}

// tryPlaceholder expects `{BLOCK_<n>}` (optionally preceded by whitespace)
// after keyword, which it consumes itself when non-empty; with an empty
// keyword the caller has already consumed the sigil. It is how the lexer
// recognizes the synthetic tokens the pre-processor leaves behind.
func (l *Lexer) tryPlaceholder(keyword string) (int, bool) {
	save := l.pos
	if keyword != "" {
		l.pos += len(keyword)
	}
	l.skipWhitespaceAndComments()
	if l.peekByte() != '{' {
		l.pos = save
		return 0, false
	}
	l.advance()
	start := l.pos
	for l.peekByte() != '}' && l.peekByte() != 0 {
		l.advance()
	}
	body := l.input[start:l.pos]
	l.advance() // '}'
	if !strings.HasPrefix(body, "BLOCK_") {
		l.pos = save
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(body, "BLOCK_"))
	if err != nil {
		l.pos = save
		return 0, false
	}
	return n, true
}

// afterOperand reports whether the previous token could end an operand, in
// which case a following `%` is the modulo operator rather than a binary
// literal.
func (l *Lexer) afterOperand() bool {
	switch l.prev.Kind {
	case Ident:
		return !IsKeyword(l.prev.Value)
	case Number:
		return true
	case Punct:
		return l.prev.Value == ")" || l.prev.Value == "]"
	}
	return false
}

func (l *Lexer) afterIdentBoundary(n int) bool {
	b := l.peekByteAt(n)
	return !isIdentCont(b)
}

func (l *Lexer) lexStringLiteral() string {
	l.advance() // opening quote
	var sb strings.Builder
	for l.peekByte() != '"' && l.peekByte() != 0 {
		b := l.advance()
		if b == '\\' && l.peekByte() != 0 {
			sb.WriteByte(l.advance())
			continue
		}
		sb.WriteByte(b)
	}
	l.advance() // closing quote
	return sb.String()
}

func (l *Lexer) lexNumber(pos diag.Pos) Token {
	start := l.pos
	if l.peekByte() == '0' && (l.peekByteAt(1) == 'x' || l.peekByteAt(1) == 'X') {
		l.advance()
		l.advance()
		for isHexDigit(l.peekByte()) {
			l.advance()
		}
		v, _ := strconv.ParseInt(l.input[start+2:l.pos], 16, 64)
		return Token{Kind: Number, Value: l.input[start:l.pos], Number: int(v), Pos: pos}
	}
	if l.peekByte() == '$' {
		l.advance()
		for isHexDigit(l.peekByte()) {
			l.advance()
		}
		v, _ := strconv.ParseInt(l.input[start+1:l.pos], 16, 64)
		return Token{Kind: Number, Value: l.input[start:l.pos], Number: int(v), Pos: pos}
	}
	if l.peekByte() == '%' {
		l.advance()
		for l.peekByte() == '0' || l.peekByte() == '1' {
			l.advance()
		}
		v, _ := strconv.ParseInt(l.input[start+1:l.pos], 2, 64)
		return Token{Kind: Number, Value: l.input[start:l.pos], Number: int(v), Pos: pos}
	}
	for isDigit(l.peekByte()) {
		l.advance()
	}
	v, _ := strconv.Atoi(l.input[start:l.pos])
	return Token{Kind: Number, Value: l.input[start:l.pos], Number: v, Pos: pos}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentCont(b byte) bool { return isIdentStart(b) || isDigit(b) }
func isDigit(b byte) bool     { return b >= '0' && b <= '9' }
func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
