package codegen

import (
	"bytes"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/rozensoftware/highamigaassembler/internal/ast"
	"github.com/rozensoftware/highamigaassembler/internal/diag"
	"github.com/rozensoftware/highamigaassembler/internal/lexer"
	"github.com/rozensoftware/highamigaassembler/internal/parser"
	"github.com/rozensoftware/highamigaassembler/internal/preprocess"
)

// genTemplate loads the side file named by a `@template "file" { context }`
// block, renders it with Go's text/template against the preserved context,
// and splices the result back through the front end as statements.
// Any failure logs a warning and splices nothing: scripting errors surface
// as inline comments, they never abort the compile.
func (c *Context) genTemplate(x *ast.TemplateStmt) {
	path := x.File
	if !filepath.IsAbs(path) && c.BaseDir != "" {
		path = filepath.Join(c.BaseDir, path)
	}
	raw, err := c.Reader.ReadFile(path)
	if err != nil {
		logrus.WithError(err).WithField("file", x.File).Warn("template file missing; splicing nothing")
		c.emitComment("template %s could not be read: %v", x.File, err)
		return
	}
	tpl, err := template.New(x.File).Parse(string(raw))
	if err != nil {
		logrus.WithError(err).WithField("file", x.File).Warn("template parse failed; splicing nothing")
		c.emitComment("template %s failed to parse: %v", x.File, err)
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, c.templateData(x.Context)); err != nil {
		logrus.WithError(err).WithField("file", x.File).Warn("template render failed; splicing nothing")
		c.emitComment("template %s failed to render: %v", x.File, err)
		return
	}
	c.spliceGenerated(buf.String(), "@template "+x.File)
}

// templateData merges the module's constant table with the block's own
// `key = value` context lines; context entries shadow constants on name
// collision.
func (c *Context) templateData(context string) map[string]any {
	data := map[string]any{}
	for k, v := range c.Info.Consts {
		data[k] = v
	}
	for _, line := range strings.Split(context, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if n, err := strconv.Atoi(val); err == nil {
			data[key] = n
		} else {
			data[key] = strings.Trim(val, `"`)
		}
	}
	if c.proc != nil {
		data["Proc"] = c.proc.Name
		data["FrameReg"] = c.frameReg
	}
	return data
}

// genPython lowers an `@python { ... }` compile-time scripting block
// through a deliberately restricted evaluator: assignments and
// appends to `generated_code`, plus a `for i in range(n):` loop over
// literal/const bounds — enough for the constant-table and
// unrolled-sequence patterns the language actually uses scripting for,
// without embedding a real Python interpreter. Whatever the script leaves
// in `generated_code` is re-parsed as source and spliced in place; anything
// outside the subset is reported with nothing spliced.
func (c *Context) genPython(x *ast.PythonStmt) {
	lines, err := runPythonLite(x.Code, c.Info.Consts)
	if err != nil {
		logrus.WithError(err).WithField("block", x.BlockIndex).Warn("compile-time script failed; splicing nothing")
		c.emitComment("@python block %d failed: %v", x.BlockIndex, err)
		return
	}
	if len(lines) == 0 {
		return
	}
	c.spliceGenerated(strings.Join(lines, "\n"), "@python block")
}

// spliceGenerated wraps generated source in a synthetic procedure shell,
// runs it back through block extraction, lexing, and parsing, and lowers
// the resulting statements at the current position. Parse failures
// degrade to an error comment.
func (c *Context) spliceGenerated(src, origin string) {
	text, tables, err := preprocess.RunText(src)
	if err != nil {
		c.emitComment("%s produced unparseable source: %v", origin, err)
		return
	}
	bag := &diag.Bag{}
	wrapped := "proc __generated__() {\n" + text + "\n}"
	toks := lexer.New(origin, wrapped, bag).Tokenize()
	mod := parser.New(toks, tables, bag).Parse()
	if bag.HasErrors() {
		c.emitComment("%s produced source that failed to parse: %s", origin, bag.Errors()[0].Message)
		return
	}
	for _, item := range mod.Items {
		if pr, ok := item.(*ast.Proc); ok {
			c.genStmts(pr.Body)
		}
	}
}

type pythonLiteError struct{ msg string }

func (e *pythonLiteError) Error() string { return e.msg }

// runPythonLite interprets the restricted subset described above and
// returns the accumulated generated_code lines.
func runPythonLite(code string, consts map[string]int) ([]string, error) {
	lines := strings.Split(code, "\n")
	var out []string
	env := map[string]int{}
	for k, v := range consts {
		env[k] = v
	}
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			i++
			continue
		}
		switch {
		case strings.HasPrefix(line, "for "):
			varName, start, end, bodyEnd, err := parseForHeader(lines, i, env)
			if err != nil {
				return nil, err
			}
			for v := start; v < end; v++ {
				env[varName] = v
				sub, err := runPythonLiteBody(lines[i+1:bodyEnd], env)
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
			}
			i = bodyEnd
		case strings.HasPrefix(line, "generated_code"):
			added, err := evalGeneratedCode(line, env)
			if err != nil {
				return nil, err
			}
			out = append(out, added...)
			i++
		default:
			return nil, &pythonLiteError{"unsupported compile-time script construct: " + line}
		}
	}
	return out, nil
}

func runPythonLiteBody(lines []string, env map[string]int) ([]string, error) {
	var out []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "generated_code") {
			return nil, &pythonLiteError{"unsupported statement inside for-body: " + line}
		}
		added, err := evalGeneratedCode(line, env)
		if err != nil {
			return nil, err
		}
		out = append(out, added...)
	}
	return out, nil
}

// evalGeneratedCode handles the generated_code statement forms:
// `generated_code = []`, `generated_code = "..."`, `generated_code =
// ["...", ...]`, and `generated_code.append("...")`.
func evalGeneratedCode(line string, env map[string]int) ([]string, error) {
	switch {
	case strings.HasPrefix(line, "generated_code.append("):
		s, err := evalStringLiteral(line, env)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	case strings.HasPrefix(line, "generated_code"):
		eq := strings.Index(line, "=")
		if eq < 0 {
			return nil, &pythonLiteError{"malformed generated_code statement: " + line}
		}
		rhs := strings.TrimSpace(line[eq+1:])
		if rhs == "[]" {
			return nil, nil
		}
		if strings.HasPrefix(rhs, "[") {
			var out []string
			for _, part := range splitListLiteral(rhs) {
				s, err := substituteBraces(strings.Trim(part, `"`), env)
				if err != nil {
					return nil, err
				}
				out = append(out, s)
			}
			return out, nil
		}
		s, err := evalStringLiteral(rhs, env)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	return nil, &pythonLiteError{"malformed generated_code statement: " + line}
}

func splitListLiteral(s string) []string {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "["), "]")
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseForHeader parses `for i in range(N):` (N a literal or known const)
// and returns the matching body's end index (exclusive).
func parseForHeader(lines []string, idx int, env map[string]int) (string, int, int, int, error) {
	header := strings.TrimSpace(lines[idx])
	header = strings.TrimSuffix(header, ":")
	parts := strings.Fields(header)
	if len(parts) < 4 || parts[0] != "for" || parts[2] != "in" || !strings.HasPrefix(parts[3], "range(") {
		return "", 0, 0, 0, &pythonLiteError{"malformed for-header: " + header}
	}
	varName := parts[1]
	arg := strings.TrimSuffix(strings.TrimPrefix(strings.Join(parts[3:], " "), "range("), ")")
	end, err := evalIntLiteral(arg, env)
	if err != nil {
		return "", 0, 0, 0, err
	}
	bodyEnd := idx + 1
	for bodyEnd < len(lines) && (strings.HasPrefix(lines[bodyEnd], "\t") || strings.HasPrefix(lines[bodyEnd], "    ") || strings.TrimSpace(lines[bodyEnd]) == "") {
		bodyEnd++
	}
	return varName, 0, end, bodyEnd, nil
}

func evalIntLiteral(s string, env map[string]int) (int, error) {
	s = strings.TrimSpace(s)
	if v, ok := env[s]; ok {
		return v, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &pythonLiteError{"not a literal or known constant: " + s}
	}
	return n, nil
}

// evalStringLiteral extracts the quoted string from a statement and
// substitutes `{name}` occurrences with env values.
func evalStringLiteral(line string, env map[string]int) (string, error) {
	start := strings.Index(line, "\"")
	end := strings.LastIndex(line, "\"")
	if start < 0 || end <= start {
		return "", &pythonLiteError{"expected a quoted string literal in: " + line}
	}
	return substituteBraces(line[start+1:end], env)
}

func substituteBraces(body string, env map[string]int) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(body) {
		if body[i] == '{' {
			close := strings.IndexByte(body[i:], '}')
			if close < 0 {
				return "", &pythonLiteError{"unterminated substitution in: " + body}
			}
			name := body[i+1 : i+close]
			v, ok := env[name]
			if !ok {
				return "", &pythonLiteError{"undefined name in substitution: " + name}
			}
			out.WriteString(strconv.Itoa(v))
			i += close + 1
			continue
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String(), nil
}
