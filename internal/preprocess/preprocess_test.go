package preprocess

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// mapReader serves files from memory, keyed by the path expansion reads:
// an include joined onto the including file's directory, not made absolute.
type mapReader map[string]string

func (m mapReader) ReadFile(path string) ([]byte, error) {
	if src, ok := m[path]; ok {
		return []byte(src), nil
	}
	return nil, fmt.Errorf("no such file: %s", path)
}

func TestIncludeExpansion(t *testing.T) {
	reader := mapReader{
		"main.has":                       "a\n#include \"inc.has\"\nb\n",
		filepath.Join(".", "inc.has"):    "middle\n",
	}
	out, _, err := Run("main.has", reader)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, want := range []string{"a", "middle", "b"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "#include") {
		t.Errorf("include directive survived expansion:\n%s", out)
	}
}

func TestIncludeCycleDetected(t *testing.T) {
	reader := mapReader{
		"a.has": "#include \"b.has\"\n",
		"b.has": "#include \"a.has\"\n",
	}
	_, _, err := Run("a.has", reader)
	if err == nil {
		t.Fatal("expected an include-cycle error")
	}
	if !strings.Contains(err.Error(), "include cycle detected") {
		t.Errorf("err = %v, want include cycle detected", err)
	}
}

func TestMissingIncludeIsError(t *testing.T) {
	reader := mapReader{"main.has": "#include \"gone.has\"\n"}
	_, _, err := Run("main.has", reader)
	if err == nil {
		t.Fatal("expected an error for a missing include")
	}
}

func TestAsmBlockExtraction(t *testing.T) {
	src := "before\nasm {\n    move.l d0,d1\n}\nafter\n"
	out, tables, err := RunText(src)
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if !strings.Contains(out, "asm {BLOCK_0}") {
		t.Errorf("placeholder missing:\n%s", out)
	}
	if len(tables.Asm) != 1 {
		t.Fatalf("len(tables.Asm) = %d, want 1", len(tables.Asm))
	}
	if !strings.Contains(tables.Asm[0], "move.l d0,d1") {
		t.Errorf("asm body = %q", tables.Asm[0])
	}
}

func TestAsmBlockNestedBraces(t *testing.T) {
	src := "asm {\n    lea tab(pc),a0 ; {not a block}\n}\n"
	_, tables, err := RunText(src)
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if len(tables.Asm) != 1 {
		t.Fatalf("len(tables.Asm) = %d, want 1", len(tables.Asm))
	}
	if !strings.Contains(tables.Asm[0], "{not a block}") {
		t.Errorf("nested braces lost: %q", tables.Asm[0])
	}
}

func TestPythonBlockExtraction(t *testing.T) {
	src := "@python {\ngenerated_code = []\n}\n"
	out, tables, err := RunText(src)
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if !strings.Contains(out, "@python {BLOCK_0}") {
		t.Errorf("placeholder missing:\n%s", out)
	}
	if len(tables.Python) != 1 || !strings.Contains(tables.Python[0], "generated_code") {
		t.Errorf("tables.Python = %+v", tables.Python)
	}
}

func TestTemplateBlockExtraction(t *testing.T) {
	src := "@template \"sprites.tpl\" {\ncount = 4\n}\n"
	out, tables, err := RunText(src)
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if !strings.Contains(out, `@template "sprites.tpl" {BLOCK_0}`) {
		t.Errorf("placeholder missing:\n%s", out)
	}
	if len(tables.Template) != 1 {
		t.Fatalf("len(tables.Template) = %d, want 1", len(tables.Template))
	}
	if tables.Template[0].File != "sprites.tpl" {
		t.Errorf("File = %q, want sprites.tpl", tables.Template[0].File)
	}
	if !strings.Contains(tables.Template[0].Context, "count = 4") {
		t.Errorf("Context = %q", tables.Template[0].Context)
	}
}

func TestUnterminatedBlock(t *testing.T) {
	if _, _, err := RunText("asm {\n    never closed\n"); err == nil {
		t.Fatal("expected an unterminated-block error")
	}
}

func TestMultipleBlocksIndexInOrder(t *testing.T) {
	src := "asm { one }\nasm { two }\n"
	out, tables, err := RunText(src)
	if err != nil {
		t.Fatalf("RunText: %v", err)
	}
	if !strings.Contains(out, "asm {BLOCK_0}") || !strings.Contains(out, "asm {BLOCK_1}") {
		t.Errorf("placeholders out of order:\n%s", out)
	}
	if len(tables.Asm) != 2 || !strings.Contains(tables.Asm[0], "one") || !strings.Contains(tables.Asm[1], "two") {
		t.Errorf("tables.Asm = %+v", tables.Asm)
	}
}
