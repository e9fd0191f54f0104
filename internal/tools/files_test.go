package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruzivolabs/ruzivo/internal/fault"
)

func mustArgs(t *testing.T, args map[string]any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func seedFile(t *testing.T, s *Session, name, content string) string {
	t.Helper()
	path := filepath.Join(s.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadFileTool(t *testing.T) {
	s := newTestSession(t)
	seedFile(t, s, "poem.txt", "first line\nsecond line")
	tool := NewReadFileTool(s)

	t.Run("plain", func(t *testing.T) {
		out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"path": "poem.txt"}))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if out != "first line\nsecond line" {
			t.Errorf("output = %q", out)
		}
		if !s.WasRead(filepath.Join(s.root, "poem.txt")) {
			t.Error("read was not recorded in the session")
		}
	})

	t.Run("line numbers", func(t *testing.T) {
		out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
			"path": "poem.txt", "line_numbers": true,
		}))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		lines := strings.Split(out, "\n")
		if len(lines) != 2 {
			t.Fatalf("got %d lines, want 2", len(lines))
		}
		if !strings.Contains(lines[0], "1\tfirst line") {
			t.Errorf("line 1 = %q", lines[0])
		}
		if !strings.Contains(lines[1], "2\tsecond line") {
			t.Errorf("line 2 = %q", lines[1])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"path": "absent.txt"})); err == nil {
			t.Error("reading a missing file should fail")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{}))
		if !fault.IsKind(err, fault.KindInvalidArgument) {
			t.Errorf("error = %v, want invalid argument", err)
		}
	})
}

func TestWriteFileTool(t *testing.T) {
	s := newTestSession(t)
	tool := NewWriteFileTool(s)

	out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
		"path": "reports/q3.md", "content": "## Q3\nAll good.",
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Wrote 15 bytes") {
		t.Errorf("output = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(s.root, "reports", "q3.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "## Q3\nAll good." {
		t.Errorf("content = %q", data)
	}
}

func TestEditFileTool(t *testing.T) {
	newFixture := func(t *testing.T) (*Session, *EditFileTool) {
		s := newTestSession(t)
		return s, NewEditFileTool(s)
	}

	t.Run("single replacement", func(t *testing.T) {
		s, tool := newFixture(t)
		seedFile(t, s, "main.py", "def greet():\n    print(\"hello\")\n")
		out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
			"path": "main.py", "old_string": `print("hello")`, "new_string": `print("goodbye")`,
		}))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !strings.Contains(out, "1 replacement") {
			t.Errorf("output = %q", out)
		}
		data, _ := os.ReadFile(filepath.Join(s.root, "main.py"))
		if !strings.Contains(string(data), `print("goodbye")`) {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("not found", func(t *testing.T) {
		s, tool := newFixture(t)
		seedFile(t, s, "a.txt", "alpha beta gamma")
		_, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
			"path": "a.txt", "old_string": "delta", "new_string": "epsilon",
		}))
		if !fault.IsKind(err, fault.KindInvalidArgument) {
			t.Fatalf("error = %v, want invalid argument", err)
		}
		if !strings.Contains(err.Error(), "not found") {
			t.Errorf("error = %q, want mention of not found", err)
		}
	})

	t.Run("near miss returns closest region", func(t *testing.T) {
		s, tool := newFixture(t)
		seedFile(t, s, "code.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
		_, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
			"path":       "code.go",
			"old_string": "func  main()  {", // extra spaces
			"new_string": "func run() {",
		}))
		if err == nil {
			t.Fatal("expected a near-miss error")
		}
		if !strings.Contains(err.Error(), "closest region") {
			t.Errorf("error = %q, want closest region snippet", err)
		}
		if !strings.Contains(err.Error(), "func main() {") {
			t.Errorf("error = %q, want the real line in the snippet", err)
		}
	})

	t.Run("multiple occurrences lists lines", func(t *testing.T) {
		s, tool := newFixture(t)
		seedFile(t, s, "dup.txt", "target\nmiddle\ntarget\n")
		_, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
			"path": "dup.txt", "old_string": "target", "new_string": "hit",
		}))
		if err == nil {
			t.Fatal("expected a multiple-occurrence error")
		}
		if !strings.Contains(err.Error(), "2 times") {
			t.Errorf("error = %q, want occurrence count", err)
		}
		if !strings.Contains(err.Error(), "lines 1, 3") {
			t.Errorf("error = %q, want line numbers 1, 3", err)
		}
	})

	t.Run("replace all", func(t *testing.T) {
		s, tool := newFixture(t)
		seedFile(t, s, "dup.txt", "target\nmiddle\ntarget\n")
		out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
			"path": "dup.txt", "old_string": "target", "new_string": "hit", "replace_all": true,
		}))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !strings.Contains(out, "2 replacements") {
			t.Errorf("output = %q", out)
		}
		data, _ := os.ReadFile(filepath.Join(s.root, "dup.txt"))
		if string(data) != "hit\nmiddle\nhit\n" {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("identical strings refused", func(t *testing.T) {
		s, tool := newFixture(t)
		seedFile(t, s, "same.txt", "text")
		_, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{
			"path": "same.txt", "old_string": "text", "new_string": "text",
		}))
		if !fault.IsKind(err, fault.KindInvalidArgument) {
			t.Errorf("error = %v, want invalid argument", err)
		}
	})
}

func TestMakeDirectoryTool(t *testing.T) {
	s := newTestSession(t)
	tool := NewMakeDirectoryTool(s)

	out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"path": "a/b/c"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "Created directory") {
		t.Errorf("output = %q", out)
	}
	info, err := os.Stat(filepath.Join(s.root, "a", "b", "c"))
	if err != nil || !info.IsDir() {
		t.Errorf("directory was not created: %v", err)
	}
}

func TestListFilesTool(t *testing.T) {
	s := newTestSession(t)
	seedFile(t, s, "readme.md", "x")
	if err := os.Mkdir(filepath.Join(s.root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	tool := NewListFilesTool(s)

	t.Run("default directory", func(t *testing.T) {
		out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{}))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !strings.Contains(out, "readme.md") {
			t.Errorf("output %q missing file entry", out)
		}
		if !strings.Contains(out, "src/") {
			t.Errorf("output %q missing directory marker", out)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"path": "src"}))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !strings.Contains(out, "is empty") {
			t.Errorf("output = %q", out)
		}
	})
}

func TestPwdTool(t *testing.T) {
	s := newTestSession(t)
	if err := os.Mkdir(filepath.Join(s.root, "work"), 0755); err != nil {
		t.Fatal(err)
	}
	tool := NewPwdTool(s)

	out, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != s.root {
		t.Errorf("pwd = %q, want %q", out, s.root)
	}

	if _, err := s.Chdir("work"); err != nil {
		t.Fatal(err)
	}
	out, _ = tool.Execute(context.Background(), nil)
	if out != filepath.Join(s.root, "work") {
		t.Errorf("pwd after cd = %q", out)
	}
}
