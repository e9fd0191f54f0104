package turn

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/tools"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

// fakeModel scripts provider replies for the turn tests. Replies pop in
// order; the last one repeats.
type fakeModel struct {
	replies []string
	calls   int
	err     error
	gotReqs []llm.Request
}

func (f *fakeModel) next() string {
	if len(f.replies) == 0 {
		return ""
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r
}

func (f *fakeModel) Name() string  { return "fake" }
func (f *fakeModel) Model() string { return "fake-model" }

func (f *fakeModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	f.gotReqs = append(f.gotReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Choices: []llm.Choice{{
		Message:      types.AssistantMessage(f.next()),
		FinishReason: llm.FinishStop,
	}}}, nil
}

func (f *fakeModel) Stream(ctx context.Context, req llm.Request, onDelta func(string)) (string, error) {
	resp, err := f.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if onDelta != nil {
		onDelta(text)
	}
	return text, nil
}

func (f *fakeModel) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

type fakeRoles struct {
	byRole map[string]llm.Provider
	err    error
}

func (f *fakeRoles) ForRole(role string) (llm.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byRole[role]
	if !ok {
		return nil, fault.Config("no provider for role %q", role)
	}
	return p, nil
}

// newTestDispatcher builds a dispatcher over a temp session with the
// file tools registered.
func newTestDispatcher(t *testing.T) (*tools.Dispatcher, string) {
	t.Helper()
	dir := t.TempDir()
	session, err := tools.NewSession(dir)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	reg := tools.NewRegistry()
	reg.Register(tools.NewReadFileTool(session))
	reg.Register(tools.NewWriteFileTool(session))
	reg.Register(tools.NewEditFileTool(session))
	reg.Register(tools.NewListFilesTool(session))
	reg.Register(tools.NewMakeDirectoryTool(session))
	reg.Register(tools.NewPwdTool(session))
	return tools.NewDispatcher(reg, session, nil), dir
}

func seedFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return path
}

func editReply(oldCode, newCode string) string {
	return "OLD_CODE:\n```\n" + oldCode + "\n```\n\nNEW_CODE:\n```\n" + newCode + "\n```"
}

func TestParseEditBlocks(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantOld string
		wantNew string
		wantErr string
	}{
		{
			name:    "plain blocks",
			reply:   editReply("x = 1", "x = 2"),
			wantOld: "x = 1",
			wantNew: "x = 2",
		},
		{
			name:    "language tags",
			reply:   "OLD_CODE:\n```python\nx = 1\n```\nNEW_CODE:\n```python\nx = 2\n```",
			wantOld: "x = 1",
			wantNew: "x = 2",
		},
		{
			name: "prose around the blocks",
			reply: "Sure, here is the fix.\n\n" + editReply("return a+b", "return a + b") +
				"\n\nLet me know if that works.",
			wantOld: "return a+b",
			wantNew: "return a + b",
		},
		{
			name:    "multiline blocks keep indentation",
			reply:   editReply("def f():\n    return 1", "def f():\n    return 2"),
			wantOld: "def f():\n    return 1",
			wantNew: "def f():\n    return 2",
		},
		{
			name:    "empty new code deletes",
			reply:   "OLD_CODE:\n```\ndead_line()\n```\nNEW_CODE:\n```\n```",
			wantOld: "dead_line()",
			wantNew: "",
		},
		{
			name:    "missing new block",
			reply:   "OLD_CODE:\n```\nx\n```",
			wantErr: "OLD_CODE block followed by a NEW_CODE block",
		},
		{
			name:    "new before old",
			reply:   "NEW_CODE:\n```\ny\n```\nOLD_CODE:\n```\nx\n```",
			wantErr: "OLD_CODE block followed by a NEW_CODE block",
		},
		{
			name:    "empty old block",
			reply:   "OLD_CODE:\n```\n```\nNEW_CODE:\n```\ny\n```",
			wantErr: "OLD_CODE block is empty",
		},
		{
			name:    "old fence never closed",
			reply:   "OLD_CODE:\n```\nx = 1\nNEW_CODE:\n```\ny\n```",
			wantErr: "never closed",
		},
		{
			name:    "no fences at all",
			reply:   "OLD_CODE: x = 1 NEW_CODE: x = 2",
			wantErr: "not followed by a fenced code block",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldCode, newCode, err := parseEditBlocks(tt.reply)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEditBlocks: %v", err)
			}
			if oldCode != tt.wantOld {
				t.Errorf("old = %q, want %q", oldCode, tt.wantOld)
			}
			if newCode != tt.wantNew {
				t.Errorf("new = %q, want %q", newCode, tt.wantNew)
			}
		})
	}
}

func TestCodeEditorApplies(t *testing.T) {
	dispatcher, dir := newTestDispatcher(t)
	path := seedFile(t, dir, "hello.py", "def greet():\n    print(\"helo\")\n")

	model := &fakeModel{replies: []string{
		editReply(`    print("helo")`, `    print("hello")`),
	}}
	editor := &codeEditor{
		dispatcher: dispatcher,
		providers:  &fakeRoles{byRole: map[string]llm.Provider{config.RoleCodestral: model}},
	}

	result, err := editor.Edit(context.Background(), "hello.py", "fix the typo in the greeting", "root")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !strings.Contains(result, "Edited hello.py") {
		t.Errorf("result = %q", result)
	}
	if model.calls != 1 {
		t.Errorf("model calls = %d, want 1", model.calls)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "def greet():\n    print(\"hello\")\n" {
		t.Errorf("file after edit:\n%s", got)
	}

	prompt := model.gotReqs[0].Messages[1].Content
	if !strings.Contains(prompt, "fix the typo in the greeting") {
		t.Error("instruction missing from prompt")
	}
	if !strings.Contains(prompt, "print(\"helo\")") {
		t.Error("file contents missing from prompt")
	}
	if !strings.Contains(prompt, "Do not include line numbers") {
		t.Error("line number warning missing from prompt")
	}
	if strings.Contains(prompt, "previous attempt failed") {
		t.Error("first prompt must not mention a previous attempt")
	}
	if model.gotReqs[0].Messages[0].Content != codeEditSystem {
		t.Errorf("system prompt = %q", model.gotReqs[0].Messages[0].Content)
	}
}

func TestCodeEditorRetriesWithErrorQuoted(t *testing.T) {
	dispatcher, dir := newTestDispatcher(t)
	seedFile(t, dir, "calc.py", "total = a+b\n")

	model := &fakeModel{replies: []string{
		editReply("total = a  +  b", "total = a + b"), // not in the file
		editReply("total = a+b", "total = a + b"),
	}}
	editor := &codeEditor{
		dispatcher: dispatcher,
		providers:  &fakeRoles{byRole: map[string]llm.Provider{config.RoleCodestral: model}},
	}

	result, err := editor.Edit(context.Background(), "calc.py", "space out the addition", "root")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !strings.Contains(result, "Edited calc.py") {
		t.Errorf("result = %q", result)
	}
	if model.calls != 2 {
		t.Fatalf("model calls = %d, want 2", model.calls)
	}

	retry := model.gotReqs[1].Messages[1].Content
	if !strings.Contains(retry, "Your previous attempt failed: OLD_CODE is not an exact substring of the file") {
		t.Errorf("retry prompt does not quote the failure:\n%s", retry)
	}
}

func TestCodeEditorGivesUp(t *testing.T) {
	dispatcher, dir := newTestDispatcher(t)
	path := seedFile(t, dir, "keep.txt", "original\n")

	model := &fakeModel{replies: []string{"no blocks here"}}
	editor := &codeEditor{
		dispatcher: dispatcher,
		providers:  &fakeRoles{byRole: map[string]llm.Provider{config.RoleCodestral: model}},
	}

	_, err := editor.Edit(context.Background(), "keep.txt", "change it", "root")
	if !fault.IsKind(err, fault.KindInvalidResponse) {
		t.Fatalf("error = %v, want invalid response", err)
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("error = %v, want attempt count", err)
	}
	if model.calls != codeEditMaxTries {
		t.Errorf("model calls = %d, want %d", model.calls, codeEditMaxTries)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "original\n" {
		t.Errorf("file changed despite failure: %q", got)
	}
}

func TestCodeEditorMissingFile(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	model := &fakeModel{}
	editor := &codeEditor{
		dispatcher: dispatcher,
		providers:  &fakeRoles{byRole: map[string]llm.Provider{config.RoleCodestral: model}},
	}

	if _, err := editor.Edit(context.Background(), "ghost.py", "anything", "root"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if model.calls != 0 {
		t.Errorf("model called %d times for a missing file", model.calls)
	}
}
