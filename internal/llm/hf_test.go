package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

func testMessages() []types.Message {
	return []types.Message{
		types.SystemMessage("You are helpful."),
		types.UserMessage("What is Go?"),
		types.AssistantMessage("A programming language."),
		types.UserMessage("Who made it?"),
	}
}

func TestRenderPromptMistral(t *testing.T) {
	got := RenderPrompt(TemplateMistral, testMessages())
	want := "<s>[INST] You are helpful.\n\nWhat is Go? [/INST] A programming language.</s>[INST] Who made it? [/INST]"
	if got != want {
		t.Errorf("mistral prompt\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderPromptChatML(t *testing.T) {
	got := RenderPrompt(TemplateChatML, testMessages())
	if !strings.HasPrefix(got, "<|im_start|>system\nYou are helpful.<|im_end|>\n") {
		t.Errorf("chatml prompt missing system turn: %q", got)
	}
	if !strings.HasSuffix(got, "<|im_start|>assistant\n") {
		t.Errorf("chatml prompt must end with an open assistant turn: %q", got)
	}
	if !strings.Contains(got, "<|im_start|>user\nWho made it?<|im_end|>\n") {
		t.Errorf("chatml prompt missing final user turn: %q", got)
	}
}

func TestRenderPromptAlpaca(t *testing.T) {
	got := RenderPrompt(TemplateAlpaca, testMessages())
	if !strings.HasPrefix(got, "You are helpful.\n\n") {
		t.Errorf("alpaca prompt should lead with system text: %q", got)
	}
	if !strings.Contains(got, "### Instruction:\nWhat is Go?\n\n") {
		t.Errorf("alpaca prompt missing instruction: %q", got)
	}
	if !strings.HasSuffix(got, "### Response:\n") {
		t.Errorf("alpaca prompt must end with an open response: %q", got)
	}
}

func TestRenderPromptRaw(t *testing.T) {
	got := RenderPrompt(TemplateRaw, testMessages())
	want := "System: You are helpful.\nUser: What is Go?\nAssistant: A programming language.\nUser: Who made it?\nAssistant:"
	if got != want {
		t.Errorf("raw prompt\n got: %q\nwant: %q", got, want)
	}
}

func TestParseHFGenerated(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     string
		wantErr  bool
		wantKind fault.Kind
	}{
		{"list form", `[{"generated_text": "hello"}]`, "hello", false, ""},
		{"multi element list", `[{"generated_text": "a"}, {"generated_text": "b"}]`, "ab", false, ""},
		{"dict form", `{"generated_text": "hello"}`, "hello", false, ""},
		{"error form", `{"error": "model overloaded"}`, "", true, fault.KindInvalidResponse},
		{"empty list", `[]`, "", true, fault.KindInvalidResponse},
		{"empty body", ``, "", true, fault.KindInvalidResponse},
		{"junk", `not json`, "", true, fault.KindParse},
		{"missing fields", `{"something": 1}`, "", true, fault.KindInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseHFGenerated([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if fault.KindOf(err) != tt.wantKind {
					t.Errorf("kind = %v, want %v", fault.KindOf(err), tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func newTestHFProvider(t *testing.T, url string) *HFProvider {
	t.Helper()
	p, err := newHFProvider("test", Endpoint{Type: TypeHFToolkit, URL: url, Model: "test-model"})
	if err != nil {
		t.Fatalf("newHFProvider: %v", err)
	}
	return p
}

func TestHFComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Write([]byte(`[{"generated_text": "Rob Pike and friends."}]`))
	}))
	defer srv.Close()

	p := newTestHFProvider(t, srv.URL)
	resp, err := p.Complete(context.Background(), Request{Messages: testMessages()})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := resp.Text(); got != "Rob Pike and friends." {
		t.Errorf("text = %q", got)
	}
	if resp.First().FinishReason != FinishStop {
		t.Errorf("finish = %q, want stop", resp.First().FinishReason)
	}
}

func TestHFCompleteRejectsTools(t *testing.T) {
	p := newTestHFProvider(t, "http://unused.invalid")
	_, err := p.Complete(context.Background(), Request{
		Messages: testMessages(),
		Tools:    []types.ToolDefinition{{Name: "read_file"}},
	})
	if fault.KindOf(err) != fault.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid_argument", fault.KindOf(err))
	}
}

func TestHFStreamSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"token\": {\"text\": \"Rob \"}}\n\n"))
		w.Write([]byte("data: {\"token\": {\"text\": \"Pike\"}}\n\n"))
		w.Write([]byte("data: not json, skipped\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := newTestHFProvider(t, srv.URL)
	var chunks []string
	got, err := p.Stream(context.Background(), Request{Messages: testMessages()}, func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != "Rob Pike" {
		t.Errorf("full = %q, want %q", got, "Rob Pike")
	}
	if len(chunks) != 2 {
		t.Errorf("chunks = %d, want 2", len(chunks))
	}
}

func TestHFStreamFallsBackToPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"generated_text": "whole answer"}]`))
	}))
	defer srv.Close()

	p := newTestHFProvider(t, srv.URL)
	var chunks []string
	got, err := p.Stream(context.Background(), Request{Messages: testMessages()}, func(s string) {
		chunks = append(chunks, s)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got != "whole answer" {
		t.Errorf("full = %q", got)
	}
	if len(chunks) != 1 || chunks[0] != "whole answer" {
		t.Errorf("chunks = %v, want one whole chunk", chunks)
	}
}

func TestHFStreamRejectsTools(t *testing.T) {
	p := newTestHFProvider(t, "http://unused.invalid")
	_, err := p.Stream(context.Background(), Request{
		Messages: testMessages(),
		Tools:    []types.ToolDefinition{{Name: "read_file"}},
	}, nil)
	if fault.KindOf(err) != fault.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid_argument", fault.KindOf(err))
	}
}

func TestHFAuthFailureMapsToAuthFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestHFProvider(t, srv.URL)
	_, err := p.Complete(context.Background(), Request{Messages: testMessages()})
	if fault.KindOf(err) != fault.KindAuth {
		t.Errorf("kind = %v, want auth", fault.KindOf(err))
	}
}

func TestNewHFProviderValidation(t *testing.T) {
	if _, err := newHFProvider("x", Endpoint{Type: TypeHFToolkit}); fault.KindOf(err) != fault.KindConfig {
		t.Errorf("missing url: kind = %v, want config", fault.KindOf(err))
	}
	if _, err := newHFProvider("x", Endpoint{Type: TypeHFToolkit, URL: "http://h", ChatTemplate: "nope"}); fault.KindOf(err) != fault.KindConfig {
		t.Errorf("bad template: kind = %v, want config", fault.KindOf(err))
	}
}
