package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

func TestOpenAIBaseURLNormalization(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"bare host", "http://localhost:1234", "http://localhost:1234/v1"},
		{"trailing slash", "http://localhost:1234/", "http://localhost:1234/v1"},
		{"already v1", "http://localhost:1234/v1", "http://localhost:1234/v1"},
		{"v1 trailing slash", "http://localhost:1234/v1/", "http://localhost:1234/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := newOpenAIProvider("local", Endpoint{Type: TypeLocal, URL: tt.url})
			if err != nil {
				t.Fatalf("newOpenAIProvider: %v", err)
			}
			if p.baseURL != tt.want {
				t.Errorf("baseURL = %q, want %q", p.baseURL, tt.want)
			}
		})
	}
}

func TestNewOpenAIProviderHostedValidation(t *testing.T) {
	if _, err := newOpenAIProvider("oai", Endpoint{Type: TypeOpenAIHost, Model: "gpt-4o"}); fault.KindOf(err) != fault.KindConfig {
		t.Errorf("missing key: kind = %v, want config", fault.KindOf(err))
	}
	if _, err := newOpenAIProvider("oai", Endpoint{Type: TypeOpenAIHost, APIKey: "sk-x"}); fault.KindOf(err) != fault.KindConfig {
		t.Errorf("missing model: kind = %v, want config", fault.KindOf(err))
	}
}

func TestNormalizeOpenAIResponse(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		_, err := normalizeOpenAIResponse(openai.ChatCompletionResponse{})
		if fault.KindOf(err) != fault.KindInvalidResponse {
			t.Errorf("kind = %v, want invalid_response", fault.KindOf(err))
		}
	})

	t.Run("missing finish reason", func(t *testing.T) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant", Content: "hi"},
			}},
		}
		_, err := normalizeOpenAIResponse(resp)
		if fault.KindOf(err) != fault.KindInvalidResponse {
			t.Errorf("kind = %v, want invalid_response", fault.KindOf(err))
		}
	})

	t.Run("tool calls convert", func(t *testing.T) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: "assistant",
					ToolCalls: []openai.ToolCall{{
						ID:   "call_1",
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      "read_file",
							Arguments: `{"path": "main.go"}`,
						},
					}},
				},
				FinishReason: openai.FinishReasonToolCalls,
			}},
			Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 3},
		}
		got, err := normalizeOpenAIResponse(resp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		first := got.First()
		if first.FinishReason != FinishToolCalls {
			t.Errorf("finish = %q, want tool_calls", first.FinishReason)
		}
		if len(first.Message.ToolCalls) != 1 {
			t.Fatalf("tool calls = %d, want 1", len(first.Message.ToolCalls))
		}
		tc := first.Message.ToolCalls[0]
		if tc.ID != "call_1" || tc.Name != "read_file" || tc.Arguments != `{"path": "main.go"}` {
			t.Errorf("tool call = %+v", tc)
		}
		if got.Usage.PromptTokens != 12 || got.Usage.CompletionTokens != 3 {
			t.Errorf("usage = %+v", got.Usage)
		}
	})
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"stop", FinishStop},
		{"length", FinishLength},
		{"tool_calls", FinishToolCalls},
		{"function_call", FinishToolCalls},
		{"content_filter", FinishOther},
		{"weird", FinishOther},
	}
	for _, tt := range tests {
		if got := normalizeFinishReason(tt.in); got != tt.want {
			t.Errorf("normalizeFinishReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToOpenAIMessages(t *testing.T) {
	msgs := []types.Message{
		types.SystemMessage("be brief"),
		types.UserMessage("list main.go"),
		{
			Role: types.RoleAssistant,
			ToolCalls: []types.ToolCall{{
				ID:        "call_9",
				Name:      "read_file",
				Arguments: `{"path": "main.go"}`,
			}},
		},
		types.ToolMessage("call_9", "read_file", "package main"),
	}
	got := toOpenAIMessages(msgs)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if got[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("first role = %q, want system", got[0].Role)
	}
	if len(got[2].ToolCalls) != 1 || got[2].ToolCalls[0].Function.Name != "read_file" {
		t.Errorf("assistant tool call not converted: %+v", got[2])
	}
	if got[3].ToolCallID != "call_9" {
		t.Errorf("tool message call id = %q, want call_9", got[3].ToolCallID)
	}
}

func TestOpenAIBuildRequestIncludesToolFields(t *testing.T) {
	p, err := newOpenAIProvider("local", Endpoint{Type: TypeLocal, URL: "http://localhost:1234", Model: "m", MaxTokens: 64})
	if err != nil {
		t.Fatalf("newOpenAIProvider: %v", err)
	}
	req := p.buildRequest(Request{
		Messages: []types.Message{types.UserMessage("hi")},
		Tools: []types.ToolDefinition{{
			Name:        "read_file",
			Description: "read a file",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	if len(req.Tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(req.Tools))
	}
	if req.ToolChoice != "auto" {
		t.Errorf("tool_choice = %v, want auto", req.ToolChoice)
	}
	if req.ParallelToolCalls != true {
		t.Errorf("parallel_tool_calls = %v, want true", req.ParallelToolCalls)
	}

	bare := p.buildRequest(Request{Messages: []types.Message{types.UserMessage("hi")}})
	if bare.ToolChoice != nil || bare.ParallelToolCalls != nil {
		t.Errorf("tool fields must be absent without tools: %+v", bare)
	}
}

func TestOpenAICompleteAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:     "chatcmpl-1",
			Object: "chat.completion",
			Model:  "test-model",
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "hello there"},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 5, CompletionTokens: 2},
		})
	}))
	defer srv.Close()

	p, err := newOpenAIProvider("compat", Endpoint{Type: TypeOpenAI, URL: srv.URL, APIKey: "sk-test", Model: "test-model"})
	if err != nil {
		t.Fatalf("newOpenAIProvider: %v", err)
	}
	resp, err := p.Complete(context.Background(), Request{Messages: []types.Message{types.UserMessage("hi")}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text() != "hello there" {
		t.Errorf("text = %q", resp.Text())
	}
}

func TestOpenAIStreamRejectsTools(t *testing.T) {
	p, err := newOpenAIProvider("local", Endpoint{Type: TypeLocal, URL: "http://localhost:1234"})
	if err != nil {
		t.Fatalf("newOpenAIProvider: %v", err)
	}
	_, err = p.Stream(context.Background(), Request{
		Messages: []types.Message{types.UserMessage("hi")},
		Tools:    []types.ToolDefinition{{Name: "read_file"}},
	}, nil)
	if fault.KindOf(err) != fault.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid_argument", fault.KindOf(err))
	}
}

func TestHostedListModelsIsStatic(t *testing.T) {
	p, err := newOpenAIProvider("oai", Endpoint{Type: TypeOpenAIHost, APIKey: "sk-x", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("newOpenAIProvider: %v", err)
	}
	ids, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(ids) == 0 {
		t.Fatal("hosted model table is empty")
	}
	found := false
	for _, id := range ids {
		if id == "gpt-4o" {
			found = true
		}
	}
	if !found {
		t.Errorf("gpt-4o missing from hosted table: %v", ids)
	}
}
