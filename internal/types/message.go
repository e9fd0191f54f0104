// Package types contains shared types used across multiple packages.
// This helps avoid import cycles between packages like llm, tools and turn.
package types

import "fmt"

// Message roles. The wire shape is OpenAI-style; adapters translate.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation requested by the model. Arguments is the
// raw JSON object text exactly as the provider emitted it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is a single conversation entry.
// Invariants: a system message sits at index 0 of every conversation; an
// assistant message carries content and/or tool calls (content may be "");
// a tool message's ToolCallID matches a prior assistant tool call.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage builds a tool-role message answering the given call.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, Name: name, ToolCallID: callID}
}

// Validate rejects messages that carry neither content nor tool calls.
// An empty content string with tool calls present is permitted.
func (m Message) Validate() error {
	if m.Role == RoleAssistant && m.Content == "" && len(m.ToolCalls) == 0 {
		return fmt.Errorf("assistant message needs content or tool_calls")
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return fmt.Errorf("tool message needs tool_call_id")
	}
	return nil
}

// ToolDefinition is the provider-facing tool schema.
// Parameters is a JSON-schema subset: object with named properties plus a
// required list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
