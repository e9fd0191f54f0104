// Package turn runs one REPL turn end to end: route the input, execute
// the chosen workflow, and keep the conversation log within its window.
package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const (
	summaryHeader    = "Previous conversation summary:"
	additionalHeader = "[Additional context:]"

	// summaryLineMax bounds each transcript line fed to the summarizer.
	summaryLineMax = 2000
)

const summaryInstruction = "Summarize this conversation in at most 500 words. " +
	"Focus on decisions made, established facts, files read or modified, and tool results worth keeping. " +
	"Write plain prose."

// Summarizer produces the compaction summary. Any provider satisfies it.
type Summarizer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Conversation is an append-only message log with a bounded window.
// One turn processor owns it; it is not safe for concurrent turns.
type Conversation struct {
	cfg        config.ConversationConfig
	summarizer Summarizer
	messages   []types.Message
}

// NewConversation builds an empty log. A nil summarizer disables
// summarization regardless of the config flag.
func NewConversation(cfg config.ConversationConfig, summarizer Summarizer) *Conversation {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 50
	}
	if cfg.KeepRecent <= 0 {
		cfg.KeepRecent = 10
	}
	if cfg.KeepRecent >= cfg.MaxMessages {
		cfg.KeepRecent = cfg.MaxMessages / 2
	}
	return &Conversation{cfg: cfg, summarizer: summarizer}
}

// SetSystem installs or replaces the system message at index 0.
func (c *Conversation) SetSystem(prompt string) {
	msg := types.SystemMessage(prompt)
	if len(c.messages) > 0 && c.messages[0].Role == types.RoleSystem {
		c.messages[0] = msg
		return
	}
	c.messages = append([]types.Message{msg}, c.messages...)
}

// Append validates and appends one message.
func (c *Conversation) Append(msg types.Message) error {
	if err := msg.Validate(); err != nil {
		return fault.InvalidArgument("%v", err)
	}
	if msg.Role == types.RoleUser && strings.TrimSpace(msg.Content) == "" {
		return fault.InvalidArgument("user message has no content")
	}
	c.messages = append(c.messages, msg)
	return nil
}

// Messages returns a copy of the log in append order.
func (c *Conversation) Messages() []types.Message {
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports the number of messages including the system message.
func (c *Conversation) Len() int { return len(c.messages) }

// Clear drops everything except the system message.
func (c *Conversation) Clear() {
	if len(c.messages) > 0 && c.messages[0].Role == types.RoleSystem {
		c.messages = c.messages[:1]
		return
	}
	c.messages = nil
}

// Restore replaces the log wholesale, validating every entry. Used when
// resuming a saved session.
func (c *Conversation) Restore(msgs []types.Message) error {
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return fault.InvalidArgument("message %d: %v", i, err)
		}
	}
	c.messages = make([]types.Message, len(msgs))
	copy(c.messages, msgs)
	return nil
}

// Compact enforces the window policy once the log exceeds its bound.
// Summarization failures fall back to FIFO dropping; Compact never
// fails the turn.
func (c *Conversation) Compact(ctx context.Context) {
	if len(c.messages) <= c.cfg.MaxMessages {
		return
	}
	if c.cfg.Summarize && c.summarizer != nil {
		if err := c.summarizeOldest(ctx); err != nil {
			L_warn("conversation: summarization failed, dropping oldest", "error", err)
		} else {
			return
		}
	}
	c.dropOldest()
}

// summarizeOldest replaces the oldest non-recent messages with a single
// user-role summary message, keeping the system message and the last
// KeepRecent entries. An existing summary grows an additional-context
// section instead of a second summary message.
func (c *Conversation) summarizeOldest(ctx context.Context) error {
	head := 0
	if len(c.messages) > 0 && c.messages[0].Role == types.RoleSystem {
		head = 1
	}

	prior := ""
	if head < len(c.messages) && isSummaryMessage(c.messages[head]) {
		prior = c.messages[head].Content
		head++
	}

	cut := len(c.messages) - c.cfg.KeepRecent
	// Tool replies must stay with the assistant message that called
	// them; orphans at the window edge get summarized instead.
	for cut < len(c.messages) && c.messages[cut].Role == types.RoleTool {
		cut++
	}
	if cut <= head {
		return fault.InvalidArgument("window too small to summarize")
	}
	old := c.messages[head:cut]

	summary, err := c.summarize(ctx, old)
	if err != nil {
		return err
	}

	content := summaryHeader + "\n" + summary
	if prior != "" {
		content = prior + "\n\n" + additionalHeader + "\n" + summary
	}

	kept := make([]types.Message, 0, 2+len(c.messages)-cut)
	if len(c.messages) > 0 && c.messages[0].Role == types.RoleSystem {
		kept = append(kept, c.messages[0])
	}
	kept = append(kept, types.UserMessage(content))
	kept = append(kept, c.messages[cut:]...)

	L_info("conversation: compacted",
		"summarized", len(old), "before", len(c.messages), "after", len(kept))
	c.messages = kept
	return nil
}

func (c *Conversation) summarize(ctx context.Context, old []types.Message) (string, error) {
	resp, err := c.summarizer.Complete(ctx, llm.Request{Messages: []types.Message{
		types.SystemMessage(summaryInstruction),
		types.UserMessage(transcript(old)),
	}})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(llm.StripThinkTags(resp.Text()))
	if summary == "" {
		return "", fault.InvalidResponse("summarizer returned empty output")
	}
	return summary, nil
}

// dropOldest removes messages after the system message until the log
// fits, then sweeps any tool replies left without their caller.
func (c *Conversation) dropOldest() {
	head := 0
	if len(c.messages) > 0 && c.messages[0].Role == types.RoleSystem {
		head = 1
	}
	dropped := 0
	for len(c.messages) > c.cfg.MaxMessages && len(c.messages) > head {
		c.messages = append(c.messages[:head], c.messages[head+1:]...)
		dropped++
	}
	for len(c.messages) > head && c.messages[head].Role == types.RoleTool {
		c.messages = append(c.messages[:head], c.messages[head+1:]...)
		dropped++
	}
	if dropped > 0 {
		L_info("conversation: dropped oldest", "count", dropped, "len", len(c.messages))
	}
}

func isSummaryMessage(m types.Message) bool {
	return m.Role == types.RoleUser && strings.HasPrefix(m.Content, summaryHeader)
}

// transcript renders messages as role-prefixed lines for the summary
// prompt, bounding each line.
func transcript(msgs []types.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		content := m.Content
		if content == "" && len(m.ToolCalls) > 0 {
			names := make([]string, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				names[i] = tc.Name
			}
			content = "(called tools: " + strings.Join(names, ", ") + ")"
		}
		if len(content) > summaryLineMax {
			content = content[:summaryLineMax] + "..."
		}
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, content)
	}
	return sb.String()
}
