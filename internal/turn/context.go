package turn

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const (
	// contextCapSearch bounds injected search output; other tools get
	// the smaller cap.
	contextCapSearch  = 10000
	contextCapDefault = 2000

	// assistantScanDepth limits the resume-time fallback scan.
	assistantScanDepth = 5
)

// referenceRe matches back-references that cannot stand alone as a tool
// argument.
var referenceRe = regexp.MustCompile(`(?i)\b(this (topic|one|article|result|plan|code)|that (topic|one|article|result)|the (above|plan|previous one|last one)|above|aforementioned|as discussed)\b`)

// vagueRe matches inputs that are pure continuation with no content of
// their own.
var vagueRe = regexp.MustCompile(`(?i)^\s*(more|continue|again|expand|elaborate|go on|tell me more|details?|and then\??|why\??|how so\??)\s*$`)

// needsReferent reports whether an argument leans on earlier turns.
func needsReferent(arg string) bool {
	return referenceRe.MatchString(arg) || vagueRe.MatchString(arg)
}

// toolOutput is one tracked tool result, kept for context injection.
type toolOutput struct {
	tool   string
	output string
}

// tracker remembers recent tool outputs within a session. Owned by one
// processor, like the conversation.
type tracker struct {
	outputs []toolOutput
	max     int
}

func newTracker(max int) *tracker {
	if max <= 0 {
		max = 20
	}
	return &tracker{max: max}
}

func (t *tracker) record(tool, output string) {
	if strings.TrimSpace(output) == "" {
		return
	}
	t.outputs = append(t.outputs, toolOutput{tool: tool, output: output})
	if len(t.outputs) > t.max {
		t.outputs = t.outputs[len(t.outputs)-t.max:]
	}
}

func (t *tracker) empty() bool { return len(t.outputs) == 0 }

// lastSpecialist returns the newest tracked specialist output.
func (t *tracker) lastSpecialist(isSpecialist func(string) bool) string {
	for i := len(t.outputs) - 1; i >= 0; i-- {
		if isSpecialist(t.outputs[i].tool) {
			return t.outputs[i].output
		}
	}
	return ""
}

// last returns up to n most recent outputs in chronological order.
func (t *tracker) last(n int) []toolOutput {
	if n <= 0 || len(t.outputs) == 0 {
		return nil
	}
	if n > len(t.outputs) {
		n = len(t.outputs)
	}
	out := make([]toolOutput, n)
	copy(out, t.outputs[len(t.outputs)-n:])
	return out
}

// resolveQueryReference substitutes a back-referencing search query with
// the most recent substantive user message. The current input sits at
// the end of the log and is skipped.
func resolveQueryReference(query string, msgs []types.Message) string {
	if !needsReferent(query) {
		return query
	}
	for i := len(msgs) - 2; i >= 0; i-- {
		m := msgs[i]
		if m.Role != types.RoleUser || isSummaryMessage(m) {
			continue
		}
		if substantive(m.Content) {
			L_debug("turn: resolved query reference", "query", query, "resolved", m.Content)
			return m.Content
		}
	}
	L_warn("turn: query references earlier turns but none are substantive", "query", query)
	return query
}

// resolveTaskReference attaches the last specialist output to a
// back-referencing specialist task.
func resolveTaskReference(task, lastSpecialist string) string {
	if !needsReferent(task) {
		return task
	}
	if lastSpecialist == "" {
		L_warn("turn: task references earlier output but none is tracked", "task", task)
		return task
	}
	return task + "\n\n" + lastSpecialist
}

// substantive reports whether a user message can serve as a referent.
func substantive(s string) bool {
	s = strings.TrimSpace(s)
	return len(strings.Fields(s)) >= 3 && !needsReferent(s)
}

// injectContext prepends recent tool outputs to a specialist task under
// per-tool headers. Outputs already present in the task are skipped.
func injectContext(task string, recent []toolOutput) string {
	var blocks []string
	for _, r := range recent {
		if r.output == "" || strings.Contains(task, r.output) {
			continue
		}
		max := contextCapDefault
		if r.tool == "web_search" || r.tool == "academic_search" {
			max = contextCapSearch
		}
		out := r.output
		if len(out) > max {
			out = out[:max] + "..."
		}
		blocks = append(blocks, fmt.Sprintf("[Previous %s output]:\n%s", r.tool, out))
	}
	if len(blocks) == 0 {
		return task
	}
	return strings.Join(blocks, "\n\n") + "\n\n" + task
}

// scanAssistantOutputs is the resume-time fallback: with nothing
// tracked, the newest assistant message that looks like a tool result
// serves as context.
func scanAssistantOutputs(msgs []types.Message) (toolOutput, bool) {
	seen := 0
	for i := len(msgs) - 1; i >= 0 && seen < assistantScanDepth; i-- {
		if msgs[i].Role != types.RoleAssistant {
			continue
		}
		seen++
		if tool, ok := toolMarker(msgs[i].Content); ok {
			return toolOutput{tool: tool, output: msgs[i].Content}, true
		}
	}
	return toolOutput{}, false
}

// toolMarker recognizes assistant content produced by a tool or
// workflow and names its source.
func toolMarker(content string) (string, bool) {
	switch {
	case strings.Contains(content, "academic results for"):
		return "academic_search", true
	case strings.Contains(content, "## Sources:"),
		strings.Contains(content, "[Web]"),
		strings.Contains(content, "[Newsroom]"),
		strings.HasPrefix(content, "Found "):
		return "web_search", true
	case strings.Contains(content, "```"):
		return "use_coding_agent", true
	}
	return "", false
}
