package llm

import (
	"regexp"
	"strings"
)

var thinkTagRe = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)

// StripThinkTags removes reasoning-model scratchpad blocks
// (<think>...</think>) from a response. An unterminated open tag drops
// everything from the tag onward.
func StripThinkTags(s string) string {
	s = thinkTagRe.ReplaceAllString(s, "")
	for _, open := range []string{"<think>", "<thinking>"} {
		if idx := strings.Index(s, open); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// ExtractJSON returns the outermost JSON object in a model response,
// tolerating markdown code fences and prose around it.
func ExtractJSON(s string) (string, bool) {
	s = StripThinkTags(s)
	for _, fence := range []string{"```json", "```JSON", "```"} {
		if idx := strings.Index(s, fence); idx != -1 {
			s = s[idx+len(fence):]
			if end := strings.Index(s, "```"); end != -1 {
				s = s[:end]
			}
			break
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
