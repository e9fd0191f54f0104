package turn

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/tools"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const codeEditMaxTries = 3

const codeEditSystem = "You are an expert software engineer performing a surgical file edit. " +
	"You reply with exactly two labelled fenced code blocks, OLD_CODE and NEW_CODE, and nothing else. " +
	"OLD_CODE must be copied verbatim from the file."

// codeEditor drives model-proposed edits through the dispatcher, so the
// read marking, jail checks, and progress events all apply.
type codeEditor struct {
	dispatcher *tools.Dispatcher
	providers  tools.Providers
}

// Edit reads the file, asks the coding role for an OLD_CODE/NEW_CODE
// pair, and applies it with edit_file. Any failure rebuilds the prompt
// with the error quoted and retries, up to three attempts.
func (e *codeEditor) Edit(ctx context.Context, path, instruction, parentID string) (string, error) {
	numbered, err := e.dispatcher.Call(ctx, "read_file",
		map[string]any{"path": path, "line_numbers": true}, parentID)
	if err != nil {
		return "", err
	}
	raw, _, err := e.dispatcher.Session().ReadFile(path)
	if err != nil {
		return "", err
	}

	provider, err := e.providers.ForRole(config.RoleCodestral)
	if err != nil {
		return "", err
	}

	lastErr := ""
	for try := 1; try <= codeEditMaxTries; try++ {
		resp, err := provider.Complete(ctx, llm.Request{Messages: []types.Message{
			types.SystemMessage(codeEditSystem),
			types.UserMessage(editPrompt(path, numbered, instruction, lastErr)),
		}})
		if err != nil {
			return "", err
		}
		reply := llm.StripThinkTags(resp.Text())

		oldCode, newCode, perr := parseEditBlocks(reply)
		if perr != nil {
			lastErr = perr.Error()
			L_warn("codeedit: bad reply", "try", try, "error", perr)
			continue
		}
		if !strings.Contains(string(raw), oldCode) {
			lastErr = "OLD_CODE is not an exact substring of the file"
			L_warn("codeedit: old code mismatch", "try", try)
			continue
		}

		result, err := e.dispatcher.Call(ctx, "edit_file", map[string]any{
			"path":       path,
			"old_string": oldCode,
			"new_string": newCode,
		}, parentID)
		if err != nil {
			lastErr = err.Error()
			L_warn("codeedit: edit_file failed", "try", try, "error", err)
			continue
		}
		L_info("codeedit: applied", "path", path, "tries", try)
		return result, nil
	}
	return "", fault.InvalidResponse("could not apply the edit after %d attempts: %s", codeEditMaxTries, lastErr).
		WithHint("rephrase the instruction or edit the file directly with edit_file")
}

func editPrompt(path, numbered, instruction, lastErr string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Edit %s according to this instruction: %s\n\n", path, instruction)
	sb.WriteString("Current contents, with line numbers for reference only:\n\n")
	sb.WriteString(numbered)
	sb.WriteString("\n\nReply with exactly two labelled fenced blocks and nothing else:\n\n")
	sb.WriteString("OLD_CODE:\n```\n<the exact lines to replace, copied verbatim from the file>\n```\n\n")
	sb.WriteString("NEW_CODE:\n```\n<the replacement lines>\n```\n\n")
	sb.WriteString("Do not include line numbers in either block.")
	if lastErr != "" {
		fmt.Fprintf(&sb, "\n\nYour previous attempt failed: %s\nCopy OLD_CODE exactly as it appears in the file, without line numbers.", lastErr)
	}
	return sb.String()
}

// parseEditBlocks pulls the OLD_CODE and NEW_CODE fenced blocks out of
// a model reply.
func parseEditBlocks(reply string) (oldCode, newCode string, err error) {
	oldIdx := strings.Index(reply, "OLD_CODE")
	newIdx := strings.LastIndex(reply, "NEW_CODE")
	if oldIdx < 0 || newIdx < 0 || newIdx < oldIdx {
		return "", "", fault.InvalidResponse("reply must contain an OLD_CODE block followed by a NEW_CODE block")
	}
	oldCode, err = fencedBlock(reply[oldIdx:newIdx], "OLD_CODE")
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(oldCode) == "" {
		return "", "", fault.InvalidResponse("the OLD_CODE block is empty")
	}
	newCode, err = fencedBlock(reply[newIdx:], "NEW_CODE")
	if err != nil {
		return "", "", err
	}
	return oldCode, newCode, nil
}

// fencedBlock extracts the first fenced code block in s, skipping any
// language tag on the opening fence.
func fencedBlock(s, label string) (string, error) {
	open := strings.Index(s, "```")
	if open < 0 {
		return "", fault.InvalidResponse("%s is not followed by a fenced code block", label)
	}
	rest := s[open+3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", fault.InvalidResponse("the %s block is never closed", label)
	}
	block := rest[:end]
	if nl := strings.IndexByte(block, '\n'); nl >= 0 {
		// Drop the opening fence line when it is empty or a language tag.
		if langTagRe.MatchString(strings.TrimSpace(block[:nl])) {
			block = block[nl+1:]
		}
	}
	return strings.TrimSuffix(block, "\n"), nil
}

var langTagRe = regexp.MustCompile(`^[A-Za-z0-9_+#-]*$`)
