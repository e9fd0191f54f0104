package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/ruzivolabs/ruzivo/internal/fault"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// ReadFileTool reads a file inside the session jail and records the read
// so the file becomes editable.
type ReadFileTool struct {
	session *Session
}

func NewReadFileTool(session *Session) *ReadFileTool {
	return &ReadFileTool{session: session}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read a file from the user's home directory. Reading a file is required before editing it."
}

func (t *ReadFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, absolute or relative to the working directory.",
			},
			"line_numbers": map[string]any{
				"type":        "boolean",
				"description": "Optional: prefix each line with its 1-indexed number.",
			},
		},
		"required": []string{"path"},
	}
}

type readFileInput struct {
	Path        string `json:"path"`
	LineNumbers bool   `json:"line_numbers,omitempty"`
}

func (t *ReadFileTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params readFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("read_file: invalid input: %v", err)
	}

	content, resolved, err := t.session.ReadFile(params.Path)
	if err != nil {
		return "", err
	}
	t.session.MarkRead(resolved)

	text := string(content)
	L_info("read_file: file read", "path", params.Path, "bytes", len(text))
	if params.LineNumbers {
		return numberLines(text), nil
	}
	return text, nil
}

// numberLines prefixes each line with its 1-indexed number.
func numberLines(text string) string {
	lines := strings.Split(text, "\n")
	var sb strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&sb, "%6d\t%s", i+1, line)
		if i < len(lines)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// WriteFileTool creates or overwrites a file inside the session jail.
type WriteFileTool struct {
	session *Session
}

func NewWriteFileTool(session *Session) *WriteFileTool {
	return &WriteFileTool{session: session}
}

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Create or overwrite a file with the given content. Parent directories are created as needed."
}

func (t *WriteFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, absolute or relative to the working directory.",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "Full file content to write.",
			},
		},
		"required": []string{"path", "content"},
	}
}

type writeFileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteFileTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params writeFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("write_file: invalid input: %v", err)
	}

	resolved, err := t.session.WriteFile(params.Path, []byte(params.Content))
	if err != nil {
		return "", err
	}
	L_info("write_file: file written", "path", resolved, "bytes", len(params.Content))
	return fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.Path), nil
}

// EditFileTool replaces an exact string match in a file. The dispatcher
// rejects edits to files the session has not read.
type EditFileTool struct {
	session *Session
}

func NewEditFileTool(session *Session) *EditFileTool {
	return &EditFileTool{session: session}
}

func (t *EditFileTool) Name() string { return "edit_file" }

func (t *EditFileTool) Description() string {
	return "Replace an exact occurrence of old_string with new_string in a file. The match must be unique unless replace_all is set."
}

func (t *EditFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path, absolute or relative to the working directory.",
			},
			"old_string": map[string]any{
				"type":        "string",
				"description": "Exact text to replace, including whitespace.",
			},
			"new_string": map[string]any{
				"type":        "string",
				"description": "Replacement text.",
			},
			"replace_all": map[string]any{
				"type":        "boolean",
				"description": "Optional: replace every occurrence instead of requiring a unique match.",
			},
		},
		"required": []string{"path", "old_string", "new_string"},
	}
}

type editFileInput struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

func (t *EditFileTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params editFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("edit_file: invalid input: %v", err)
	}
	if params.OldString == "" {
		return "", fault.InvalidArgument("edit_file: old_string is required")
	}
	if params.OldString == params.NewString {
		return "", fault.InvalidArgument("edit_file: old_string and new_string are identical")
	}

	raw, resolved, err := t.session.ReadFile(params.Path)
	if err != nil {
		return "", err
	}
	content := string(raw)

	count := strings.Count(content, params.OldString)
	switch {
	case count == 0:
		if snippet, ok := nearestRegion(content, params.OldString); ok {
			return "", fault.InvalidArgument("edit_file: old_string not found exactly in %s; closest region:\n%s", params.Path, snippet).
				WithHint("match the file text exactly, including whitespace and indentation")
		}
		return "", fault.InvalidArgument("edit_file: old_string not found in %s", params.Path).
			WithHint("read the file again and copy the text to replace verbatim")
	case count > 1 && !params.ReplaceAll:
		return "", fault.InvalidArgument("edit_file: old_string occurs %d times in %s (lines %s)", count, params.Path, joinInts(occurrenceLines(content, params.OldString))).
			WithHint("set replace_all to true, or include surrounding context to make the match unique")
	}

	replacements := 1
	if params.ReplaceAll {
		content = strings.ReplaceAll(content, params.OldString, params.NewString)
		replacements = count
	} else {
		content = strings.Replace(content, params.OldString, params.NewString, 1)
	}

	if _, err := t.session.WriteFile(params.Path, []byte(content)); err != nil {
		return "", err
	}
	L_info("edit_file: file edited", "path", resolved, "replacements", replacements)
	if replacements == 1 {
		return fmt.Sprintf("Edited %s (1 replacement)", params.Path), nil
	}
	return fmt.Sprintf("Edited %s (%d replacements)", params.Path, replacements), nil
}

// nearestRegion looks for old after collapsing whitespace runs in both
// strings, and returns the surrounding lines of the closest match.
func nearestRegion(content, old string) (string, bool) {
	normContent, offsets := collapseSpace(content)
	normOld, _ := collapseSpace(old)
	normOld = strings.TrimSpace(normOld)
	if normOld == "" {
		return "", false
	}
	idx := strings.Index(normContent, normOld)
	if idx < 0 || idx >= len(offsets) {
		return "", false
	}
	return surroundingLines(content, offsets[idx], 3), true
}

// collapseSpace replaces each whitespace run with a single space and
// returns, per normalized byte, the byte offset it came from.
func collapseSpace(s string) (string, []int) {
	var sb strings.Builder
	offsets := make([]int, 0, len(s))
	inSpace := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				sb.WriteByte(' ')
				offsets = append(offsets, i)
				inSpace = true
			}
			continue
		}
		inSpace = false
		before := sb.Len()
		sb.WriteRune(r)
		for ; before < sb.Len(); before++ {
			offsets = append(offsets, i)
		}
	}
	return sb.String(), offsets
}

// surroundingLines returns the line containing the byte offset plus
// context lines on each side.
func surroundingLines(content string, offset, context int) string {
	if offset > len(content) {
		offset = len(content)
	}
	lines := strings.Split(content, "\n")
	line := strings.Count(content[:offset], "\n")
	start := line - context
	if start < 0 {
		start = 0
	}
	end := line + context + 1
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

// occurrenceLines returns the 1-indexed line numbers of each
// non-overlapping occurrence of old in content.
func occurrenceLines(content, old string) []int {
	var lines []int
	offset := 0
	for {
		idx := strings.Index(content[offset:], old)
		if idx < 0 {
			break
		}
		abs := offset + idx
		lines = append(lines, 1+strings.Count(content[:abs], "\n"))
		offset = abs + len(old)
	}
	return lines
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// MakeDirectoryTool creates a directory and any missing parents.
type MakeDirectoryTool struct {
	session *Session
}

func NewMakeDirectoryTool(session *Session) *MakeDirectoryTool {
	return &MakeDirectoryTool{session: session}
}

func (t *MakeDirectoryTool) Name() string { return "make_directory" }

func (t *MakeDirectoryTool) Description() string {
	return "Create a directory, including any missing parent directories."
}

func (t *MakeDirectoryTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory path, absolute or relative to the working directory.",
			},
		},
		"required": []string{"path"},
	}
}

type makeDirectoryInput struct {
	Path string `json:"path"`
}

func (t *MakeDirectoryTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params makeDirectoryInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("make_directory: invalid input: %v", err)
	}

	resolved, err := t.session.Resolve(params.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(resolved, 0755); err != nil {
		return "", fmt.Errorf("make_directory %s: %w", params.Path, err)
	}
	L_info("make_directory: created", "path", resolved)
	return fmt.Sprintf("Created directory %s", params.Path), nil
}

// ListFilesTool lists a directory inside the session jail.
type ListFilesTool struct {
	session *Session
}

func NewListFilesTool(session *Session) *ListFilesTool {
	return &ListFilesTool{session: session}
}

func (t *ListFilesTool) Name() string { return "list_files" }

func (t *ListFilesTool) Description() string {
	return "List the entries of a directory. Directories are marked with a trailing slash."
}

func (t *ListFilesTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Optional: directory to list. Defaults to the working directory.",
			},
		},
	}
}

type listFilesInput struct {
	Path string `json:"path,omitempty"`
}

func (t *ListFilesTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params listFilesInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("list_files: invalid input: %v", err)
	}

	target := params.Path
	if strings.TrimSpace(target) == "" {
		target = t.session.Cwd()
	}
	resolved, err := t.session.Resolve(target)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("list_files %s: %w", target, err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("%s is empty", resolved), nil
	}

	var sb strings.Builder
	for _, entry := range entries {
		sb.WriteString(entry.Name())
		if entry.IsDir() {
			sb.WriteByte('/')
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// PwdTool reports the session working directory.
type PwdTool struct {
	session *Session
}

func NewPwdTool(session *Session) *PwdTool {
	return &PwdTool{session: session}
}

func (t *PwdTool) Name() string { return "pwd" }

func (t *PwdTool) Description() string {
	return "Print the current working directory."
}

func (t *PwdTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *PwdTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return t.session.Cwd(), nil
}
