package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	. "github.com/ruzivolabs/ruzivo/internal/logging"
	"github.com/ruzivolabs/ruzivo/internal/progress"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

// maxResultChars caps the output of non-specialist tools before it is
// handed back to the model.
const maxResultChars = 10000

// argRepair moves a misnamed argument onto the canonical key.
type argRepair struct{ from, to string }

// repairs lists, per tool, the argument names models commonly invent.
// Repair never overwrites a canonical key that is already present.
var repairs = map[string][]argRepair{
	"read_file":           {{"file", "path"}, {"filename", "path"}, {"task", "path"}},
	"write_file":          {{"file", "path"}, {"filename", "path"}, {"task", "path"}},
	"edit_file":           {{"file", "path"}, {"filename", "path"}, {"task", "path"}},
	"make_directory":      {{"file", "path"}, {"filename", "path"}, {"task", "path"}},
	"list_files":          {{"file", "path"}, {"filename", "path"}, {"task", "path"}},
	"run_shell":           {{"task", "command"}, {"code", "command"}, {"cmd", "command"}},
	"web_search":          {{"q", "query"}, {"search", "query"}, {"task", "query"}},
	"academic_search":     {{"q", "query"}, {"search", "query"}, {"task", "query"}},
	"use_reasoning_model": {{"prompt", "task"}, {"query", "task"}, {"question", "task"}},
	"use_search_model":    {{"prompt", "task"}, {"query", "task"}, {"question", "task"}},
	"use_coding_agent":    {{"prompt", "task"}, {"query", "task"}, {"question", "task"}},
	"use_nehanda":         {{"prompt", "task"}, {"query", "task"}, {"question", "task"}},
	"use_intent_detector": {{"prompt", "task"}, {"query", "task"}, {"question", "task"}},
	"generate_image":      {{"task", "prompt"}, {"query", "prompt"}, {"description", "prompt"}},
	"analyze_image":       {{"file", "path"}, {"image", "path"}, {"filename", "path"}},
}

// specialistTools produce model-generated text for the user and are
// never truncated.
var specialistTools = map[string]bool{
	"use_coding_agent":    true,
	"use_reasoning_model": true,
	"use_search_model":    true,
	"use_intent_detector": true,
	"use_nehanda":         true,
	"generate_image":      true,
	"analyze_image":       true,
}

// IsSpecialist reports whether name is a specialist model caller.
func IsSpecialist(name string) bool {
	return specialistTools[name]
}

// Dispatcher wraps registry execution with the call contracts: argument
// repair, read-before-edit enforcement, result truncation, and lifecycle
// events on the progress bus.
type Dispatcher struct {
	reg     *Registry
	session *Session
	bus     *progress.Bus
}

// NewDispatcher wires a dispatcher over a registry, a file session, and
// an optional progress bus.
func NewDispatcher(reg *Registry, session *Session, bus *progress.Bus) *Dispatcher {
	return &Dispatcher{reg: reg, session: session, bus: bus}
}

// Registry exposes the underlying registry for schema listing.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Session exposes the shared file session.
func (d *Dispatcher) Session() *Session { return d.session }

// CallTool parses a model-emitted tool call and dispatches it. Empty
// argument text is treated as an empty object.
func (d *Dispatcher) CallTool(ctx context.Context, call types.ToolCall, parentID string) (string, error) {
	args := map[string]any{}
	raw := strings.TrimSpace(call.Arguments)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return "", fault.InvalidArgument("tool %s: arguments are not valid JSON", call.Name).
				WithHint("emit arguments as a single JSON object")
		}
	}
	return d.Call(ctx, call.Name, args, parentID)
}

// Call runs one tool through the full contract pipeline.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any, parentID string) (string, error) {
	tool, canonical, err := d.reg.Resolve(name)
	if err != nil {
		return "", err
	}

	args = repairArgs(canonical, args)

	if canonical == "edit_file" {
		if err := d.requireReadFirst(args); err != nil {
			return "", err
		}
	}

	input, err := json.Marshal(args)
	if err != nil {
		return "", fault.InvalidArgument("tool %s: cannot encode arguments", canonical)
	}

	start := progress.NewEvent(progress.ToolStart, canonical, progress.NewNodeID(), parentID)
	start.Metadata["tool"] = canonical
	d.emit(start)

	L_debug("tools: dispatch", "tool", canonical, "args", len(args))
	result, err := tool.Execute(ctx, input)
	if err != nil {
		fail := progress.NewEvent(progress.ToolError, err.Error(), progress.NewNodeID(), parentID)
		fail.Metadata["tool"] = canonical
		fail.Metadata["success"] = false
		d.emit(fail)
		L_warn("tools: tool failed", "tool", canonical, "error", err)
		return "", err
	}

	done := progress.NewEvent(progress.ToolComplete, canonical, progress.NewNodeID(), parentID)
	done.Metadata["tool"] = canonical
	done.Metadata["result_size"] = len(result)
	done.Metadata["success"] = true
	d.emit(done)

	if !specialistTools[canonical] {
		result = truncateResult(result, maxResultChars)
	}
	return result, nil
}

func (d *Dispatcher) emit(ev progress.Event) {
	if d.bus != nil {
		d.bus.Emit(ev)
	}
}

// requireReadFirst rejects edits to files the session has not read yet.
func (d *Dispatcher) requireReadFirst(args map[string]any) error {
	path, _ := args["path"].(string)
	if path == "" {
		return nil // the tool reports the missing argument itself
	}
	abs, err := d.session.Resolve(path)
	if err != nil {
		return err
	}
	if !d.session.WasRead(abs) {
		return fault.InvalidArgument("cannot edit %s: read the file first", path).
			WithHint("call read_file on it, then retry the edit")
	}
	return nil
}

func repairArgs(tool string, args map[string]any) map[string]any {
	table, ok := repairs[tool]
	if !ok || len(args) == 0 {
		return args
	}
	for _, r := range table {
		val, present := args[r.from]
		if !present {
			continue
		}
		if _, taken := args[r.to]; taken {
			continue
		}
		args[r.to] = val
		delete(args, r.from)
		L_debug("tools: repaired argument", "tool", tool, "from", r.from, "to", r.to)
	}
	return args
}

// truncateResult keeps the first max characters and appends a marker
// naming what was cut.
func truncateResult(result string, max int) string {
	if len(result) <= max {
		return result
	}
	marker := fmt.Sprintf("[Result truncated: showing first %d of %d characters]", max, len(result))
	return result[:max] + marker
}
