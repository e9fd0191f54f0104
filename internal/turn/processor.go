package turn

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/progress"
	"github.com/ruzivolabs/ruzivo/internal/router"
	"github.com/ruzivolabs/ruzivo/internal/search"
	"github.com/ruzivolabs/ruzivo/internal/tools"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Runner is a workflow entry point. *workflow.Research and
// *workflow.DeepResearch both satisfy it.
type Runner interface {
	Run(ctx context.Context, query string) (string, error)
}

// DigestRunner builds periodic digests. *workflow.Digest satisfies it.
type DigestRunner interface {
	Run(ctx context.Context, days int, topic string) (string, error)
}

// IntentRouter is the optional LLM fallback for file operations the
// deterministic rules cannot decompose. *tools.IntentDetectorTool
// satisfies it.
type IntentRouter interface {
	DetectIntent(ctx context.Context, input string) tools.Intent
}

// Options wires the processor's collaborators. Snapshot follows the
// config watcher; nil fields disable their workflow.
type Options struct {
	Snapshot   func() *config.Config
	Dispatcher *tools.Dispatcher
	Providers  tools.Providers
	Intent     IntentRouter
	Research   Runner
	Deep       Runner
	Digest     DigestRunner
	Cache      *search.Cache
	Bus        *progress.Bus
}

// Processor executes turns: append the user message, route, run the
// workflow, append the answer, compact. One processor per session.
type Processor struct {
	conv    *Conversation
	opts    Options
	editor  *codeEditor
	tracker *tracker
}

func NewProcessor(conv *Conversation, opts Options) *Processor {
	return &Processor{
		conv:    conv,
		opts:    opts,
		editor:  &codeEditor{dispatcher: opts.Dispatcher, providers: opts.Providers},
		tracker: newTracker(0),
	}
}

// Conversation exposes the log for the REPL (history, save, resume).
func (p *Processor) Conversation() *Conversation { return p.conv }

// Clear resets the log to its system message and forgets tracked tool
// outputs.
func (p *Processor) Clear() {
	p.conv.Clear()
	p.tracker.outputs = nil
}

// Process runs one full turn and returns the answer with elapsed
// seconds. The log gains exactly one user and one assistant message
// whether the workflow succeeds or fails. Empty input is refused
// before anything is logged.
func (p *Processor) Process(ctx context.Context, input string, forced router.Workflow) (string, float64, error) {
	start := time.Now()
	input = strings.TrimSpace(input)
	if input == "" {
		return "", 0, fault.InvalidArgument("empty input").
			WithHint("type a question, or add arguments after the slash command")
	}
	if err := p.conv.Append(types.UserMessage(input)); err != nil {
		return "", 0, err
	}

	decision := router.Decision{Workflow: forced, Confidence: 1.0, Reason: "forced"}
	if forced == "" {
		decision = router.Route(input)
	}
	L_info("turn: routed", "workflow", decision.Workflow, "reason", decision.Reason)

	text, err := p.execute(ctx, decision, input)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		_ = p.conv.Append(types.AssistantMessage("I could not finish that: " + userText(err)))
		p.conv.Compact(ctx)
		return "", elapsed, err
	}

	if err := p.conv.Append(types.AssistantMessage(text)); err != nil {
		return "", elapsed, err
	}
	p.conv.Compact(ctx)
	return text, elapsed, nil
}

func (p *Processor) execute(ctx context.Context, d router.Decision, input string) (string, error) {
	switch d.Workflow {
	case router.WorkflowResearch:
		return p.research(ctx, input, p.opts.Research, true)
	case router.WorkflowDeep:
		return p.research(ctx, input, p.opts.Deep, false)
	case router.WorkflowAcademic:
		return p.academic(ctx, input)
	case router.WorkflowCode, router.WorkflowDevelop:
		return p.code(ctx, input)
	case router.WorkflowFileOp:
		return p.fileOp(ctx, input, d.Reason)
	case router.WorkflowQA:
		return p.specialist(ctx, "use_reasoning_model", input)
	case router.WorkflowEnergy:
		return p.specialist(ctx, "use_nehanda", input)
	case router.WorkflowImage:
		return p.specialist(ctx, "generate_image", input)
	case router.WorkflowVision:
		return p.vision(ctx, input)
	case router.WorkflowDigest:
		return p.digest(ctx, input)
	case router.WorkflowDataAnalysis, router.WorkflowCrossDomain:
		return "", fault.InvalidArgument("the %s workflow needs the analysis sandbox, which is not connected in this build", d.Workflow).
			WithHint("use /search, /ask, or /code instead")
	}
	return "", fault.InvalidArgument("unknown workflow %q", d.Workflow)
}

// research resolves back-references, optimizes the query, and consults
// the answer cache before running the pipeline. Deep research skips the
// cache so every run lands in the store.
func (p *Processor) research(ctx context.Context, input string, runner Runner, cacheable bool) (string, error) {
	if runner == nil {
		return "", fault.Config("the research workflow is not configured").
			WithHint("set a search endpoint or newsroom credentials in the config")
	}
	query := resolveQueryReference(input, p.conv.Messages())

	cfg := p.config()
	intent := search.IntentGeneral
	if cfg.Search.OptimizeQueries {
		optimized, in, err := search.Optimize(query)
		if err != nil {
			return "", err
		}
		query, intent = optimized, in
	}

	useCache := cacheable && cfg.Search.CacheEnabled && p.opts.Cache != nil
	if useCache {
		if answer, ok := p.opts.Cache.Get(query, cfg.Search.MaxResults); ok {
			L_info("turn: answered from cache", "query", query)
			p.tracker.record("web_search", answer)
			return answer, nil
		}
	}

	answer, err := runner.Run(ctx, query)
	if err != nil {
		return "", err
	}
	if useCache {
		p.opts.Cache.Put(query, cfg.Search.MaxResults, intent, answer)
	}
	p.tracker.record("web_search", answer)
	return answer, nil
}

// academic runs the scholarly pipeline through the dispatcher, so
// paper lookups share the tool event stream.
func (p *Processor) academic(ctx context.Context, input string) (string, error) {
	query := resolveQueryReference(input, p.conv.Messages())
	rootID := p.startWorkflow("Academic search")
	out, err := p.opts.Dispatcher.Call(ctx, "academic_search",
		map[string]any{"query": query}, rootID)
	p.finishWorkflow(rootID, err)
	if err != nil {
		return "", err
	}
	p.tracker.record("academic_search", out)
	return out, nil
}

// code routes a coding request: a mentioned file that exists goes
// through the edit subroutine, anything else to the coding specialist.
func (p *Processor) code(ctx context.Context, input string) (string, error) {
	if path, ok := p.mentionedFile(input); ok {
		rootID := p.startWorkflow("Editing " + path)
		out, err := p.editor.Edit(ctx, path, input, rootID)
		p.finishWorkflow(rootID, err)
		if err != nil {
			return "", err
		}
		p.tracker.record("edit_file", out)
		return out, nil
	}
	return p.specialist(ctx, "use_coding_agent", input)
}

// specialist dispatches one specialist tool with reference resolution
// and context injection applied to its main parameter.
func (p *Processor) specialist(ctx context.Context, tool, task string) (string, error) {
	task = resolveTaskReference(task, p.tracker.lastSpecialist(tools.IsSpecialist))
	task = p.withContext(task)

	param := "task"
	if tool == "generate_image" {
		param = "prompt"
	}

	rootID := p.startWorkflow(workflowLabel(tool))
	out, err := p.opts.Dispatcher.Call(ctx, tool, map[string]any{param: task}, rootID)
	p.finishWorkflow(rootID, err)
	if err != nil {
		return "", err
	}
	p.tracker.record(tool, out)
	return out, nil
}

// vision answers a question about a local image.
func (p *Processor) vision(ctx context.Context, input string) (string, error) {
	path, ok := firstMatch(imageTokenRe, input)
	if !ok {
		return "", fault.InvalidArgument("no image file named in the request").
			WithHint(`name the image, e.g. "analyze chart.png"`)
	}
	rootID := p.startWorkflow("Analyzing " + path)
	out, err := p.opts.Dispatcher.Call(ctx, "analyze_image",
		map[string]any{"path": path, "question": input}, rootID)
	p.finishWorkflow(rootID, err)
	if err != nil {
		return "", err
	}
	p.tracker.record("analyze_image", out)
	return out, nil
}

// digest parses an optional leading day count from the request and
// hands the rest to the digest workflow as a topic filter.
func (p *Processor) digest(ctx context.Context, input string) (string, error) {
	if p.opts.Digest == nil {
		return "", fault.Config("the digest workflow is not configured").
			WithHint("set newsroom.url and NEWSROOM_JWT")
	}
	days := p.config().Digest.Days
	topic := strings.TrimSpace(input)
	if fields := strings.Fields(topic); len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil {
			days = n
			topic = strings.TrimSpace(strings.Join(fields[1:], " "))
		}
	}
	out, err := p.opts.Digest.Run(ctx, days, topic)
	if err != nil {
		return "", err
	}
	p.tracker.record("digest", out)
	return out, nil
}

// fileOp executes the specific file action the router matched. Rules it
// cannot decompose fall back to the intent detector, whose chosen tool
// receives the raw input and lets parameter repair map it.
func (p *Processor) fileOp(ctx context.Context, input, reason string) (string, error) {
	rootID := p.startWorkflow("File operation")
	tool, out, err := p.fileAction(ctx, input, reason, rootID)
	p.finishWorkflow(rootID, err)
	if err != nil {
		return "", err
	}
	p.tracker.record(tool, out)
	return out, nil
}

func (p *Processor) fileAction(ctx context.Context, input, reason, rootID string) (string, string, error) {
	d := p.opts.Dispatcher
	call := func(tool string, args map[string]any) (string, string, error) {
		out, err := d.Call(ctx, tool, args, rootID)
		return tool, out, err
	}

	switch reason {
	case "working directory":
		return call("pwd", nil)
	case "shell verb":
		return call("run_shell", map[string]any{"command": input})
	case "list files":
		return call("list_files", map[string]any{"path": pathArg(input)})
	case "make directory":
		if name := directoryName(input); name != "" {
			return call("make_directory", map[string]any{"path": name})
		}
	case "read file":
		if tok, ok := firstMatch(fileTokenRe, input); ok {
			return call("read_file", map[string]any{"path": tok})
		}
	case "edit file":
		if path, ok := p.mentionedFile(input); ok {
			out, err := p.editor.Edit(ctx, path, input, rootID)
			return "edit_file", out, err
		}
	case "tool name":
		if tool, out, handled, err := p.namedToolAction(ctx, input, rootID); handled {
			return tool, out, err
		}
	}
	return p.intentRoute(ctx, input, rootID)
}

// namedToolAction handles inputs that spell out a tool name, like
// "read_file nuclear.md" or "edit_file config.py old='X' new='Y'".
func (p *Processor) namedToolAction(ctx context.Context, input, rootID string) (tool, out string, handled bool, err error) {
	d := p.opts.Dispatcher
	tok, hasFile := firstMatch(fileTokenRe, input)

	switch {
	case strings.Contains(input, "read_file") && hasFile:
		out, err = d.Call(ctx, "read_file", map[string]any{"path": tok}, rootID)
		return "read_file", out, true, err
	case strings.Contains(input, "list_files"):
		out, err = d.Call(ctx, "list_files", map[string]any{"path": pathArg(input)}, rootID)
		return "list_files", out, true, err
	case strings.Contains(input, "make_directory"):
		if name := directoryName(input); name != "" {
			out, err = d.Call(ctx, "make_directory", map[string]any{"path": name}, rootID)
			return "make_directory", out, true, err
		}
	case strings.Contains(input, "run_shell"):
		cmd := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "run_shell"))
		out, err = d.Call(ctx, "run_shell", map[string]any{"command": cmd}, rootID)
		return "run_shell", out, true, err
	case strings.Contains(input, "edit_file") && hasFile:
		if m := editArgsRe.FindStringSubmatch(input); m != nil {
			out, err = d.Call(ctx, "edit_file", map[string]any{
				"path": tok, "old_string": m[1], "new_string": m[2],
			}, rootID)
			return "edit_file", out, true, err
		}
		out, err = p.editor.Edit(ctx, tok, input, rootID)
		return "edit_file", out, true, err
	}
	return "", "", false, nil
}

// intentRoute is the LLM fallback for file actions the rules cannot
// decompose. Low-confidence detections are refused rather than guessed.
func (p *Processor) intentRoute(ctx context.Context, input, rootID string) (string, string, error) {
	if p.opts.Intent == nil {
		return "", "", fault.InvalidArgument("could not work out which file operation you meant").
			WithHint(`name the action, e.g. "list files" or "read notes.md"`)
	}
	intent := p.opts.Intent.DetectIntent(ctx, input)
	if intent.Tool == "" || intent.Tool == "none" ||
		confidenceValue(intent.Confidence) < p.config().Router.ConfidenceThreshold {
		return "", "", fault.InvalidArgument("could not work out which file operation you meant (%s)", intent.Reasoning).
			WithHint(`name the action, e.g. "list files" or "read notes.md"`)
	}
	L_info("turn: intent fallback", "tool", intent.Tool, "confidence", intent.Confidence)
	out, err := p.opts.Dispatcher.Call(ctx, intent.Tool, map[string]any{"task": input}, rootID)
	return intent.Tool, out, err
}

// withContext prepends recent tool outputs to a specialist task; with
// nothing tracked, the newest tool-looking assistant message serves.
func (p *Processor) withContext(task string) string {
	max := p.config().Tools.MaxContextTools
	if max <= 0 {
		max = 3
	}
	recent := p.tracker.last(max)
	if len(recent) == 0 {
		if fallback, ok := scanAssistantOutputs(p.conv.Messages()); ok {
			recent = []toolOutput{fallback}
		}
	}
	return injectContext(task, recent)
}

// mentionedFile returns the first filename-looking token that resolves
// to an existing regular file inside the session jail.
func (p *Processor) mentionedFile(input string) (string, bool) {
	for _, tok := range fileTokenRe.FindAllString(input, -1) {
		abs, err := p.opts.Dispatcher.Session().Resolve(tok)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return tok, true
		}
	}
	return "", false
}

func (p *Processor) config() *config.Config {
	if p.opts.Snapshot != nil {
		if cfg := p.opts.Snapshot(); cfg != nil {
			return cfg
		}
	}
	return config.Default()
}

func (p *Processor) startWorkflow(label string) string {
	rootID := progress.NewNodeID()
	p.emit(progress.WorkflowStart, label, rootID, "")
	return rootID
}

func (p *Processor) finishWorkflow(rootID string, err error) {
	if err != nil {
		p.emit(progress.WorkflowComplete, "Failed: "+err.Error(), rootID, "")
		return
	}
	p.emit(progress.WorkflowComplete, "Done", rootID, "")
}

func (p *Processor) emit(t progress.EventType, msg, nodeID, parentID string) {
	if p.opts.Bus == nil {
		return
	}
	p.opts.Bus.Emit(progress.NewEvent(t, msg, nodeID, parentID))
}

var (
	fileTokenRe  = regexp.MustCompile(`[\w./~-]+\.(?:txt|md|py|go|js|ts|jsx|tsx|json|yaml|yml|toml|ini|cfg|conf|csv|tsv|log|sh|rs|java|c|h|cpp|hpp|rb|php|sql|html|css|xml)\b`)
	imageTokenRe = regexp.MustCompile(`[\w./~-]+\.(?:png|jpe?g|gif|webp)\b`)
	editArgsRe   = regexp.MustCompile(`old=['"](.*?)['"]\s+new=['"](.*?)['"]`)
	pathTokenRe  = regexp.MustCompile(`(?:^|\s)((?:~|\.{1,2})?/[\w./-]*|~[\w./-]*|[\w-]+/[\w./-]*)`)
	calledNameRe = regexp.MustCompile(`(?i)\b(?:called|named)\s+["']?([\w./-]+)["']?`)
)

func firstMatch(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindString(s)
	return m, m != ""
}

// pathArg pulls a directory-looking token out of a listing request;
// empty means the session working directory.
func pathArg(input string) string {
	if m := pathTokenRe.FindStringSubmatch(input); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// directoryName extracts the target of a make-directory request.
func directoryName(input string) string {
	if m := calledNameRe.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	if m := pathTokenRe.FindStringSubmatch(input); m != nil {
		return strings.TrimSpace(m[1])
	}
	fields := strings.Fields(input)
	if len(fields) >= 2 && strings.EqualFold(fields[0], "mkdir") {
		return fields[len(fields)-1]
	}
	return ""
}

func workflowLabel(tool string) string {
	switch tool {
	case "use_reasoning_model":
		return "Reasoning"
	case "use_nehanda":
		return "Nehanda"
	case "use_coding_agent":
		return "Coding"
	case "generate_image":
		return "Image generation"
	default:
		return tool
	}
}

// confidenceValue maps the detector's coarse levels onto the router
// threshold scale.
func confidenceValue(level string) float64 {
	switch level {
	case "high":
		return 1.0
	case "medium":
		return 0.6
	default:
		return 0.3
	}
}

func userText(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return fe.UserMessage()
	}
	return err.Error()
}
