// Package router decides which workflow handles a user input. The
// decision tree is deterministic regex matching, checked in priority
// order: file operations first, then explicit code requests, then the
// research default. Slash commands bypass it entirely by forcing a
// workflow on the turn processor.
package router

import (
	"regexp"
	"strings"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Workflow names one of the fixed pipelines a turn can execute.
type Workflow string

const (
	WorkflowResearch     Workflow = "research"
	WorkflowDeep         Workflow = "deep"
	WorkflowAcademic     Workflow = "academic"
	WorkflowCode         Workflow = "code"
	WorkflowFileOp       Workflow = "file_op"
	WorkflowQA           Workflow = "qa"
	WorkflowEnergy       Workflow = "energy"
	WorkflowImage        Workflow = "image"
	WorkflowVision       Workflow = "vision"
	WorkflowDigest       Workflow = "digest"
	WorkflowDevelop      Workflow = "develop"
	WorkflowDataAnalysis Workflow = "data_analysis"
	WorkflowCrossDomain  Workflow = "cross_domain"
)

// ParseWorkflow maps a workflow name to its constant.
func ParseWorkflow(name string) (Workflow, bool) {
	switch Workflow(strings.ToLower(strings.TrimSpace(name))) {
	case WorkflowResearch:
		return WorkflowResearch, true
	case WorkflowDeep:
		return WorkflowDeep, true
	case WorkflowAcademic:
		return WorkflowAcademic, true
	case WorkflowCode:
		return WorkflowCode, true
	case WorkflowFileOp:
		return WorkflowFileOp, true
	case WorkflowQA:
		return WorkflowQA, true
	case WorkflowEnergy:
		return WorkflowEnergy, true
	case WorkflowImage:
		return WorkflowImage, true
	case WorkflowVision:
		return WorkflowVision, true
	case WorkflowDigest:
		return WorkflowDigest, true
	case WorkflowDevelop:
		return WorkflowDevelop, true
	case WorkflowDataAnalysis:
		return WorkflowDataAnalysis, true
	case WorkflowCrossDomain:
		return WorkflowCrossDomain, true
	}
	return "", false
}

// Decision is the routing outcome for one input. Confidence is always
// 1.0; the tree either matches a rule or falls through to research.
type Decision struct {
	Workflow   Workflow
	Confidence float64
	Reason     string
}

// fileExt matches a filename-looking token (notes.md, src/main.go).
const fileExt = `[\w./~-]+\.(txt|md|py|go|js|ts|jsx|tsx|json|yaml|yml|toml|ini|cfg|conf|csv|tsv|log|sh|rs|java|c|h|cpp|hpp|rb|php|sql|html|css|xml)\b`

var fileOpRules = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)\b(read_file|write_file|edit_file|list_files|make_directory|run_shell)\b`), "tool name"},
	{regexp.MustCompile(`(?i)\b(list|show)\b.*\b(files|director(y|ies)|folders?)\b`), "list files"},
	{regexp.MustCompile(`(?i)\bwhat('s| is)?\s+(in|inside)\b.*\b(director(y|ies)|folders?)\b`), "list files"},
	{regexp.MustCompile(`(?i)\b(current|working)\s+directory\b`), "working directory"},
	{regexp.MustCompile(`(?i)^\s*(ls|pwd|cat|mkdir)\b`), "shell verb"},
	{regexp.MustCompile(`(?i)\b(create|make)\b.*\b(director(y|ies)|folders?)\b`), "make directory"},
	{regexp.MustCompile(`(?i)\b(read|open|show|cat|display|view|print)\b.*` + fileExt), "read file"},
	{regexp.MustCompile(`(?i)\b(write|save|create)\b.*\b(a\s+|new\s+|the\s+)?file\b`), "write file"},
	{regexp.MustCompile(`(?i)\b(edit|change|update|modify|replace)\b.*` + fileExt), "edit file"},
	{regexp.MustCompile(`(?i)\b(rename|move|copy|delete|remove)\b.*\b(files?|director(y|ies)|folders?)\b`), "file verb"},
}

var codeRules = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`(?i)\b(write|implement|create|build|generate|develop)\b.*\b(function|method|class|struct|script|program|module|package|api|endpoint|algorithm|parser|regex|cli|test)s?\b`), "code verb"},
	{regexp.MustCompile(`(?i)\b(debug|refactor|fix|optimi[sz]e|review)\b.*\b(code|codebase|bug|function|script|test|error)s?\b`), "code maintenance"},
	{regexp.MustCompile(`(?i)\b(syntax error|stack trace|traceback|compile[rs]?|unit test|linter?)\b`), "code artifact"},
	{regexp.MustCompile(`(?i)(\b(python|golang|javascript|typescript|rust|java|kotlin|swift|ruby|php|scala|haskell|bash|sql)\b|\bc(\+\+|#))`), "language name"},
	{regexp.MustCompile(`(?i)\bcod(e|ing)\b`), "code keyword"},
}

// Route classifies one user input. It never errors and never returns a
// confidence other than 1.0; ambiguity falls through to research.
func Route(input string) Decision {
	text := strings.TrimSpace(input)

	for _, rule := range fileOpRules {
		if rule.re.MatchString(text) {
			L_debug("router: file_op", "rule", rule.reason)
			return Decision{Workflow: WorkflowFileOp, Confidence: 1.0, Reason: rule.reason}
		}
	}
	for _, rule := range codeRules {
		if rule.re.MatchString(text) {
			L_debug("router: code", "rule", rule.reason)
			return Decision{Workflow: WorkflowCode, Confidence: 1.0, Reason: rule.reason}
		}
	}
	return Decision{Workflow: WorkflowResearch, Confidence: 1.0, Reason: "default"}
}
