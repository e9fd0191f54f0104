package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

// fakeModel satisfies llm.Provider with canned replies, popping one per
// call and keeping the last.
type fakeModel struct {
	replies  []string
	err      error
	gotReqs  []llm.Request
	streamed int
}

func (f *fakeModel) Name() string  { return "fake" }
func (f *fakeModel) Model() string { return "fake-model" }

func (f *fakeModel) next() string {
	if len(f.replies) == 0 {
		return ""
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply
}

func (f *fakeModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.gotReqs = append(f.gotReqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Choices: []llm.Choice{{
		Message:      types.AssistantMessage(f.next()),
		FinishReason: llm.FinishStop,
	}}}, nil
}

func (f *fakeModel) Stream(ctx context.Context, req llm.Request, onDelta func(string)) (string, error) {
	f.gotReqs = append(f.gotReqs, req)
	f.streamed++
	if f.err != nil {
		return "", f.err
	}
	text := f.next()
	onDelta(text)
	return text, nil
}

func (f *fakeModel) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

// fakeRoles maps roles to fake models.
type fakeRoles struct {
	byRole map[string]*fakeModel
	err    error
}

func (f *fakeRoles) ForRole(role string) (llm.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	model, ok := f.byRole[role]
	if !ok {
		return nil, fault.Config("no endpoint for role %s", role)
	}
	return model, nil
}

type fakePrompts map[string]string

func (f fakePrompts) PromptOverride(role string) (string, bool) {
	p, ok := f[role]
	return p, ok && p != ""
}

// scriptedApprover replays a fixed sequence of verdicts.
type scriptedApprover struct {
	verdicts     []PlanVerdict
	instructions []string
	seenPlans    []string
}

func (a *scriptedApprover) ReviewPlan(plan string) (PlanVerdict, string) {
	a.seenPlans = append(a.seenPlans, plan)
	i := len(a.seenPlans) - 1
	verdict := PlanCancel
	if i < len(a.verdicts) {
		verdict = a.verdicts[i]
	}
	instruction := ""
	if i < len(a.instructions) {
		instruction = a.instructions[i]
	}
	return verdict, instruction
}

func TestSpecialistCompleteCleansOutput(t *testing.T) {
	model := &fakeModel{replies: []string{"<think>weighing options</think>The answer is 42."}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{config.RoleReasoning: model}}
	tool := NewReasoningTool(SpecialistOptions{Providers: roles})

	out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"task": "compute the answer"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "The answer is 42." {
		t.Errorf("output = %q", out)
	}
	if model.streamed != 0 {
		t.Error("without a writer the tool must use Complete")
	}

	req := model.gotReqs[0]
	if len(req.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != types.RoleSystem {
		t.Errorf("first message role = %q", req.Messages[0].Role)
	}
	if req.Messages[1].Content != "compute the answer" {
		t.Errorf("user content = %q", req.Messages[1].Content)
	}
}

func TestSpecialistStreamsToWriter(t *testing.T) {
	model := &fakeModel{replies: []string{"streamed text"}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{config.RoleSearch: model}}
	var buf bytes.Buffer
	tool := NewSearchModelTool(SpecialistOptions{Providers: roles, Out: &buf})

	out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"task": "latest news"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "streamed text" {
		t.Errorf("output = %q", out)
	}
	if model.streamed != 1 {
		t.Error("a wired writer must route through Stream")
	}
	if !strings.Contains(buf.String(), "streamed text") {
		t.Errorf("writer saw %q", buf.String())
	}
}

func TestSpecialistPromptOverride(t *testing.T) {
	model := &fakeModel{replies: []string{"ok"}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{config.RoleNehanda: model}}
	prompts := fakePrompts{config.RoleNehanda: "Answer in one sentence."}
	tool := NewNehandaTool(SpecialistOptions{Providers: roles, Prompts: prompts})

	if _, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"task": "who was Mbuya Nehanda"})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := model.gotReqs[0].Messages[0].Content; got != "Answer in one sentence." {
		t.Errorf("system prompt = %q, want the override", got)
	}
}

func TestSpecialistEmptyOutput(t *testing.T) {
	model := &fakeModel{replies: []string{"<think>nothing useful</think>   "}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{config.RoleReasoning: model}}
	tool := NewReasoningTool(SpecialistOptions{Providers: roles})

	_, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"task": "anything"}))
	if !fault.IsKind(err, fault.KindInvalidResponse) {
		t.Errorf("error = %v, want invalid response", err)
	}
}

func TestSpecialistMissingTask(t *testing.T) {
	roles := &fakeRoles{byRole: map[string]*fakeModel{}}
	tool := NewReasoningTool(SpecialistOptions{Providers: roles})

	_, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"other": "x"}))
	if !fault.IsKind(err, fault.KindInvalidArgument) {
		t.Errorf("error = %v, want invalid argument", err)
	}
}

func TestCodingAgentWithoutApprover(t *testing.T) {
	coder := &fakeModel{replies: []string{"func main() {}"}}
	planner := &fakeModel{replies: []string{"should not be called"}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{
		config.RoleCodestral: coder,
		config.RoleReasoning: planner,
	}}
	tool := NewCodingAgentTool(SpecialistOptions{Providers: roles}, nil)

	out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"task": "write main"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "func main() {}" {
		t.Errorf("output = %q", out)
	}
	if len(planner.gotReqs) != 0 {
		t.Error("no approver means no plan calls")
	}
	if got := coder.gotReqs[0].Messages[1].Content; strings.Contains(got, "approved implementation plan") {
		t.Errorf("prompt should carry no plan: %q", got)
	}
}

func TestCodingAgentPlanLoop(t *testing.T) {
	planner := &fakeModel{replies: []string{"plan draft one", "plan draft two"}}
	coder := &fakeModel{replies: []string{"final code"}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{
		config.RoleReasoning: planner,
		config.RoleCodestral: coder,
	}}
	approver := &scriptedApprover{
		verdicts:     []PlanVerdict{PlanModify, PlanAccept},
		instructions: []string{"make it shorter", ""},
	}
	tool := NewCodingAgentTool(SpecialistOptions{Providers: roles}, approver)

	out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"task": "build a parser"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "final code" {
		t.Errorf("output = %q", out)
	}
	if len(planner.gotReqs) != 2 {
		t.Fatalf("plan calls = %d, want 2", len(planner.gotReqs))
	}

	revision := planner.gotReqs[1].Messages[1].Content
	if !strings.Contains(revision, "plan draft one") {
		t.Errorf("revision prompt should quote the previous plan: %q", revision)
	}
	if !strings.Contains(revision, "make it shorter") {
		t.Errorf("revision prompt should carry the instructions: %q", revision)
	}

	generation := coder.gotReqs[0].Messages[1].Content
	if !strings.Contains(generation, "plan draft two") {
		t.Errorf("generation prompt should include the accepted plan: %q", generation)
	}
	if !strings.Contains(generation, "build a parser") {
		t.Errorf("generation prompt should include the task: %q", generation)
	}
}

func TestCodingAgentCancel(t *testing.T) {
	planner := &fakeModel{replies: []string{"a plan"}}
	coder := &fakeModel{}
	roles := &fakeRoles{byRole: map[string]*fakeModel{
		config.RoleReasoning: planner,
		config.RoleCodestral: coder,
	}}
	approver := &scriptedApprover{verdicts: []PlanVerdict{PlanCancel}}
	tool := NewCodingAgentTool(SpecialistOptions{Providers: roles}, approver)

	out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"task": "anything"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "Code generation cancelled." {
		t.Errorf("output = %q", out)
	}
	if len(coder.gotReqs) != 0 {
		t.Error("cancel must skip generation")
	}
}

func TestIntentDetectorParsesStrictJSON(t *testing.T) {
	reply := "<think>user wants prices</think>```json\n" +
		`{"tool": "web_search", "confidence": "high", "reasoning": "asks for current prices"}` +
		"\n```"
	model := &fakeModel{replies: []string{reply}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{config.RoleIntent: model}}
	tool := NewIntentDetectorTool(SpecialistOptions{Providers: roles}, []string{"web_search", "read_file"})

	intent := tool.DetectIntent(context.Background(), "what does gold cost today")
	if intent.Tool != "web_search" || intent.Confidence != "high" {
		t.Errorf("intent = %+v", intent)
	}
	if intent.Reasoning != "asks for current prices" {
		t.Errorf("reasoning = %q", intent.Reasoning)
	}

	system := model.gotReqs[0].Messages[0].Content
	if !strings.Contains(system, "web_search, read_file") {
		t.Errorf("system prompt should list the tools: %q", system)
	}
}

func TestIntentDetectorFillsDefaults(t *testing.T) {
	model := &fakeModel{replies: []string{`{"tool": "read_file"}`}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{config.RoleIntent: model}}
	tool := NewIntentDetectorTool(SpecialistOptions{Providers: roles}, nil)

	intent := tool.DetectIntent(context.Background(), "open my notes")
	if intent.Tool != "read_file" {
		t.Errorf("tool = %q", intent.Tool)
	}
	if intent.Confidence != "low" {
		t.Errorf("confidence = %q, want low default", intent.Confidence)
	}
	if intent.Reasoning == "" {
		t.Error("reasoning default missing")
	}
}

func TestIntentDetectorDegradesToNone(t *testing.T) {
	tests := []struct {
		name  string
		roles *fakeRoles
	}{
		{
			"prose output",
			&fakeRoles{byRole: map[string]*fakeModel{
				config.RoleIntent: {replies: []string{"I think the user wants a search."}},
			}},
		},
		{
			"model error",
			&fakeRoles{byRole: map[string]*fakeModel{
				config.RoleIntent: {err: fault.Network(nil, "connection refused")},
			}},
		},
		{
			"role unavailable",
			&fakeRoles{err: fault.Config("no endpoints")},
		},
		{
			"bad confidence value",
			&fakeRoles{byRole: map[string]*fakeModel{
				config.RoleIntent: {replies: []string{`{"tool": "web_search", "confidence": "certain"}`}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := NewIntentDetectorTool(SpecialistOptions{Providers: tt.roles}, nil)
			intent := tool.DetectIntent(context.Background(), "do something")
			if intent.Confidence != "low" {
				t.Errorf("confidence = %q, want low", intent.Confidence)
			}
			if tt.name == "bad confidence value" {
				if intent.Tool != "web_search" {
					t.Errorf("tool = %q, parseable fields should survive", intent.Tool)
				}
				return
			}
			if intent.Tool != "none" {
				t.Errorf("tool = %q, want none", intent.Tool)
			}
		})
	}
}

func TestIntentDetectorExecuteReturnsJSON(t *testing.T) {
	model := &fakeModel{replies: []string{`{"tool": "none", "confidence": "low", "reasoning": "ambiguous"}`}}
	roles := &fakeRoles{byRole: map[string]*fakeModel{config.RoleIntent: model}}
	tool := NewIntentDetectorTool(SpecialistOptions{Providers: roles}, nil)

	out, err := tool.Execute(context.Background(), mustArgs(t, map[string]any{"task": "hm"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var intent Intent
	if err := json.Unmarshal([]byte(out), &intent); err != nil {
		t.Fatalf("output is not JSON: %q", out)
	}
	if intent.Tool != "none" || intent.Confidence != "low" || intent.Reasoning != "ambiguous" {
		t.Errorf("intent = %+v", intent)
	}
}
