package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Providers resolves a specialist role to a ready model provider.
// *llm.RolePool satisfies it.
type Providers interface {
	ForRole(role string) (llm.Provider, error)
}

// PromptSource supplies per-role system prompt overrides. *config.Config
// satisfies it.
type PromptSource interface {
	PromptOverride(role string) (string, bool)
}

// defaultPrompts are the built-in specialist system prompts. prompts.yaml
// overrides them per role.
var defaultPrompts = map[string]string{
	config.RoleReasoning: "You are a careful analytical assistant. Work through the problem " +
		"step by step and give a clear, well-structured answer.",
	config.RoleSearch: "You are a research specialist. Answer with current, factual " +
		"information, name your sources, and say plainly when something is uncertain.",
	config.RoleCodestral: "You are an expert software engineer. Produce complete, working " +
		"code with brief explanations. Prefer small, reviewable changes.",
	config.RoleNehanda: "You are Nehanda, a knowledge assistant grounded in Zimbabwean and " +
		"southern African context. Answer with local insight, naming institutions, places, " +
		"and history accurately.",
	config.RoleVision: "You are a vision assistant. Describe and analyze the provided " +
		"image accurately and concisely. Answer the user's question about it directly.",
	config.RoleImageGen: "Generate an image matching the user's description as closely " +
		"as possible.",
}

// SpecialistOptions wires shared collaborators into the specialist
// callers. Out receives streamed chunks as they arrive; nil disables
// streaming display and the calls fall back to Complete.
type SpecialistOptions struct {
	Providers Providers
	Prompts   PromptSource
	Out       io.Writer
}

// SpecialistTool calls one configured model role with a role-specific
// system prompt and returns the think-tag-stripped output.
type SpecialistTool struct {
	name        string
	description string
	role        string
	param       string
	paramDesc   string
	providers   Providers
	prompts     PromptSource
	out         io.Writer
}

// NewReasoningTool builds use_reasoning_model over the reasoning role.
func NewReasoningTool(opts SpecialistOptions) *SpecialistTool {
	return &SpecialistTool{
		name:        "use_reasoning_model",
		description: "Ask the reasoning specialist to analyze a problem, compare options, or think through a question that needs no live data.",
		role:        config.RoleReasoning,
		param:       "task",
		paramDesc:   "The question or problem to reason about.",
		providers:   opts.Providers,
		prompts:     opts.Prompts,
		out:         opts.Out,
	}
}

// NewSearchModelTool builds use_search_model over the search role.
func NewSearchModelTool(opts SpecialistOptions) *SpecialistTool {
	return &SpecialistTool{
		name:        "use_search_model",
		description: "Ask the search-tuned specialist a question that benefits from fresh knowledge and source naming.",
		role:        config.RoleSearch,
		param:       "task",
		paramDesc:   "The question to answer.",
		providers:   opts.Providers,
		prompts:     opts.Prompts,
		out:         opts.Out,
	}
}

// NewNehandaTool builds use_nehanda over the nehanda role.
func NewNehandaTool(opts SpecialistOptions) *SpecialistTool {
	return &SpecialistTool{
		name:        "use_nehanda",
		description: "Ask Nehanda, the specialist for Zimbabwean and southern African context, history, and institutions.",
		role:        config.RoleNehanda,
		param:       "task",
		paramDesc:   "The question for Nehanda.",
		providers:   opts.Providers,
		prompts:     opts.Prompts,
		out:         opts.Out,
	}
}

// NewGenerateImageTool builds generate_image over the image generation
// role.
func NewGenerateImageTool(opts SpecialistOptions) *SpecialistTool {
	return &SpecialistTool{
		name:        "generate_image",
		description: "Generate an image from a text description using the image generation model.",
		role:        config.RoleImageGen,
		param:       "prompt",
		paramDesc:   "What the image should show.",
		providers:   opts.Providers,
		prompts:     opts.Prompts,
		out:         opts.Out,
	}
}

func (t *SpecialistTool) Name() string        { return t.name }
func (t *SpecialistTool) Description() string { return t.description }

func (t *SpecialistTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			t.param: map[string]any{
				"type":        "string",
				"description": t.paramDesc,
			},
		},
		"required": []string{t.param},
	}
}

func (t *SpecialistTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fault.InvalidArgument("%s: invalid input: %v", t.name, err)
	}
	task, _ := args[t.param].(string)
	if strings.TrimSpace(task) == "" {
		return "", fault.InvalidArgument("%s: %s is required", t.name, t.param)
	}
	return callRole(ctx, roleCall{
		providers: t.providers,
		prompts:   t.prompts,
		out:       t.out,
		name:      t.name,
		role:      t.role,
		system:    defaultPrompts[t.role],
		user:      task,
	})
}

// roleCall is one specialist model invocation.
type roleCall struct {
	providers Providers
	prompts   PromptSource
	out       io.Writer
	name      string
	role      string
	system    string
	user      string
}

// callRole resolves the role's provider, applies any prompt override,
// streams when a writer is wired, and returns the cleaned text.
func callRole(ctx context.Context, c roleCall) (string, error) {
	provider, err := c.providers.ForRole(c.role)
	if err != nil {
		return "", err
	}
	system := c.system
	if c.prompts != nil {
		if override, ok := c.prompts.PromptOverride(c.role); ok {
			system = override
		}
	}

	req := llm.Request{Messages: []types.Message{
		types.SystemMessage(system),
		types.UserMessage(c.user),
	}}

	var text string
	if c.out != nil {
		text, err = provider.Stream(ctx, req, func(chunk string) {
			fmt.Fprint(c.out, chunk)
		})
		if err == nil {
			fmt.Fprintln(c.out)
		}
	} else {
		var resp *llm.Response
		resp, err = provider.Complete(ctx, req)
		if err == nil {
			text = resp.Text()
		}
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(llm.StripThinkTags(text))
	if text == "" {
		return "", fault.InvalidResponse("%s returned empty output", c.name)
	}
	L_debug("specialist: completed", "tool", c.name, "role", c.role, "chars", len(text))
	return text, nil
}

// PlanVerdict is the user's decision on a generated implementation plan.
type PlanVerdict int

const (
	PlanAccept PlanVerdict = iota
	PlanModify
	PlanCancel
)

// PlanApprover presents a plan and collects accept, modify, or cancel.
// Modify carries the user's amendment instructions. A nil approver skips
// planning entirely.
type PlanApprover interface {
	ReviewPlan(plan string) (PlanVerdict, string)
}

// CodingAgentTool generates code with the codestral role. When a plan
// approver is wired, it first drafts a plan with the reasoning role and
// loops until the user accepts or cancels.
type CodingAgentTool struct {
	providers Providers
	prompts   PromptSource
	approver  PlanApprover
	out       io.Writer
}

func NewCodingAgentTool(opts SpecialistOptions, approver PlanApprover) *CodingAgentTool {
	return &CodingAgentTool{
		providers: opts.Providers,
		prompts:   opts.Prompts,
		approver:  approver,
		out:       opts.Out,
	}
}

func (t *CodingAgentTool) Name() string { return "use_coding_agent" }

func (t *CodingAgentTool) Description() string {
	return "Generate or modify code with the coding specialist. Interactive sessions review an implementation plan before any code is written."
}

func (t *CodingAgentTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "What the code should do, including language and constraints.",
			},
		},
		"required": []string{"task"},
	}
}

type codingAgentInput struct {
	Task string `json:"task"`
}

func (t *CodingAgentTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params codingAgentInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("use_coding_agent: invalid input: %v", err)
	}
	if strings.TrimSpace(params.Task) == "" {
		return "", fault.InvalidArgument("use_coding_agent: task is required")
	}

	plan, cancelled, err := t.approvePlan(ctx, params.Task)
	if err != nil {
		return "", err
	}
	if cancelled {
		return "Code generation cancelled.", nil
	}

	user := params.Task
	if plan != "" {
		user = params.Task + "\n\nFollow this approved implementation plan:\n" + plan
	}
	return callRole(ctx, roleCall{
		providers: t.providers,
		prompts:   t.prompts,
		out:       t.out,
		name:      "use_coding_agent",
		role:      config.RoleCodestral,
		system:    defaultPrompts[config.RoleCodestral],
		user:      user,
	})
}

// approvePlan runs the plan loop. Without an approver it returns an
// empty plan so generation proceeds directly.
func (t *CodingAgentTool) approvePlan(ctx context.Context, task string) (string, bool, error) {
	if t.approver == nil {
		return "", false, nil
	}

	prompt := "Write a short numbered implementation plan for this coding task. " +
		"Do not write the code yet.\n\nTask: " + task
	for {
		plan, err := callRole(ctx, roleCall{
			providers: t.providers,
			prompts:   t.prompts,
			name:      "use_coding_agent",
			role:      config.RoleReasoning,
			system:    defaultPrompts[config.RoleReasoning],
			user:      prompt,
		})
		if err != nil {
			return "", false, err
		}

		verdict, instructions := t.approver.ReviewPlan(plan)
		switch verdict {
		case PlanAccept:
			return plan, false, nil
		case PlanCancel:
			L_info("use_coding_agent: plan cancelled")
			return "", true, nil
		case PlanModify:
			prompt = "Revise this implementation plan per the user's instructions. " +
				"Do not write the code yet.\n\nTask: " + task +
				"\n\nPrevious plan:\n" + plan +
				"\n\nUser instructions:\n" + instructions
		}
	}
}

// Intent is the parsed tool classification for a user request.
type Intent struct {
	Tool       string `json:"tool"`
	Confidence string `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// IntentDetectorTool classifies which tool fits the user's request and
// returns strict JSON. Failures degrade to the "none" intent instead of
// erroring: routing must never break a turn.
type IntentDetectorTool struct {
	providers Providers
	prompts   PromptSource
	toolNames []string
}

func NewIntentDetectorTool(opts SpecialistOptions, toolNames []string) *IntentDetectorTool {
	return &IntentDetectorTool{
		providers: opts.Providers,
		prompts:   opts.Prompts,
		toolNames: toolNames,
	}
}

func (t *IntentDetectorTool) Name() string { return "use_intent_detector" }

func (t *IntentDetectorTool) Description() string {
	return "Classify which tool best serves a user request. Returns JSON with tool, confidence, and reasoning."
}

func (t *IntentDetectorTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "The user request to classify.",
			},
		},
		"required": []string{"task"},
	}
}

type intentInput struct {
	Task string `json:"task"`
}

func (t *IntentDetectorTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params intentInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("use_intent_detector: invalid input: %v", err)
	}
	if strings.TrimSpace(params.Task) == "" {
		return "", fault.InvalidArgument("use_intent_detector: task is required")
	}

	intent := t.DetectIntent(ctx, params.Task)
	out, err := json.Marshal(intent)
	if err != nil {
		return "", fmt.Errorf("encode intent: %w", err)
	}
	return string(out), nil
}

// DetectIntent classifies the input, returning the "none" intent on any
// model or parse failure.
func (t *IntentDetectorTool) DetectIntent(ctx context.Context, input string) Intent {
	provider, err := t.providers.ForRole(config.RoleIntent)
	if err != nil {
		L_warn("intent: role unavailable", "error", err)
		return Intent{Tool: "none", Confidence: "low", Reasoning: "intent model unavailable"}
	}

	system := t.systemPrompt()
	if t.prompts != nil {
		if override, ok := t.prompts.PromptOverride(config.RoleIntent); ok {
			system = override
		}
	}

	resp, err := provider.Complete(ctx, llm.Request{Messages: []types.Message{
		types.SystemMessage(system),
		types.UserMessage(input),
	}})
	if err != nil {
		L_warn("intent: model call failed", "error", err)
		return Intent{Tool: "none", Confidence: "low", Reasoning: "intent model call failed"}
	}

	text := llm.StripThinkTags(resp.Text())
	jsonText, ok := llm.ExtractJSON(text)
	if !ok {
		L_warn("intent: parse failed", "error", fault.New(fault.KindParse, "no JSON object in intent output"))
		return Intent{Tool: "none", Confidence: "low", Reasoning: "model output was not valid JSON"}
	}

	var intent Intent
	if err := json.Unmarshal([]byte(jsonText), &intent); err != nil {
		L_warn("intent: parse failed", "error", fault.Parse(err, "intent JSON malformed"))
		return Intent{Tool: "none", Confidence: "low", Reasoning: "model output was not valid JSON"}
	}

	if intent.Tool == "" {
		intent.Tool = "none"
	}
	switch intent.Confidence {
	case "high", "medium", "low":
	default:
		intent.Confidence = "low"
	}
	if intent.Reasoning == "" {
		intent.Reasoning = "no reasoning given"
	}
	return intent
}

func (t *IntentDetectorTool) systemPrompt() string {
	return fmt.Sprintf(
		"You route user requests to tools. Valid tools: %s.\n"+
			"Respond with ONLY this JSON object and nothing else:\n"+
			`{"tool": "<tool name or none>", "confidence": "high|medium|low", "reasoning": "<one short sentence>"}`,
		strings.Join(t.toolNames, ", "))
}
