package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/pagination"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicProvider speaks the Anthropic messages wire protocol and maps it
// to the unified chat shape: system prompts move to the top-level system
// field, tool results ride as user-role tool_result blocks, and content
// blocks flatten back to text plus tool calls.
type AnthropicProvider struct {
	name        string
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

func newAnthropicProvider(name string, ep Endpoint) (*AnthropicProvider, error) {
	if ep.APIKey == "" {
		return nil, fault.Config("endpoint %s: api key required", name).
			WithHint("set ANTHROPIC_API_KEY or endpoints." + name + ".api_key")
	}
	if ep.Model == "" {
		return nil, fault.Config("endpoint %s: model required", name)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(ep.APIKey),
		// The package-level retry policy applies; the SDK's own must not stack.
		option.WithMaxRetries(0),
	}
	if ep.URL != "" {
		opts = append(opts, option.WithBaseURL(ep.URL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		name:        name,
		client:      &client,
		model:       ep.Model,
		maxTokens:   ep.MaxTokens,
		temperature: ep.Temperature,
	}, nil
}

func (p *AnthropicProvider) Name() string  { return p.name }
func (p *AnthropicProvider) Model() string { return p.model }

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	params := p.buildParams(req)

	L_debug("anthropic: sending request",
		"provider", p.name,
		"model", params.Model,
		"messages", len(params.Messages),
		"tools", len(params.Tools))

	msg, err := withRetry(ctx, "anthropic completion", func() (*anthropic.Message, error) {
		return p.client.Messages.New(ctx, params)
	})
	if err != nil {
		return nil, err
	}
	return normalizeAnthropicResponse(msg)
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	if len(req.Tools) > 0 {
		return "", fault.InvalidArgument("streaming does not support tools; use Complete")
	}

	params := p.buildParams(req)

	// The SDK connects lazily on the first Next, so retries happen here
	// rather than in withRetry. Once a delta has been delivered, retrying
	// would duplicate output; the stream fails instead.
	var full strings.Builder
	for retries := 0; ; retries++ {
		stream := p.client.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					full.WriteString(delta.Text)
					if onDelta != nil {
						onDelta(delta.Text)
					}
				}
			}
		}
		err := stream.Err()
		stream.Close()
		if err == nil {
			return full.String(), nil
		}
		if full.Len() > 0 || !shouldRetry(err) || retries >= maxRetries {
			return full.String(), fault.Network(err, "stream interrupted")
		}
		L_warn("anthropic: transient stream failure", "attempt", retries+1, "error", err)
		select {
		case <-time.After(backoffDelay(retries)):
		case <-ctx.Done():
			return full.String(), fault.Interrupted()
		}
	}
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]string, error) {
	page, err := withRetry(ctx, "anthropic list models", func() (*pagination.Page[anthropic.ModelInfo], error) {
		return p.client.Models.List(ctx, anthropic.ModelListParams{Limit: anthropic.Int(100)})
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (p *AnthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	messages, system := toAnthropicMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.temperature
	}
	if temperature != 0 {
		params.Temperature = anthropic.Float(temperature)
	}
	return params
}

// toAnthropicMessages converts the unified history. System messages are
// pulled out and joined with blank lines for the top-level system field;
// tool results become user-role tool_result blocks keyed by the call id.
func toAnthropicMessages(msgs []types.Message) ([]anthropic.MessageParam, string) {
	var systemParts []string
	result := make([]anthropic.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem:
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
		case types.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: input,
					},
				})
			}
			if len(blocks) > 0 {
				result = append(result, anthropic.NewAssistantMessage(blocks...))
			}
		case types.RoleTool:
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	return result, strings.Join(systemParts, "\n\n")
}

func toAnthropicTools(defs []types.ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(defs))
	for i, def := range defs {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := def.Parameters["properties"]; ok {
			schema.Properties = props
		}
		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: schema,
			},
		}
	}
	return result
}

// normalizeAnthropicResponse flattens content blocks: text blocks concatenate
// into the message content, tool_use blocks become tool calls with their
// input re-serialized as a JSON argument string.
func normalizeAnthropicResponse(msg *anthropic.Message) (*Response, error) {
	if msg == nil || len(msg.Content) == 0 {
		return nil, fault.InvalidResponse("response has no content blocks")
	}

	var texts []string
	var toolCalls []types.ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			texts = append(texts, b.Text)
		case anthropic.ToolUseBlock:
			args, err := json.Marshal(b.Input)
			if err != nil {
				return nil, fault.InvalidResponse("tool_use block %s has unserializable input", b.ID)
			}
			toolCalls = append(toolCalls, types.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: string(args),
			})
		}
	}

	out := &Response{
		Choices: []Choice{{
			Message: types.Message{
				Role:      types.RoleAssistant,
				Content:   strings.Join(texts, "\n"),
				ToolCalls: toolCalls,
			},
			FinishReason: anthropicFinishReason(string(msg.StopReason)),
		}},
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
	}
	return out, nil
}

// anthropicFinishReason maps the messages-protocol stop reasons onto the
// unified vocabulary. Unrecognized reasons count as a normal stop.
func anthropicFinishReason(stop string) string {
	switch stop {
	case "end_turn":
		return FinishStop
	case "max_tokens":
		return FinishLength
	case "tool_use":
		return FinishToolCalls
	default:
		return FinishStop
	}
}
