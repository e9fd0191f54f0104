package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIProvider speaks the OpenAI chat-completions wire protocol. It
// serves three endpoint shapes: local servers (LM Studio, vLLM, llama.cpp),
// arbitrary OpenAI-compatible gateways with a bearer token, and the hosted
// OpenAI API. Hosted endpoints answer ListModels from a static table
// instead of the network.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	hosted      bool
}

func newOpenAIProvider(name string, ep Endpoint) (*OpenAIProvider, error) {
	hosted := ep.Type == TypeOpenAIHost

	baseURL := ep.URL
	if baseURL == "" {
		baseURL = ep.BaseURL
	}
	if baseURL == "" {
		if !hosted {
			return nil, fault.Config("endpoint %s: url required", name)
		}
		baseURL = defaultOpenAIBase
	}
	// The client appends /chat/completions itself; normalize to a /v1 root.
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}

	if hosted {
		if ep.APIKey == "" {
			return nil, fault.Config("endpoint %s: api key required", name).
				WithHint("set OPENAI_API_KEY or endpoints." + name + ".api_key")
		}
		if ep.Model == "" {
			return nil, fault.Config("endpoint %s: model required", name)
		}
	}

	timeout := 120 * time.Second
	if ep.TimeoutSeconds > 0 {
		timeout = time.Duration(ep.TimeoutSeconds) * time.Second
	}

	cfg := openai.DefaultConfig(ep.APIKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(cfg),
		baseURL:     baseURL,
		model:       ep.Model,
		maxTokens:   ep.MaxTokens,
		temperature: ep.Temperature,
		hosted:      hosted,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.model }

// Complete runs a non-streaming chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	oaiReq := p.buildRequest(req)

	L_debug("openai: sending request",
		"provider", p.name,
		"model", oaiReq.Model,
		"messages", len(oaiReq.Messages),
		"tools", len(oaiReq.Tools))

	resp, err := withRetry(ctx, "openai completion", func() (openai.ChatCompletionResponse, error) {
		return p.client.CreateChatCompletion(ctx, oaiReq)
	})
	if err != nil {
		return nil, err
	}

	return normalizeOpenAIResponse(resp)
}

// Stream runs a streaming completion. Tools are rejected; the wire contract
// reserves streaming for plain text.
func (p *OpenAIProvider) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	if len(req.Tools) > 0 {
		return "", fault.InvalidArgument("streaming does not support tools; use Complete")
	}

	oaiReq := p.buildRequest(req)
	oaiReq.Stream = true

	stream, err := withRetry(ctx, "openai stream", func() (*openai.ChatCompletionStream, error) {
		return p.client.CreateChatCompletionStream(ctx, oaiReq)
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") {
				break
			}
			return full.String(), fault.Network(err, "stream interrupted")
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return full.String(), nil
}

// ListModels lists the endpoint's models. Hosted endpoints answer from the
// compiled-in table; compatible endpoints ask the server.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	if p.hosted {
		return HostedModelIDs(), nil
	}
	list, err := withRetry(ctx, "openai list models", func() (openai.ModelsList, error) {
		return p.client.ListModels(ctx)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (p *OpenAIProvider) buildRequest(req Request) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.temperature
	}

	oaiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}
	if len(req.Tools) > 0 {
		oaiReq.Tools = toOpenAITools(req.Tools)
		oaiReq.ToolChoice = "auto"
		oaiReq.ParallelToolCalls = true
	}
	return oaiReq
}

// toOpenAIMessages passes our wire shape through unchanged.
func toOpenAIMessages(msgs []types.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		result = append(result, om)
	}
	return result
}

func toOpenAITools(defs []types.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))
	for i, def := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}
	return result
}

// normalizeOpenAIResponse validates and converts a vendor response. A reply
// without choices, or whose first choice lacks a finish reason, is invalid.
func normalizeOpenAIResponse(resp openai.ChatCompletionResponse) (*Response, error) {
	if len(resp.Choices) == 0 {
		return nil, fault.InvalidResponse("response has no choices")
	}
	if resp.Choices[0].FinishReason == "" {
		return nil, fault.InvalidResponse("first choice missing finish_reason")
	}

	out := &Response{
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, ch := range resp.Choices {
		msg := types.Message{
			Role:    ch.Message.Role,
			Content: ch.Message.Content,
		}
		for _, tc := range ch.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, types.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		out.Choices = append(out.Choices, Choice{
			Message:      msg,
			FinishReason: normalizeFinishReason(string(ch.FinishReason)),
		})
	}
	return out, nil
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "stop", "end_turn":
		return FinishStop
	case "length", "max_tokens":
		return FinishLength
	case "tool_calls", "function_call", "tool_use":
		return FinishToolCalls
	default:
		return FinishOther
	}
}
