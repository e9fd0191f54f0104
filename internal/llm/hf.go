package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Chat templates for endpoints with no structured chat API.
const (
	TemplateMistral = "mistral"
	TemplateChatML  = "chatml"
	TemplateAlpaca  = "alpaca"
	TemplateRaw     = "raw"
)

const hfMaxResponseBytes = 10 << 20

// HFProvider speaks text-generation-inference style endpoints: no chat
// structure on the wire, so the message list is rendered into a single
// prompt using the configured template before POSTing.
type HFProvider struct {
	name        string
	url         string
	apiKey      string
	model       string
	template    string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func newHFProvider(name string, ep Endpoint) (*HFProvider, error) {
	if ep.URL == "" {
		return nil, fault.Config("endpoint %s: url required", name)
	}
	template := ep.ChatTemplate
	if template == "" {
		template = TemplateMistral
	}
	switch template {
	case TemplateMistral, TemplateChatML, TemplateAlpaca, TemplateRaw:
	default:
		return nil, fault.Config("endpoint %s: unknown chat template %q", name, template)
	}

	timeout := 120 * time.Second
	if ep.TimeoutSeconds > 0 {
		timeout = time.Duration(ep.TimeoutSeconds) * time.Second
	}

	return &HFProvider{
		name:        name,
		url:         ep.URL,
		apiKey:      ep.APIKey,
		model:       ep.Model,
		template:    template,
		maxTokens:   ep.MaxTokens,
		temperature: ep.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

func (p *HFProvider) Name() string  { return p.name }
func (p *HFProvider) Model() string { return p.model }

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Stream     bool         `json:"stream,omitempty"`
}

func (p *HFProvider) buildRequest(req Request, stream bool) hfRequest {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = p.temperature
	}
	return hfRequest{
		Inputs: RenderPrompt(p.template, req.Messages),
		Parameters: hfParameters{
			MaxNewTokens:   maxTokens,
			Temperature:    temperature,
			ReturnFullText: false,
		},
		Stream: stream,
	}
}

func (p *HFProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Tools) > 0 {
		return nil, fault.InvalidArgument("endpoint %s does not support tools", p.name)
	}

	body := p.buildRequest(req, false)
	L_debug("hf: sending request", "provider", p.name, "template", p.template, "prompt_chars", len(body.Inputs))

	data, err := withRetry(ctx, "hf completion", func() ([]byte, error) {
		return p.post(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	text, err := parseHFGenerated(data)
	if err != nil {
		return nil, err
	}
	return &Response{
		Choices: []Choice{{
			Message:      types.AssistantMessage(text),
			FinishReason: FinishStop,
		}},
	}, nil
}

func (p *HFProvider) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	if len(req.Tools) > 0 {
		return "", fault.InvalidArgument("streaming does not support tools; use Complete")
	}

	body := p.buildRequest(req, true)

	resp, err := withRetry(ctx, "hf stream", func() (*http.Response, error) {
		return p.do(ctx, body)
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	// Some deployments ignore the stream flag and answer with a plain JSON
	// body; detect that and fall back to yielding whole generations.
	if !strings.Contains(resp.Header.Get("Content-Type"), "event-stream") {
		data, err := io.ReadAll(io.LimitReader(resp.Body, hfMaxResponseBytes))
		if err != nil {
			return "", fault.Network(err, "reading response")
		}
		text, err := parseHFGenerated(data)
		if err != nil {
			return "", err
		}
		if onDelta != nil && text != "" {
			onDelta(text)
		}
		return text, nil
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var event struct {
			Token struct {
				Text string `json:"text"`
			} `json:"token"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			// Malformed chunks are skipped, not fatal.
			L_trace("hf: skipping malformed stream chunk", "payload", payload)
			continue
		}
		if event.Token.Text == "" {
			continue
		}
		full.WriteString(event.Token.Text)
		if onDelta != nil {
			onDelta(event.Token.Text)
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fault.Network(err, "stream interrupted")
	}
	return full.String(), nil
}

// ListModels reports the single configured model; toolkit endpoints serve
// exactly one.
func (p *HFProvider) ListModels(ctx context.Context) ([]string, error) {
	if p.model == "" {
		return nil, nil
	}
	return []string{p.model}, nil
}

func (p *HFProvider) do(ctx context.Context, payload hfRequest) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fault.InvalidArgument("marshaling request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return nil, fault.InvalidArgument("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func (p *HFProvider) post(ctx context.Context, payload hfRequest) ([]byte, error) {
	resp, err := p.do(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, hfMaxResponseBytes))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// parseHFGenerated handles the three toolkit response shapes: a list of
// generations, a single generation dict, or an error dict.
func parseHFGenerated(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", fault.InvalidResponse("empty response body")
	}

	if trimmed[0] == '[' {
		var list []struct {
			GeneratedText string `json:"generated_text"`
		}
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", fault.Parse(err, "unparseable response list")
		}
		if len(list) == 0 {
			return "", fault.InvalidResponse("response list is empty")
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if item.GeneratedText != "" {
				parts = append(parts, item.GeneratedText)
			}
		}
		return strings.Join(parts, ""), nil
	}

	var dict struct {
		GeneratedText string `json:"generated_text"`
		Error         string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &dict); err != nil {
		return "", fault.Parse(err, "unparseable response")
	}
	if dict.Error != "" {
		return "", fault.InvalidResponse("inference error: %s", dict.Error)
	}
	if dict.GeneratedText == "" {
		return "", fault.InvalidResponse("response carries neither generated_text nor error")
	}
	return dict.GeneratedText, nil
}

// RenderPrompt flattens an OpenAI-shaped message list into a single prompt
// string for endpoints without a chat API.
func RenderPrompt(template string, msgs []types.Message) string {
	switch template {
	case TemplateChatML:
		return renderChatML(msgs)
	case TemplateAlpaca:
		return renderAlpaca(msgs)
	case TemplateRaw:
		return renderRaw(msgs)
	default:
		return renderMistral(msgs)
	}
}

// renderMistral folds system messages into the first user turn, wraps user
// turns in [INST] markers, and closes assistant turns with </s>.
func renderMistral(msgs []types.Message) string {
	var system []string
	for _, m := range msgs {
		if m.Role == types.RoleSystem && m.Content != "" {
			system = append(system, m.Content)
		}
	}
	pending := strings.Join(system, "\n\n")

	var b strings.Builder
	b.WriteString("<s>")
	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem:
			// Already folded above.
		case types.RoleAssistant:
			b.WriteString(" ")
			b.WriteString(m.Content)
			b.WriteString("</s>")
		default:
			b.WriteString("[INST] ")
			if pending != "" {
				b.WriteString(pending)
				b.WriteString("\n\n")
				pending = ""
			}
			b.WriteString(m.Content)
			b.WriteString(" [/INST]")
		}
	}
	return b.String()
}

func renderChatML(msgs []types.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "<|im_start|>%s\n%s<|im_end|>\n", m.Role, m.Content)
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}

func renderAlpaca(msgs []types.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem:
			b.WriteString(m.Content)
			b.WriteString("\n\n")
		case types.RoleAssistant:
			b.WriteString("### Response:\n")
			b.WriteString(m.Content)
			b.WriteString("\n\n")
		default:
			b.WriteString("### Instruction:\n")
			b.WriteString(m.Content)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("### Response:\n")
	return b.String()
}

// renderRaw emits "Role: content" lines with a trailing open assistant turn.
func renderRaw(msgs []types.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		role := m.Role
		if role == "" {
			role = types.RoleUser
		}
		role = strings.ToUpper(role[:1]) + role[1:]
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("Assistant:")
	return b.String()
}
