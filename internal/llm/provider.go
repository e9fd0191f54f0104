// Package llm normalizes four LLM wire protocols behind one Provider
// interface: OpenAI-compatible (and local), OpenAI hosted, Anthropic, and
// the HF inference toolkit. Adapters are stateless and safe for concurrent
// use; the retry policy in retry.go applies to every outbound call.
package llm

import (
	"context"
	"sync"

	"github.com/ruzivolabs/ruzivo/internal/types"
)

// Endpoint types, mirroring the config discriminator.
const (
	TypeLocal      = "local"
	TypeOpenAI     = "openai_compatible"
	TypeOpenAIHost = "openai_hosted"
	TypeAnthropic  = "anthropic"
	TypeHFToolkit  = "hf_toolkit"
)

// Normalized finish reasons.
const (
	FinishStop      = "stop"
	FinishLength    = "length"
	FinishToolCalls = "tool_calls"
	FinishOther     = "other"
)

// Endpoint describes one configured provider endpoint. The Type field picks
// the adapter; the rest feeds its constructor.
type Endpoint struct {
	Type           string
	URL            string
	BaseURL        string
	APIKey         string
	Model          string
	ChatTemplate   string // hf_toolkit: mistral, chatml, alpaca, raw
	MaxTokens      int
	Temperature    float64
	TimeoutSeconds int
}

// Request is the normalized completion request. Tools must be empty for
// streaming calls.
type Request struct {
	Messages    []types.Message
	Tools       []types.ToolDefinition
	Model       string // override, empty = endpoint default
	MaxTokens   int
	Temperature float64
}

// Usage is normalized token accounting.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Choice is one normalized completion choice.
type Choice struct {
	Message      types.Message
	FinishReason string // stop, length, tool_calls, other
}

// Response is the canonical response shape all adapters convert into.
type Response struct {
	Choices []Choice
	Usage   Usage
}

// First returns the first choice. Adapters guarantee at least one choice on
// a nil error.
func (r *Response) First() Choice {
	if r == nil || len(r.Choices) == 0 {
		return Choice{}
	}
	return r.Choices[0]
}

// Text returns the first choice's content.
func (r *Response) Text() string {
	return r.First().Message.Content
}

// Provider is the capability set every adapter exposes.
type Provider interface {
	// Name returns the endpoint key this provider was built from.
	Name() string
	// Model returns the default model identifier.
	Model() string
	// Complete runs a non-streaming completion.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Stream runs a streaming completion, invoking onDelta per text chunk
	// and returning the accumulated text. Requests carrying tools fail
	// with an invalid-argument error; use Complete for tool calling.
	Stream(ctx context.Context, req Request, onDelta func(string)) (string, error)
	// ListModels returns the model identifiers this endpoint serves.
	ListModels(ctx context.Context) ([]string, error)
}

// Pool lazily constructs providers per endpoint key and caches them.
// Adapters are stateless so one instance per endpoint suffices.
type Pool struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewPool creates an empty provider pool.
func NewPool() *Pool {
	return &Pool{providers: make(map[string]Provider)}
}

// Get returns the cached provider for key, constructing it on first use.
func (p *Pool) Get(key string, ep Endpoint) (Provider, error) {
	p.mu.RLock()
	prov, ok := p.providers[key]
	p.mu.RUnlock()
	if ok {
		return prov, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prov, ok := p.providers[key]; ok {
		return prov, nil
	}
	prov, err := New(key, ep)
	if err != nil {
		return nil, err
	}
	p.providers[key] = prov
	return prov, nil
}

// Reset drops all cached providers (used after a config reload).
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers = make(map[string]Provider)
}
