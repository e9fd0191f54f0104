package llm

import (
	"github.com/ruzivolabs/ruzivo/internal/fault"
)

// New constructs a provider for the endpoint. Local endpoints ride the
// OpenAI-compatible adapter with whatever token they carry (usually none).
func New(name string, ep Endpoint) (Provider, error) {
	switch ep.Type {
	case TypeLocal, TypeOpenAI, TypeOpenAIHost:
		return newOpenAIProvider(name, ep)
	case TypeAnthropic:
		return newAnthropicProvider(name, ep)
	case TypeHFToolkit:
		return newHFProvider(name, ep)
	case "":
		return nil, fault.Config("endpoint %s: type required", name)
	default:
		return nil, fault.Config("endpoint %s: unknown type %q", name, ep.Type)
	}
}
