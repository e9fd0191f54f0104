package tools

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

// Registry holds the registered tools, an alias table, and the schema
// order. Models emit alias names freely (read, shell, search), so lookup
// resolves aliases before the tool map.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	aliases map[string]string
	order   []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		aliases: make(map[string]string),
	}
}

// Register adds a tool under its canonical name. Re-registering a name
// replaces the tool but keeps its original schema position.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Alias maps an alternate name onto a canonical one.
func (r *Registry) Alias(alias, canonical string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = canonical
}

// Resolve returns the tool and its canonical name, following one alias
// hop. Unknown names return an invalid-argument fault.
func (r *Registry) Resolve(name string) (Tool, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	tool, ok := r.tools[name]
	if !ok {
		return nil, "", fault.InvalidArgument("unknown tool: %s", name).
			WithHint("tool names are case-sensitive; call tools exactly as listed")
	}
	return tool, name, nil
}

// Has reports whether name resolves to a registered tool.
func (r *Registry) Has(name string) bool {
	_, _, err := r.Resolve(name)
	return err == nil
}

// Names returns the canonical tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Specs returns the public tool schemas in registration order, ready to
// hand to a provider.
func (r *Registry) Specs() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]types.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, ToDefinition(r.tools[name]))
	}
	return defs
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// BuildToolSummary generates a system prompt section listing available
// tools. Local and openai-compatible models pick tools far more reliably
// when the list also appears in the prompt, not just the schema.
//
// Returns a formatted string like:
//
//	## Available Tools
//	- read_file: Read a file from the workspace
//	- run_shell: Run a whitelisted shell command
func (r *Registry) BuildToolSummary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Available Tools\n")
	sb.WriteString("Tool names are case-sensitive. Call tools exactly as listed.\n")

	for _, name := range r.order {
		tool := r.tools[name]
		summary := truncateDescription(tool.Description(), 100)
		sb.WriteString(fmt.Sprintf("- %s: %s\n", name, summary))
	}

	return sb.String()
}

// truncateDescription shortens a description for the summary view
func truncateDescription(desc string, maxLen int) string {
	// First try to get just the first sentence
	if idx := strings.Index(desc, ". "); idx > 0 && idx < maxLen {
		return desc[:idx+1]
	}

	if len(desc) <= maxLen {
		return desc
	}

	// Find last space before maxLen to avoid cutting words
	truncated := desc[:maxLen]
	if idx := strings.LastIndex(truncated, " "); idx > maxLen/2 {
		truncated = truncated[:idx]
	}
	return truncated + "..."
}
