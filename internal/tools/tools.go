// Package tools implements the built-in tool set and the dispatcher that
// fronts it: registry lookup with aliases, parameter repair,
// read-before-edit enforcement, cd tracking, result truncation, and
// lifecycle events on the progress bus. File tools are jailed to the
// user's home directory through a shared Session.
package tools

import (
	"context"
	"encoding/json"

	"github.com/ruzivolabs/ruzivo/internal/types"
)

// Tool is the interface every tool implements.
type Tool interface {
	// Name returns the canonical tool name.
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Schema returns the JSON Schema for the tool's parameters.
	Schema() map[string]any

	// Execute runs the tool. Input is the JSON-encoded argument object.
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// ToDefinition converts a Tool to the provider-facing schema shape.
func ToDefinition(t Tool) types.ToolDefinition {
	return types.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
	}
}
