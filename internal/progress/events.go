// Package progress carries workflow and tool lifecycle events from
// producers to the terminal renderer over a bounded bus. Events form a
// tree: each event may name a node id in its metadata and a parent id,
// rooted at the workflow that started the turn.
package progress

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	WorkflowStart    EventType = "WORKFLOW_START"
	WorkflowComplete EventType = "WORKFLOW_COMPLETE"
	StepStart        EventType = "STEP_START"
	StepComplete     EventType = "STEP_COMPLETE"
	StepError        EventType = "STEP_ERROR"
	ToolStart        EventType = "TOOL_START"
	ToolComplete     EventType = "TOOL_COMPLETE"
	ToolError        EventType = "TOOL_ERROR"
	Message          EventType = "MESSAGE"
)

// Event is one lifecycle notification. Metadata["node_id"] identifies the
// node in the progress tree; ParentID links it under its parent.
type Event struct {
	Type      EventType
	Message   string
	ParentID  string
	Metadata  map[string]any
	Timestamp time.Time
}

// NodeID returns the event's tree node id, or "" when it carries none.
func (e Event) NodeID() string {
	if e.Metadata == nil {
		return ""
	}
	id, _ := e.Metadata["node_id"].(string)
	return id
}

// NewEvent builds an event stamped now with the given node id.
func NewEvent(t EventType, message, nodeID, parentID string) Event {
	return Event{
		Type:      t,
		Message:   message,
		ParentID:  parentID,
		Metadata:  map[string]any{"node_id": nodeID},
		Timestamp: time.Now(),
	}
}

// NewNodeID mints a node identifier for a tree node.
func NewNodeID() string {
	return uuid.NewString()
}
