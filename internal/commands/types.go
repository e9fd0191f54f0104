package commands

import (
	"context"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/workflow"
)

// Provider gives command handlers access to the running program: the
// live config, the conversation, saved sessions, model endpoints, and
// the research store. cmd/ruzivo implements it over the real wiring;
// tests substitute fakes.
type Provider interface {
	// ConfigView returns the config file path and the current snapshot.
	ConfigView() (string, *config.Config)

	// ModelStatus lists each enabled endpoint with the models it serves.
	ModelStatus(ctx context.Context) []EndpointModels

	// SessionInfo describes the in-memory conversation.
	SessionInfo() SessionInfo
	ClearSession()
	SaveSession(name string) (SessionInfo, error)
	ListSessions() ([]SessionSummary, error)
	ResumeSession(name string) (SessionInfo, error)

	// RecentResearch lists persisted deep research runs, newest first.
	RecentResearch(limit int) ([]workflow.ResearchRun, error)
	ResearchRun(id string) (*workflow.ResearchRun, error)
}

// EndpointModels is one endpoint's /models listing.
type EndpointModels struct {
	Key    string   // endpoint key from the config
	Type   string   // adapter type: openai, anthropic, hf
	Model  string   // configured default model
	Roles  []string // specialist roles mapped to this endpoint
	Models []string // models the endpoint reports
	Err    string   // listing failure, empty on success
}

// SessionInfo summarizes the live or a restored conversation.
type SessionInfo struct {
	Name     string // snapshot name, empty for the live session
	Messages int
	Turns    int
	Tokens   int // estimated context footprint
}

// SessionSummary is one /history row.
type SessionSummary struct {
	Name      string
	UpdatedAt time.Time
	Turns     int
	Messages  int
}

// Result is what a command hands back to the REPL.
type Result struct {
	Text string
	Err  error
}
