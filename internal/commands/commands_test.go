package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/config"
	"github.com/ruzivolabs/ruzivo/internal/workflow"
)

type fakeProvider struct {
	cfg       *config.Config
	path      string
	endpoints []EndpointModels
	sessions  []SessionSummary
	saved     []string
	resumed   []string
	cleared   int
	runs      []workflow.ResearchRun
	runByID   map[string]*workflow.ResearchRun
	saveErr   error
	resumeErr error
}

func (f *fakeProvider) ConfigView() (string, *config.Config) {
	cfg := f.cfg
	if cfg == nil {
		cfg = config.Default()
	}
	return f.path, cfg
}

func (f *fakeProvider) ModelStatus(ctx context.Context) []EndpointModels { return f.endpoints }

func (f *fakeProvider) SessionInfo() SessionInfo {
	return SessionInfo{Messages: 4, Turns: 2, Tokens: 340}
}

func (f *fakeProvider) ClearSession() { f.cleared++ }

func (f *fakeProvider) SaveSession(name string) (SessionInfo, error) {
	if f.saveErr != nil {
		return SessionInfo{}, f.saveErr
	}
	if name == "" {
		name = "session-20260825-120000"
	}
	f.saved = append(f.saved, name)
	return SessionInfo{Name: name, Messages: 4, Turns: 2, Tokens: 1234}, nil
}

func (f *fakeProvider) ListSessions() ([]SessionSummary, error) { return f.sessions, nil }

func (f *fakeProvider) ResumeSession(name string) (SessionInfo, error) {
	if f.resumeErr != nil {
		return SessionInfo{}, f.resumeErr
	}
	f.resumed = append(f.resumed, name)
	return SessionInfo{Name: name, Messages: 9, Turns: 4, Tokens: 2100}, nil
}

func (f *fakeProvider) RecentResearch(limit int) ([]workflow.ResearchRun, error) {
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeProvider) ResearchRun(id string) (*workflow.ResearchRun, error) {
	if run, ok := f.runByID[id]; ok {
		return run, nil
	}
	return nil, errors.New("research run " + id + " not found")
}

func newTestManager() (*Manager, *fakeProvider) {
	p := &fakeProvider{path: "/home/u/.ruzivo/ruzivo.json"}
	return NewManager(p), p
}

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"  /models", true},
		{"search for gold", false},
		{"", false},
		{"hello /world", false},
	}
	for _, tt := range tests {
		if got := IsCommand(tt.input); got != tt.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	m, _ := newTestManager()
	res := m.Execute(context.Background(), "/frobnicate now")
	if !strings.Contains(res.Text, "Unknown command: /frobnicate") {
		t.Errorf("text = %q, want unknown command notice", res.Text)
	}
	if !strings.Contains(res.Text, "/help") {
		t.Errorf("text = %q, want help hint", res.Text)
	}
}

func TestClearAndResetAlias(t *testing.T) {
	m, p := newTestManager()
	m.Execute(context.Background(), "/clear")
	m.Execute(context.Background(), "/reset")
	if p.cleared != 2 {
		t.Errorf("cleared %d times, want 2", p.cleared)
	}
}

func TestHelpListsCommands(t *testing.T) {
	m, _ := newTestManager()
	res := m.Execute(context.Background(), "/help")
	for _, want := range []string{"/models", "/resume <name>", "/digest <days>", "/visualize"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("help missing %q:\n%s", want, res.Text)
		}
	}
}

func TestModelsOutput(t *testing.T) {
	m, p := newTestManager()
	p.endpoints = []EndpointModels{
		{
			Key:    "mistral",
			Type:   "openai_hosted",
			Model:  "mistral-large-latest",
			Roles:  []string{"orchestrator", "reasoning"},
			Models: []string{"mistral-large-latest", "codestral-latest"},
		},
		{Key: "claude", Type: "anthropic", Err: "connection refused"},
	}

	res := m.Execute(context.Background(), "/models")
	for _, want := range []string{
		"mistral (openai_hosted)",
		"roles: orchestrator, reasoning",
		"models (2): mistral-large-latest, codestral-latest",
		"claude (anthropic)",
		"unavailable (connection refused)",
	} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("missing %q in:\n%s", want, res.Text)
		}
	}
}

func TestModelsElidesLongLists(t *testing.T) {
	m, p := newTestManager()
	models := make([]string, modelListMax+5)
	for i := range models {
		models[i] = "model-" + strings.Repeat("x", i%3)
	}
	p.endpoints = []EndpointModels{{Key: "big", Type: "openai_hosted", Models: models}}

	res := m.Execute(context.Background(), "/models")
	if !strings.Contains(res.Text, "... and 5 more") {
		t.Errorf("expected elision marker in:\n%s", res.Text)
	}
}

func TestConfigRedactsSecrets(t *testing.T) {
	m, p := newTestManager()
	cfg := config.Default()
	cfg.Search.BraveAPIKey = "brv-supersecret"
	cfg.Endpoints["hosted"] = config.EndpointConfig{Type: config.EndpointAnthropic, APIKey: "sk-ant-secret"}
	p.cfg = cfg

	res := m.Execute(context.Background(), "/config")
	if strings.Contains(res.Text, "supersecret") || strings.Contains(res.Text, "sk-ant") {
		t.Fatalf("secret leaked:\n%s", res.Text)
	}
	for _, want := range []string{"brave key: set", "key=set", "Config: /home/u/.ruzivo/ruzivo.json"} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("missing %q in:\n%s", want, res.Text)
		}
	}
}

func TestSavePassesName(t *testing.T) {
	m, p := newTestManager()
	res := m.Execute(context.Background(), "/save lithium-notes")
	if len(p.saved) != 1 || p.saved[0] != "lithium-notes" {
		t.Fatalf("saved = %v, want [lithium-notes]", p.saved)
	}
	if !strings.Contains(res.Text, `"lithium-notes"`) || !strings.Contains(res.Text, "1,234 tokens") {
		t.Errorf("text = %q", res.Text)
	}
}

func TestResumeRequiresName(t *testing.T) {
	m, p := newTestManager()
	res := m.Execute(context.Background(), "/resume")
	if !strings.Contains(res.Text, "Usage: /resume <name>") {
		t.Errorf("text = %q, want usage line", res.Text)
	}
	if len(p.resumed) != 0 {
		t.Errorf("resume ran without a name")
	}
}

func TestResumeReportsFailure(t *testing.T) {
	m, p := newTestManager()
	p.resumeErr = errors.New(`no saved session named "ghost"`)
	res := m.Execute(context.Background(), "/resume ghost")
	if res.Err == nil || !strings.Contains(res.Text, "Could not resume") {
		t.Errorf("res = %+v, want failure text and error", res)
	}
}

func TestHistoryEmptyAndPopulated(t *testing.T) {
	m, p := newTestManager()

	res := m.Execute(context.Background(), "/history")
	if !strings.Contains(res.Text, "No saved sessions yet") {
		t.Errorf("empty text = %q", res.Text)
	}

	p.sessions = []SessionSummary{
		{Name: "lithium", UpdatedAt: time.Now().Add(-3 * time.Hour), Turns: 4, Messages: 9},
	}
	res = m.Execute(context.Background(), "/history")
	if !strings.Contains(res.Text, "lithium") || !strings.Contains(res.Text, "4 turns") {
		t.Errorf("text = %q", res.Text)
	}
	if !strings.Contains(res.Text, "ago") {
		t.Errorf("expected a relative timestamp in %q", res.Text)
	}
}

func TestVisualizeListAndDetail(t *testing.T) {
	m, p := newTestManager()

	res := m.Execute(context.Background(), "/visualize")
	if !strings.Contains(res.Text, "No research runs saved yet") {
		t.Errorf("empty text = %q", res.Text)
	}

	run := &workflow.ResearchRun{
		ID:        "01JRUN",
		Query:     "grid storage economics",
		Synthesis: strings.Repeat("s", synthesisPreviewChars+100),
		Findings:  "Storage costs fell 40%.",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	run.Sources = []workflow.ScoredSource{
		newScoredSource("Reuters on storage", "https://reuters.com/a", workflow.CredibilityHigh),
		newScoredSource("Forum thread", "https://reddit.com/r/x", workflow.CredibilityLow),
	}
	p.runs = []workflow.ResearchRun{{ID: "01JRUN", Query: "grid storage economics", CreatedAt: run.CreatedAt}}
	p.runByID = map[string]*workflow.ResearchRun{"01JRUN": run}

	res = m.Execute(context.Background(), "/visualize")
	if !strings.Contains(res.Text, "01JRUN") || !strings.Contains(res.Text, "grid storage economics") {
		t.Errorf("list text = %q", res.Text)
	}

	res = m.Execute(context.Background(), "/visualize 01JRUN")
	for _, want := range []string{
		"Research 01JRUN",
		"[high  ] Reuters on storage",
		"[low   ] Forum thread",
		"1 high, 0 medium, 1 low",
		"Storage costs fell 40%.",
	} {
		if !strings.Contains(res.Text, want) {
			t.Errorf("missing %q in:\n%s", want, res.Text)
		}
	}
	if strings.Contains(res.Text, strings.Repeat("s", synthesisPreviewChars+1)) {
		t.Errorf("synthesis not truncated")
	}
}

func newScoredSource(title, url string, cred workflow.Credibility) workflow.ScoredSource {
	var src workflow.ScoredSource
	src.Title = title
	src.URL = url
	src.Credibility = cred
	return src
}
