// Package config loads the ruzivo configuration from ~/.ruzivo/ruzivo.json
// with environment fallbacks for secrets. The loaded Config is read-only
// from the orchestrator's perspective; the watcher swaps whole snapshots.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Specialist roles resolvable to endpoints via Config.Roles.
const (
	RoleOrchestrator  = "orchestrator"
	RoleCodestral     = "codestral"
	RoleReasoning     = "reasoning"
	RoleSearch        = "search"
	RoleIntent        = "intent_detector"
	RoleVision        = "vision"
	RoleImageGen      = "image_generation"
	RoleNehanda       = "nehanda"
	RoleSummarization = "summarization"
)

// Endpoint types, the tagged-union discriminator.
const (
	EndpointLocal      = "local"
	EndpointOpenAI     = "openai_compatible"
	EndpointOpenAIHost = "openai_hosted"
	EndpointAnthropic  = "anthropic"
	EndpointHFToolkit  = "hf_toolkit"
)

// EndpointConfig describes one provider endpoint.
type EndpointConfig struct {
	Type           string  `json:"type"`
	URL            string  `json:"url,omitempty"`
	BaseURL        string  `json:"base_url,omitempty"`
	APIKey         string  `json:"api_key,omitempty"`
	Model          string  `json:"model,omitempty"`
	ChatTemplate   string  `json:"chat_template,omitempty"` // hf_toolkit: mistral, chatml, alpaca, raw
	MaxTokens      int     `json:"max_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"` // nil means enabled
}

// IsEnabled treats a nil Enabled flag as true.
func (e EndpointConfig) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// OrchestratorConfig selects the main model driving tool-calling turns.
type OrchestratorConfig struct {
	Endpoint       string  `json:"endpoint"`
	Model          string  `json:"model,omitempty"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// SearchConfig holds web search keys and tunables.
type SearchConfig struct {
	BraveAPIKey         string `json:"brave_api_key,omitempty"`
	MaxResults          int    `json:"max_results"`
	MaxPerDomain        int    `json:"max_per_domain"`
	CacheEnabled        bool   `json:"cache"`
	CacheSize           int    `json:"cache_size"`
	VolatileTTLMinutes  int    `json:"volatile_ttl_minutes"`
	StableTTLMinutes    int    `json:"stable_ttl_minutes"`
	OptimizeQueries     bool   `json:"optimize_queries"`
	Parallel            bool   `json:"parallel"`
	ContentExtraction   bool   `json:"content_extraction"`
	Synthesize          bool   `json:"synthesize"`
	SynthesizeThreshold int    `json:"synthesize_threshold"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
}

// AcademicConfig holds academic source keys and caps.
type AcademicConfig struct {
	COREAPIKey    string   `json:"core_api_key,omitempty"`
	SciHubMirrors []string `json:"scihub_mirrors,omitempty"`
	PerSourceMax  int      `json:"per_source_max"`
}

// NewsroomConfig points at the internal newsroom service.
type NewsroomConfig struct {
	BaseURL        string `json:"base_url"`
	JWT            string `json:"jwt,omitempty"`
	DaysBack       int    `json:"days_back"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ConversationConfig bounds the in-memory conversation window.
type ConversationConfig struct {
	MaxMessages int  `json:"max_messages"`
	KeepRecent  int  `json:"keep_recent"`
	Summarize   bool `json:"summarize"`
}

// ToolsConfig bounds tool results and context injection.
type ToolsConfig struct {
	MaxResultChars  int `json:"max_result_chars"`
	MaxContextTools int `json:"max_context_tools"`
}

// DigestConfig controls scheduled digests.
type DigestConfig struct {
	Schedule string `json:"schedule,omitempty"` // 5-field cron expression
	Days     int    `json:"days"`
	Output   string `json:"output,omitempty"` // file path, empty = stdout
}

// RouterConfig holds the confidence threshold for the optional LLM fallback
// router. Deterministic routes ignore it.
type RouterConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// Config is the full configuration tree.
type Config struct {
	Orchestrator OrchestratorConfig        `json:"orchestrator"`
	Roles        map[string]string         `json:"roles"`     // role -> endpoint key
	Endpoints    map[string]EndpointConfig `json:"endpoints"` // endpoint key -> endpoint
	Search       SearchConfig              `json:"search"`
	Academic     AcademicConfig            `json:"academic"`
	Newsroom     NewsroomConfig            `json:"newsroom"`
	Conversation ConversationConfig        `json:"conversation"`
	Tools        ToolsConfig               `json:"tools"`
	Digest       DigestConfig              `json:"digest"`
	Router       RouterConfig              `json:"router"`
	Prompts      map[string]string         `json:"-"` // role -> system prompt override (prompts.yaml)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			Endpoint:       "local",
			MaxTokens:      2048,
			Temperature:    0.7,
			TimeoutSeconds: 120,
		},
		Roles: map[string]string{},
		Endpoints: map[string]EndpointConfig{
			"local": {Type: EndpointLocal, URL: "http://localhost:8080/v1"},
		},
		Search: SearchConfig{
			MaxResults:          10,
			MaxPerDomain:        2,
			CacheEnabled:        true,
			CacheSize:           128,
			VolatileTTLMinutes:  60,
			StableTTLMinutes:    24 * 60,
			OptimizeQueries:     true,
			Parallel:            true,
			ContentExtraction:   false,
			Synthesize:          true,
			SynthesizeThreshold: 3,
			TimeoutSeconds:      30,
		},
		Academic: AcademicConfig{
			SciHubMirrors: []string{"https://sci-hub.se", "https://sci-hub.st", "https://sci-hub.ru"},
			PerSourceMax:  5,
		},
		Newsroom: NewsroomConfig{
			DaysBack:       7,
			TimeoutSeconds: 10,
		},
		Conversation: ConversationConfig{
			MaxMessages: 50,
			KeepRecent:  10,
			Summarize:   true,
		},
		Tools: ToolsConfig{
			MaxResultChars:  10000,
			MaxContextTools: 3,
		},
		Digest: DigestConfig{
			Days: 7,
		},
		Router: RouterConfig{
			ConfidenceThreshold: 0.6,
		},
	}
}

// Dir returns the ruzivo config directory (~/.ruzivo).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ruzivo"
	}
	return filepath.Join(home, ".ruzivo")
}

// DefaultPath returns the default config file location, honoring
// RUZIVO_CONFIG when set.
func DefaultPath() string {
	if p := os.Getenv("RUZIVO_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "ruzivo.json")
}

// Load reads the config file at path (DefaultPath when empty), overlaying
// defaults. A missing file is not an error; defaults plus env apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.fillFromEnv()
	cfg.loadPrompts(filepath.Join(filepath.Dir(path), "prompts.yaml"))
	return cfg, nil
}

// fillFromEnv fills empty secrets from the environment.
func (c *Config) fillFromEnv() {
	if c.Search.BraveAPIKey == "" {
		c.Search.BraveAPIKey = os.Getenv("BRAVE_API_KEY")
	}
	if c.Newsroom.JWT == "" {
		c.Newsroom.JWT = os.Getenv("NEWSROOM_JWT")
	}
	if c.Academic.COREAPIKey == "" {
		c.Academic.COREAPIKey = os.Getenv("CORE_API_KEY")
	}
	for key, ep := range c.Endpoints {
		if ep.APIKey != "" {
			continue
		}
		switch ep.Type {
		case EndpointOpenAIHost:
			ep.APIKey = os.Getenv("OPENAI_API_KEY")
		case EndpointAnthropic:
			ep.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case EndpointHFToolkit:
			ep.APIKey = os.Getenv("HF_TOKEN")
		}
		c.Endpoints[key] = ep
	}
}

// Endpoint resolves an endpoint key, checking the enabled flag.
func (c *Config) Endpoint(key string) (EndpointConfig, error) {
	ep, ok := c.Endpoints[key]
	if !ok {
		return EndpointConfig{}, fmt.Errorf("unknown endpoint: %s", key)
	}
	if !ep.IsEnabled() {
		return EndpointConfig{}, fmt.Errorf("endpoint %s is disabled", key)
	}
	return ep, nil
}

// EndpointForRole resolves a specialist role to its endpoint. Roles without
// an explicit mapping fall back to the orchestrator endpoint.
func (c *Config) EndpointForRole(role string) (EndpointConfig, error) {
	key, ok := c.Roles[role]
	if !ok || key == "" {
		key = c.Orchestrator.Endpoint
	}
	return c.Endpoint(key)
}

// PromptOverride returns the configured system prompt for a role, if any.
func (c *Config) PromptOverride(role string) (string, bool) {
	p, ok := c.Prompts[role]
	return p, ok && p != ""
}
