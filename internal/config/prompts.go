package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ruzivolabs/ruzivo/internal/logging"
)

// loadPrompts reads optional per-role system prompt overrides from
// prompts.yaml next to the config file. The file is a flat map:
//
//	reasoning: |
//	  You are a careful analyst...
//	codestral: ...
//
// A missing file is fine; a malformed one is logged and skipped so a bad
// edit never takes the orchestrator down.
func (c *Config) loadPrompts(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.L_warn("config: cannot read prompts file", "path", path, "error", err)
		}
		return
	}

	prompts := map[string]string{}
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		logging.L_warn("config: malformed prompts file, ignoring", "path", path, "error", err)
		return
	}

	c.Prompts = prompts
	logging.L_debug("config: prompt overrides loaded", "path", path, "roles", len(prompts))
}
