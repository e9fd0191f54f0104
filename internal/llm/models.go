package llm

import (
	_ "embed"
	"sort"

	"github.com/BurntSushi/toml"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

//go:embed models.toml
var modelsTOML []byte

// ModelInfo describes a hosted model's token limits.
type ModelInfo struct {
	Context   int `toml:"context"`
	MaxOutput int `toml:"max_output"`
}

var hostedModels = loadHostedModels()

func loadHostedModels() map[string]ModelInfo {
	models := make(map[string]ModelInfo)
	if err := toml.Unmarshal(modelsTOML, &models); err != nil {
		// Embedded data, so this only fires on a bad edit to models.toml.
		L_warn("failed to parse embedded model table", "error", err)
	}
	return models
}

// HostedModelIDs returns the known hosted model names, sorted.
func HostedModelIDs() []string {
	ids := make([]string, 0, len(hostedModels))
	for id := range hostedModels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HostedModelInfo looks up token limits for a hosted model.
func HostedModelInfo(id string) (ModelInfo, bool) {
	info, ok := hostedModels[id]
	return info, ok
}
