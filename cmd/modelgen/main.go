// modelgen refreshes internal/llm/models.toml from the models.dev
// dataset. The hosted OpenAI adapter embeds that file and answers
// /models from it without a network call, so the table needs a
// regeneration pass whenever OpenAI ships new models.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const apiURL = "https://models.dev/api.json"

var httpClient = &http.Client{Timeout: 30 * time.Second}

// devModel is the slice of a models.dev record we keep.
type devModel struct {
	ID    string `json:"id"`
	Limit struct {
		Context int `json:"context"`
		Output  int `json:"output"`
	} `json:"limit"`
}

type devProvider struct {
	Models map[string]devModel `json:"models"`
}

// modelInfo mirrors llm.ModelInfo so the emitted file round-trips.
type modelInfo struct {
	Context   int `toml:"context"`
	MaxOutput int `toml:"max_output"`
}

const header = `# Hosted OpenAI model table. The hosted adapter answers /models from this
# file instead of hitting the network; context and max_output feed token
# budgeting. Regenerate with cmd/modelgen when OpenAI ships new models.

`

func main() {
	outPath := flag.String("out", "internal/llm/models.toml", "output file path")
	cacheDir := flag.String("cache-dir", ".cache/modelgen", "cache directory for the models.dev dump")
	provider := flag.String("provider", "openai", "models.dev provider to export")
	refresh := flag.Bool("refresh", false, "force re-fetch from remote, ignore cache")
	offline := flag.Bool("offline", false, "use cache only, fail if missing")
	flag.Parse()

	fmt.Fprintln(os.Stderr, "modelgen: fetching models.dev dataset...")
	data, err := fetchCached(apiURL, filepath.Join(*cacheDir, "api.json"), *refresh, *offline)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	var providers map[string]devProvider
	if err := json.Unmarshal(data, &providers); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse dataset: %v\n", err)
		os.Exit(1)
	}
	p, ok := providers[*provider]
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: provider %q not in dataset\n", *provider)
		os.Exit(1)
	}

	table := make(map[string]modelInfo, len(p.Models))
	for id, m := range p.Models {
		if m.Limit.Context == 0 {
			fmt.Fprintf(os.Stderr, "WARN: %s has no context limit, skipping\n", id)
			continue
		}
		table[id] = modelInfo{Context: m.Limit.Context, MaxOutput: m.Limit.Output}
	}
	if len(table) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no usable models for provider %q\n", *provider)
		os.Exit(1)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: create %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	if _, err := f.WriteString(header); err == nil {
		enc := toml.NewEncoder(f)
		enc.Indent = ""
		err = enc.Encode(table)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: write %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "modelgen: wrote %s (%d models)\n", *outPath, len(table))
}

// fetchCached retrieves the dataset, falling back to the local cache when
// the remote is unreachable. With offline set it never touches the
// network.
func fetchCached(url, cachePath string, refresh, offline bool) ([]byte, error) {
	if offline {
		data, err := os.ReadFile(cachePath)
		if err != nil {
			return nil, fmt.Errorf("offline mode: cache miss for %s: %w", cachePath, err)
		}
		return data, nil
	}

	if !refresh {
		if data, err := os.ReadFile(cachePath); err == nil {
			return data, nil
		}
	}

	resp, err := httpClient.Get(url)
	if err != nil {
		if data, err2 := os.ReadFile(cachePath); err2 == nil {
			fmt.Fprintf(os.Stderr, "WARN: fetch failed for %s, using cache: %v\n", url, err)
			return data, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if data, err2 := os.ReadFile(cachePath); err2 == nil {
			fmt.Fprintf(os.Stderr, "WARN: HTTP %d for %s, using cache\n", resp.StatusCode, url)
			return data, nil
		}
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err == nil {
		if err := os.WriteFile(cachePath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "WARN: failed to cache %s: %v\n", cachePath, err)
		}
	}
	return data, nil
}
