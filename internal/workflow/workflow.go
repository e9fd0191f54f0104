// Package workflow implements the research pipelines: standard research
// (newsroom + web + synthesis), deep research (credibility scoring and a
// persisted run), and the continental news digest. Workflows report their
// lifecycle on the progress bus and degrade per source: one failed source
// is skipped, all sources failing ends the run.
package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/progress"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

// maxSourceChars bounds how much of any single source feeds the
// synthesis prompt.
const maxSourceChars = 5000

// maxSourceURLs bounds the URL listing per source in the Sources block.
const maxSourceURLs = 5

// Completer is the one LLM capability workflows need. Providers satisfy
// it; tests substitute canned responses.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// sourceBlock is one named body of raw fetched material. The text keeps
// "URL: http..." lines so the Sources section can be rebuilt from it.
type sourceBlock struct {
	name string
	text string
}

// emitter is a nil-safe wrapper over the progress bus.
type emitter struct {
	bus *progress.Bus
}

func (e emitter) emit(t progress.EventType, msg, nodeID, parentID string) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(progress.NewEvent(t, msg, nodeID, parentID))
}

// excerpt caps s at max bytes with a continuation marker.
func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// formatWebResults renders search results as numbered entries with
// URL: lines and any extracted page content.
func formatWebResults(results []types.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.Description != "" {
			fmt.Fprintf(&b, "   %s\n", r.Description)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		}
		if r.ExtractedContent != "" {
			fmt.Fprintf(&b, "   Content: %s\n", r.ExtractedContent)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// extractURLs pulls up to max URLs from "URL: http..." lines in a raw
// source text.
func extractURLs(text string, max int) []string {
	var urls []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "URL: http") {
			continue
		}
		urls = append(urls, strings.TrimSpace(strings.TrimPrefix(line, "URL:")))
		if len(urls) >= max {
			break
		}
	}
	return urls
}

// sourcesSection renders the trailing Sources block from the raw source
// texts, up to 5 URLs per source.
func sourcesSection(blocks []sourceBlock) string {
	var b strings.Builder
	b.WriteString("## Sources:\n")
	for _, blk := range blocks {
		urls := extractURLs(blk.text, maxSourceURLs)
		if len(urls) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n**%s:**\n", blk.name)
		for _, u := range urls {
			fmt.Fprintf(&b, "- %s\n", u)
		}
	}
	return strings.TrimSpace(b.String())
}
