package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// WebSearcher runs a processed web search. *search.WebSearcher
// satisfies it.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error)
}

// AcademicSearcher fans out scholarly sources. *search.AcademicSearcher
// satisfies it.
type AcademicSearcher interface {
	Search(ctx context.Context, query string) ([]types.SearchResult, error)
}

// WebSearchTool searches the web and returns formatted results.
type WebSearchTool struct {
	searcher   WebSearcher
	maxResults int
}

func NewWebSearchTool(searcher WebSearcher, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 10
	}
	return &WebSearchTool{searcher: searcher, maxResults: maxResults}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for current information. Returns titles, descriptions, and URLs."
}

func (t *WebSearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to search for.",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Optional: number of results to return (1-20).",
			},
		},
		"required": []string{"query"},
	}
}

type webSearchInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (t *WebSearchTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params webSearchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("web_search: invalid input: %v", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return "", fault.InvalidArgument("web_search: query is required")
	}

	max := params.MaxResults
	if max <= 0 {
		max = t.maxResults
	}
	if max > 20 {
		max = 20
	}

	results, err := t.searcher.Search(ctx, params.Query, max)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No web results found for %q.", params.Query), nil
	}

	L_info("web_search: results", "query", params.Query, "count", len(results))
	return formatSearchResults(params.Query, results), nil
}

// AcademicSearchTool searches scholarly sources and returns formatted
// results with full-text links where Sci-Hub found one.
type AcademicSearchTool struct {
	searcher AcademicSearcher
}

func NewAcademicSearchTool(searcher AcademicSearcher) *AcademicSearchTool {
	return &AcademicSearchTool{searcher: searcher}
}

func (t *AcademicSearchTool) Name() string { return "academic_search" }

func (t *AcademicSearchTool) Description() string {
	return "Search scholarly sources (Scholar, PubMed, CORE, arXiv, bioRxiv, medRxiv, PMC) for papers. Returns citations, DOIs, and full-text links when available."
}

func (t *AcademicSearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The research topic or paper to find.",
			},
		},
		"required": []string{"query"},
	}
}

type academicSearchInput struct {
	Query string `json:"query"`
}

func (t *AcademicSearchTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params academicSearchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fault.InvalidArgument("academic_search: invalid input: %v", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return "", fault.InvalidArgument("academic_search: query is required")
	}

	results, err := t.searcher.Search(ctx, params.Query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No academic results found for %q.", params.Query), nil
	}

	L_info("academic_search: results", "query", params.Query, "count", len(results))
	return formatAcademicResults(params.Query, results), nil
}

// formatSearchResults renders web results as numbered entries.
func formatSearchResults(query string, results []types.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d results for %q:\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
		if r.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Description)
		}
		if r.URL != "" {
			fmt.Fprintf(&sb, "   URL: %s\n", r.URL)
		}
		if r.PublishedDate != "" {
			fmt.Fprintf(&sb, "   Published: %s\n", r.PublishedDate)
		} else if r.Age != "" {
			fmt.Fprintf(&sb, "   Age: %s\n", r.Age)
		}
		if r.ExtractedContent != "" {
			fmt.Fprintf(&sb, "   Content: %s\n", r.ExtractedContent)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}

// formatAcademicResults renders scholarly results with their metadata.
func formatAcademicResults(query string, results []types.SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d academic results for %q:\n\n", len(results), query)
	for i, r := range results {
		title := r.Title
		if r.SourceTag != "" && !strings.Contains(title, r.SourceTag) {
			title = fmt.Sprintf("%s [%s]", title, r.SourceTag)
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, title)
		if r.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Description)
		}

		var meta []string
		if r.Year != 0 {
			meta = append(meta, fmt.Sprintf("Year: %d", r.Year))
		}
		if r.CitationCount > 0 {
			meta = append(meta, fmt.Sprintf("Citations: %d", r.CitationCount))
		}
		if r.DOI != "" {
			meta = append(meta, "DOI: "+r.DOI)
		}
		if len(meta) > 0 {
			fmt.Fprintf(&sb, "   %s\n", strings.Join(meta, " | "))
		}
		if r.URL != "" {
			fmt.Fprintf(&sb, "   URL: %s\n", r.URL)
		}
		if r.FullTextAvailable && r.SciHubURL != "" {
			fmt.Fprintf(&sb, "   Full text: %s\n", r.SciHubURL)
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String())
}
