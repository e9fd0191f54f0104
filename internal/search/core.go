package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const coreSearchURL = "https://api.core.ac.uk/v3/search/works"

// COREClient queries the CORE aggregator of open-access papers.
type COREClient struct {
	apiKey string
	client *http.Client
}

func NewCOREClient(apiKey string, timeout time.Duration) *COREClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &COREClient{
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an API key is configured.
func (c *COREClient) Enabled() bool { return c != nil && c.apiKey != "" }

// Search queries CORE works. Author lists are shortened to the first three
// names plus "et al.".
func (c *COREClient) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if !c.Enabled() {
		return nil, fault.Config("CORE API key not configured").WithHint("set CORE_API_KEY")
	}
	if limit <= 0 {
		limit = 5
	}

	params := url.Values{
		"q":     []string{query},
		"limit": []string{strconv.Itoa(limit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coreSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fault.Network(err, "CORE request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fault.Network(err, "CORE response")
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fault.Auth("CORE rejected the API key (status %d)", resp.StatusCode).
			WithHint("check CORE_API_KEY")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fault.Network(fmt.Errorf("status %d: %s", resp.StatusCode, truncateForLog(body)), "CORE search")
	}

	var parsed struct {
		Results []struct {
			Title         string `json:"title"`
			DOI           string `json:"doi"`
			YearPublished int    `json:"yearPublished"`
			CitationCount int    `json:"citationCount"`
			DownloadURL   string `json:"downloadUrl"`
			Authors       []struct {
				Name string `json:"name"`
			} `json:"authors"`
			Links []struct {
				Type string `json:"type"`
				URL  string `json:"url"`
			} `json:"links"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fault.Parse(err, "CORE response")
	}

	results := make([]types.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		link := r.DownloadURL
		if link == "" {
			for _, l := range r.Links {
				if l.Type == "display" {
					link = l.URL
					break
				}
			}
		}

		desc := fmt.Sprintf("[CORE] %s", formatAuthors(authorNames(r.Authors)))
		if r.YearPublished > 0 {
			desc += fmt.Sprintf(" (%d)", r.YearPublished)
		}
		if r.CitationCount > 0 {
			desc += fmt.Sprintf(", %d citations", r.CitationCount)
		}

		results = append(results, types.SearchResult{
			Title:         r.Title,
			URL:           link,
			Description:   desc,
			DOI:           r.DOI,
			Year:          r.YearPublished,
			CitationCount: r.CitationCount,
			SourceTag:     "CORE",
		})
	}
	L_debug("search: CORE", "query", query, "results", len(results))
	return results, nil
}

func authorNames(authors []struct {
	Name string `json:"name"`
}) []string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return names
}

// formatAuthors renders the first three authors plus "et al." when more
// follow.
func formatAuthors(names []string) string {
	if len(names) == 0 {
		return "Unknown authors"
	}
	if len(names) <= 3 {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:3], ", ") + " et al."
}
