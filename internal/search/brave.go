package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const braveMaxCount = 20

// Vars so tests can point at a local server.
var (
	braveWebURL    = "https://api.search.brave.com/res/v1/web/search"
	braveNewsURL   = "https://api.search.brave.com/res/v1/news/search"
	braveImagesURL = "https://api.search.brave.com/res/v1/images/search"
)

// BraveClient queries the Brave Search API. One instance serves the web,
// news, and image endpoints; they differ only in URL and tuning params.
type BraveClient struct {
	apiKey string
	client *http.Client
}

// NewBraveClient builds a client; the API key may be empty, in which case
// every search fails with a config fault naming the missing key.
func NewBraveClient(apiKey string, timeout time.Duration) *BraveClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BraveClient{
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Web searches the web endpoint. count is clamped to the API maximum.
func (b *BraveClient) Web(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	params := url.Values{
		"q":                []string{query},
		"count":            []string{strconv.Itoa(clampCount(maxResults))},
		"text_decorations": []string{"false"},
		"search_lang":      []string{"en"},
	}
	body, err := b.get(ctx, braveWebURL, params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
				Age         string `json:"age"`
				PageAge     string `json:"page_age"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fault.Parse(err, "brave web response")
	}

	results := make([]types.SearchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		results = append(results, types.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Description:   r.Description,
			Age:           r.Age,
			PublishedDate: r.PageAge,
		})
	}
	L_debug("search: brave web", "query", query, "results", len(results))
	return results, nil
}

// News searches the news endpoint with past-day freshness.
func (b *BraveClient) News(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	params := url.Values{
		"q":         []string{query},
		"count":     []string{strconv.Itoa(clampCount(maxResults))},
		"freshness": []string{"pd"},
	}
	body, err := b.get(ctx, braveNewsURL, params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
			PageAge     string `json:"page_age"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fault.Parse(err, "brave news response")
	}

	results := make([]types.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, types.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Description:   r.Description,
			Age:           r.Age,
			PublishedDate: r.PageAge,
		})
	}
	L_debug("search: brave news", "query", query, "results", len(results))
	return results, nil
}

// Images searches the image endpoint with moderate safesearch.
func (b *BraveClient) Images(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	params := url.Values{
		"q":          []string{query},
		"count":      []string{strconv.Itoa(clampCount(maxResults))},
		"safesearch": []string{"moderate"},
	}
	body, err := b.get(ctx, braveImagesURL, params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			Title      string `json:"title"`
			URL        string `json:"url"`
			Source     string `json:"source"`
			Properties struct {
				URL string `json:"url"`
			} `json:"properties"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fault.Parse(err, "brave images response")
	}

	results := make([]types.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		imageURL := r.Properties.URL
		if imageURL == "" {
			imageURL = r.URL
		}
		results = append(results, types.SearchResult{
			Title:       r.Title,
			URL:         imageURL,
			Description: fmt.Sprintf("Image from %s", r.Source),
		})
	}
	L_debug("search: brave images", "query", query, "results", len(results))
	return results, nil
}

func (b *BraveClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if b.apiKey == "" {
		return nil, fault.Config("brave search key not configured").
			WithHint("set BRAVE_API_KEY or search.brave_api_key")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fault.Network(err, "brave search request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fault.Network(err, "brave search response")
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fault.Auth("brave search rejected the API key (status %d)", resp.StatusCode).
			WithHint("check BRAVE_API_KEY")
	}
	if resp.StatusCode != http.StatusOK {
		L_warn("search: brave non-200", "status", resp.StatusCode, "body_len", len(body))
		return nil, fault.Network(fmt.Errorf("status %d: %s", resp.StatusCode, truncateForLog(body)), "brave search")
	}
	return body, nil
}

func clampCount(n int) int {
	if n <= 0 {
		return 10
	}
	if n > braveMaxCount {
		return braveMaxCount
	}
	return n
}

func truncateForLog(body []byte) string {
	if len(body) > 200 {
		return string(body[:200]) + "..."
	}
	return string(body)
}
