package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const (
	extractMaxBytes   = 2 << 20
	extractMaxChars   = 5000
	extractTopResults = 3
	extractWorkers    = 3
)

// Extractor pulls readable article text out of result pages so synthesis
// can quote actual content instead of search snippets.
type Extractor struct {
	client *http.Client
}

func NewExtractor(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Extractor{client: &http.Client{Timeout: timeout}}
}

// EnrichResults fetches the top results concurrently and fills
// ExtractedContent with readable markdown. Failures leave the result
// untouched; snippets still carry the synthesis.
func (e *Extractor) EnrichResults(ctx context.Context, results []types.SearchResult) {
	n := len(results)
	if n > extractTopResults {
		n = extractTopResults
	}
	if n == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractWorkers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			content, err := e.Extract(gctx, results[i].URL)
			if err != nil {
				L_debug("search: content extraction failed", "url", results[i].URL, "error", err)
				return nil
			}
			results[i].ExtractedContent = content
			return nil
		})
	}
	g.Wait()
}

// Extract fetches one page and returns its readable content as markdown,
// capped at 5000 characters.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", fmt.Errorf("no url")
	}
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", ddgUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("not html: %s", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, extractMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	markdown, err := htmltomd.ConvertString(article.Content)
	if err != nil {
		// Markdown conversion is cosmetic; plain text still serves.
		L_debug("search: markdown conversion failed, using text", "url", pageURL, "error", err)
		markdown = article.TextContent
	}
	markdown = strings.TrimSpace(markdown)
	if len(markdown) > extractMaxChars {
		markdown = markdown[:extractMaxChars] + "\n\n[Content truncated...]"
	}
	return markdown, nil
}
