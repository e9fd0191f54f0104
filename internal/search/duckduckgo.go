package search

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const (
	ddgAttempts = 3
	ddgUA       = "Mozilla/5.0 (X11; Linux x86_64; rv:124.0) Gecko/20100101 Firefox/124.0"
)

// Vars so tests can shrink the clock and point at a local server.
var (
	ddgEndpoint    = "https://html.duckduckgo.com/html/"
	ddgBackoffUnit = 2 * time.Second
)

// DuckDuckGoClient scrapes the keyless HTML endpoint. The first attempt
// caps TLS at 1.2 to dodge a handshake failure some middleboxes cause on
// 1.3; later attempts use the default stack.
type DuckDuckGoClient struct {
	tls12 *http.Client
	std   *http.Client
}

func NewDuckDuckGoClient(timeout time.Duration) *DuckDuckGoClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DuckDuckGoClient{
		tls12: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MaxVersion: tls.VersionTLS12},
			},
		},
		std: &http.Client{Timeout: timeout},
	}
}

// Text runs a text search: up to 3 attempts with 2·n second backoff.
func (d *DuckDuckGoClient) Text(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	var lastErr error
	for attempt := 0; attempt < ddgAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * ddgBackoffUnit
			L_debug("search: duckduckgo retrying", "attempt", attempt+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fault.Interrupted()
			}
		}

		client := d.std
		if attempt == 0 {
			client = d.tls12
		}
		results, err := d.fetch(ctx, client, query, maxResults)
		if err == nil {
			L_debug("search: duckduckgo", "query", query, "results", len(results), "attempt", attempt+1)
			return results, nil
		}
		lastErr = err
		if fault.IsKind(err, fault.KindInterrupted) {
			return nil, err
		}
	}
	return nil, fault.Network(lastErr, "duckduckgo failed after %d attempts", ddgAttempts)
}

func (d *DuckDuckGoClient) fetch(ctx context.Context, client *http.Client, query string, maxResults int) ([]types.SearchResult, error) {
	params := url.Values{"q": []string{query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ddgEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", ddgUA)
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return parseDDGHTML(resp.Body, maxResults)
}

// parseDDGHTML pulls result anchors out of the HTML listing. Each hit is a
// `result__a` link; the sibling `result__snippet` carries the description.
func parseDDGHTML(r io.Reader, maxResults int) ([]types.SearchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fault.Parse(err, "duckduckgo html")
	}

	var results []types.SearchResult
	var current *types.SearchResult

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults && current == nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				if current != nil {
					results = append(results, *current)
				}
				current = &types.SearchResult{
					Title: textContent(n),
					URL:   decodeDDGHref(attrValue(n, "href")),
				}
			case hasClass(n, "result__snippet") && current != nil:
				current.Description = textContent(n)
				results = append(results, *current)
				current = nil
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if current != nil && len(results) < maxResults {
		results = append(results, *current)
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// decodeDDGHref unwraps the redirect links the HTML endpoint emits
// (`//duckduckgo.com/l/?uddg=<target>`).
func decodeDDGHref(href string) string {
	if href == "" {
		return ""
	}
	if !strings.Contains(href, "uddg=") {
		if strings.HasPrefix(href, "//") {
			return "https:" + href
		}
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	target := u.Query().Get("uddg")
	if target == "" {
		return href
	}
	return target
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
