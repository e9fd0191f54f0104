package search

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// DefaultSciHubMirrors are probed in order until one yields a PDF.
var DefaultSciHubMirrors = []string{
	"https://sci-hub.se",
	"https://sci-hub.st",
	"https://sci-hub.ru",
}

const sciHubMaxMirrors = 3

// SciHubClient probes mirrors for full-text PDFs of papers. Everything
// that goes wrong counts as "not found"; the academic flow treats full
// text as a bonus, never a requirement.
type SciHubClient struct {
	mirrors []string
	client  *http.Client
}

func NewSciHubClient(mirrors []string, timeout time.Duration) *SciHubClient {
	if len(mirrors) == 0 {
		mirrors = DefaultSciHubMirrors
	}
	if len(mirrors) > sciHubMaxMirrors {
		mirrors = mirrors[:sciHubMaxMirrors]
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SciHubClient{
		mirrors: mirrors,
		client:  &http.Client{Timeout: timeout},
	}
}

// FindPDF fetches <mirror>/<DOI-or-title> on each mirror and scans the
// HTML for an embedded PDF or a download anchor. Returns the first
// absolute PDF URL found.
func (s *SciHubClient) FindPDF(ctx context.Context, doiOrTitle string) (string, bool) {
	if doiOrTitle == "" {
		return "", false
	}
	for _, mirror := range s.mirrors {
		if ctx.Err() != nil {
			return "", false
		}
		pdfURL, ok := s.probe(ctx, mirror, doiOrTitle)
		if ok {
			L_debug("search: sci-hub hit", "mirror", mirror, "pdf", pdfURL)
			return pdfURL, true
		}
	}
	return "", false
}

func (s *SciHubClient) probe(ctx context.Context, mirror, doiOrTitle string) (string, bool) {
	target := strings.TrimRight(mirror, "/") + "/" + url.PathEscape(doiOrTitle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", ddgUA)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	pdfURL := findPDFURL(io.LimitReader(resp.Body, 2<<20))
	if pdfURL == "" {
		return "", false
	}
	return absolutePDFURL(mirror, pdfURL), true
}

// findPDFURL scans parsed HTML for the PDF reference: an <embed> or
// <iframe> with a PDF src, or an anchor whose href points at a .pdf.
func findPDFURL(r io.Reader) string {
	doc, err := html.Parse(r)
	if err != nil {
		return ""
	}

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "embed", "iframe":
				src := attrValue(n, "src")
				if src != "" && (attrValue(n, "id") == "pdf" || strings.Contains(src, ".pdf") ||
					attrValue(n, "type") == "application/pdf") {
					found = src
					return
				}
			case "a":
				href := attrValue(n, "href")
				if strings.Contains(href, ".pdf") {
					found = href
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// absolutePDFURL resolves protocol-relative and path-relative PDF links
// against the mirror that served them.
func absolutePDFURL(mirror, pdfURL string) string {
	if strings.HasPrefix(pdfURL, "//") {
		return "https:" + pdfURL
	}
	if strings.HasPrefix(pdfURL, "http://") || strings.HasPrefix(pdfURL, "https://") {
		return pdfURL
	}
	base, err := url.Parse(mirror)
	if err != nil {
		return pdfURL
	}
	ref, err := url.Parse(pdfURL)
	if err != nil {
		return pdfURL
	}
	return base.ResolveReference(ref).String()
}
