package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/search"
	"github.com/ruzivolabs/ruzivo/internal/types"
)

// Credibility is the per-source trust tier assigned during deep research.
type Credibility string

const (
	CredibilityHigh   Credibility = "high"
	CredibilityMedium Credibility = "medium"
	CredibilityLow    Credibility = "low"
)

// ScoredSource is a search result with its credibility tier attached.
type ScoredSource struct {
	types.SearchResult
	Credibility Credibility
}

// Domains whose published material is trusted outright: wire services,
// major outlets, journals, and intergovernmental bodies.
var highTrustDomains = map[string]bool{
	"reuters.com": true, "apnews.com": true, "bbc.com": true, "bbc.co.uk": true,
	"bloomberg.com": true, "ft.com": true, "economist.com": true,
	"nature.com": true, "science.org": true, "nejm.org": true, "thelancet.com": true,
	"arxiv.org": true, "ieee.org": true, "acm.org": true, "springer.com": true,
	"sciencedirect.com": true, "worldbank.org": true, "imf.org": true,
	"iea.org": true, "irena.org": true, "who.int": true, "un.org": true,
}

var highTrustSuffixes = []string{".gov", ".edu", ".mil", ".int", ".ac.za", ".ac.uk"}

// Domains dominated by user-generated or self-published content.
var lowTrustMarkers = []string{
	"blogspot.", "wordpress.", "medium.com", "substack.com", "tumblr.com",
	"reddit.com", "quora.com", "pinterest.", "facebook.com", "twitter.com",
	"x.com", "tiktok.com", "youtube.com", "fandom.com",
}

// ScoreSources assigns each result a credibility tier from three signals:
// domain reputation, publication recency, and cross-source agreement
// (another domain reporting the same story).
func ScoreSources(results []types.SearchResult) []ScoredSource {
	agreement := agreementCounts(results)
	scored := make([]ScoredSource, len(results))
	for i, r := range results {
		scored[i] = ScoredSource{
			SearchResult: r,
			Credibility:  scoreOne(r, agreement[i]),
		}
	}
	return scored
}

func scoreOne(r types.SearchResult, agreeingDomains int) Credibility {
	score := domainTier(search.Domain(r.URL))
	if publishedRecently(r) {
		score++
	}
	if agreeingDomains >= 1 {
		score++
	}
	switch {
	case score >= 3:
		return CredibilityHigh
	case score >= 1:
		return CredibilityMedium
	default:
		return CredibilityLow
	}
}

// domainTier maps a domain to a base score: 3 trusted, 1 unknown, 0
// user-generated. Unknown domains can still reach "high" when both the
// recency and agreement signals fire.
func domainTier(domain string) int {
	if domain == "" {
		return 0
	}
	if highTrustDomains[domain] {
		return 3
	}
	for _, suffix := range highTrustSuffixes {
		if strings.HasSuffix(domain, suffix) {
			return 3
		}
	}
	for _, marker := range lowTrustMarkers {
		if strings.Contains(domain, marker) {
			return 0
		}
	}
	return 1
}

// publishedRecently reports whether the result carries a parseable
// publication date within the last two years. Ages like "2 hours ago"
// count as recent on the hour/day/week markers.
func publishedRecently(r types.SearchResult) bool {
	if r.Age != "" {
		age := strings.ToLower(r.Age)
		for _, marker := range []string{"minute", "hour", "day", "week"} {
			if strings.Contains(age, marker) {
				return true
			}
		}
	}
	if r.PublishedDate == "" {
		return false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, r.PublishedDate); err == nil {
			return time.Since(ts) < 2*365*24*time.Hour
		}
	}
	return false
}

// agreementCounts returns, per result, how many other domains carry the
// same story (same DOI, or strong title word overlap).
func agreementCounts(results []types.SearchResult) []int {
	counts := make([]int, len(results))
	for i := range results {
		seen := map[string]bool{}
		for j := range results {
			if i == j {
				continue
			}
			di, dj := search.Domain(results[i].URL), search.Domain(results[j].URL)
			if dj == "" || dj == di || seen[dj] {
				continue
			}
			if sameStory(results[i], results[j]) {
				seen[dj] = true
				counts[i]++
			}
		}
	}
	return counts
}

func sameStory(a, b types.SearchResult) bool {
	if a.DOI != "" && strings.EqualFold(a.DOI, b.DOI) {
		return true
	}
	return titleOverlap(a.Title, b.Title) >= 0.5
}

// titleOverlap is the fraction of a's significant words found in b.
func titleOverlap(a, b string) float64 {
	aw := significantWords(a)
	if len(aw) == 0 {
		return 0
	}
	bw := map[string]bool{}
	for _, w := range significantWords(b) {
		bw[w] = true
	}
	hits := 0
	for _, w := range aw {
		if bw[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(aw))
}

func significantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,:;!?\"'()[]")
		if len(w) > 3 {
			words = append(words, w)
		}
	}
	return words
}

// CredibilitySummary renders the tier counts appended to a deep research
// synthesis.
func CredibilitySummary(sources []ScoredSource) string {
	var high, medium, low int
	for _, s := range sources {
		switch s.Credibility {
		case CredibilityHigh:
			high++
		case CredibilityLow:
			low++
		default:
			medium++
		}
	}
	return fmt.Sprintf("Source credibility: %d high, %d medium, %d low.", high, medium, low)
}
