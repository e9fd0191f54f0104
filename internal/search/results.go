// Package search implements the web and academic search primitives: source
// clients (Brave, DuckDuckGo, CORE, Sci-Hub), the result processor, the
// query optimizer, the answer cache, and the parallel fan-out helpers.
package search

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/types"
)

// DefaultMaxPerDomain caps how many results one domain contributes.
const DefaultMaxPerDomain = 2

// NormalizeURL canonicalizes a URL for dedup: lowercase scheme and host,
// strip a www. prefix and any trailing slash, drop the fragment, keep the
// query. Unparseable input comes back unchanged.
func NormalizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Path = strings.TrimRight(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

// Domain extracts the normalized host of a result URL, or "" when the
// URL does not parse.
func Domain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// Dedup drops later occurrences of the same normalized URL. Results
// without a URL always survive.
func Dedup(results []types.SearchResult) []types.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" {
			out = append(out, r)
			continue
		}
		key := NormalizeURL(r.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// Score rates a result's relevance to the query: +3 per query word in the
// title, +1 per word in the description, +5 for the whole phrase in the
// title, +2 for the phrase in the description, +0.5 per query word longer
// than three characters appearing in the domain.
func Score(r types.SearchResult, query string) float64 {
	phrase := strings.ToLower(strings.TrimSpace(query))
	if phrase == "" {
		return 0
	}
	title := strings.ToLower(r.Title)
	desc := strings.ToLower(r.Description)
	domain := Domain(r.URL)

	var score float64
	for _, word := range strings.Fields(phrase) {
		if strings.Contains(title, word) {
			score += 3
		}
		if strings.Contains(desc, word) {
			score += 1
		}
		if len(word) > 3 && strings.Contains(domain, word) {
			score += 0.5
		}
	}
	if strings.Contains(title, phrase) {
		score += 5
	}
	if strings.Contains(desc, phrase) {
		score += 2
	}
	return score
}

// Rank sorts results by descending score. The sort is stable, so equal
// scores preserve source order.
func Rank(results []types.SearchResult, query string) []types.SearchResult {
	type row struct {
		res   types.SearchResult
		score float64
	}
	rows := make([]row, len(results))
	for i, r := range results {
		rows[i] = row{res: r, score: Score(r, query)}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].score > rows[j].score })
	out := make([]types.SearchResult, len(rows))
	for i, r := range rows {
		out[i] = r.res
	}
	return out
}

// CapPerDomain keeps at most k results per domain. Results without a
// parseable domain pass through uncounted.
func CapPerDomain(results []types.SearchResult, k int) []types.SearchResult {
	if k <= 0 {
		k = DefaultMaxPerDomain
	}
	counts := make(map[string]int)
	out := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		domain := Domain(r.URL)
		if domain == "" {
			out = append(out, r)
			continue
		}
		if counts[domain] >= k {
			continue
		}
		counts[domain]++
		out = append(out, r)
	}
	return out
}

// Process runs the three stages in order: dedup, rank, domain cap.
func Process(results []types.SearchResult, query string, maxPerDomain int) []types.SearchResult {
	return CapPerDomain(Rank(Dedup(results), query), maxPerDomain)
}

// Merge flattens the given result sets and runs Process over the union.
// Used by the parallel web fan-out and the academic+web merge.
func Merge(sets [][]types.SearchResult, query string, maxPerDomain int) []types.SearchResult {
	var flat []types.SearchResult
	for _, set := range sets {
		flat = append(flat, set...)
	}
	return Process(flat, query, maxPerDomain)
}
