package search

import (
	"reflect"
	"sort"
	"testing"

	"github.com/ruzivolabs/ruzivo/internal/types"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase scheme and host", "HTTPS://Example.COM/Path", "https://example.com/Path"},
		{"strip www", "https://www.example.com/a", "https://example.com/a"},
		{"strip trailing slash", "https://example.com/a/", "https://example.com/a"},
		{"drop fragment", "https://example.com/a#section", "https://example.com/a"},
		{"keep query", "https://example.com/a?q=1&b=2", "https://example.com/a?q=1&b=2"},
		{"empty", "", ""},
		{"garbage preserved", "::not a url::", "::not a url::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDedupDropsLaterOccurrences(t *testing.T) {
	results := []types.SearchResult{
		{Title: "first", URL: "https://example.com/a"},
		{Title: "dup via www", URL: "https://www.example.com/a"},
		{Title: "dup via slash", URL: "https://example.com/a/"},
		{Title: "no url"},
		{Title: "other", URL: "https://other.com/b"},
		{Title: "no url again"},
	}
	got := Dedup(results)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4: %+v", len(got), got)
	}
	if got[0].Title != "first" || got[1].Title != "no url" || got[2].Title != "other" {
		t.Errorf("wrong survivors: %+v", got)
	}
}

func TestDedupIdempotent(t *testing.T) {
	results := []types.SearchResult{
		{URL: "https://a.com/1"},
		{URL: "https://www.a.com/1"},
		{URL: "https://b.com/2"},
		{Title: "urlless"},
	}
	once := Dedup(results)
	twice := Dedup(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedup not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestScore(t *testing.T) {
	query := "solar energy"
	tests := []struct {
		name string
		res  types.SearchResult
		want float64
	}{
		{
			"both words in title plus phrase",
			types.SearchResult{Title: "Solar energy outlook", URL: "https://news.com/1"},
			3 + 3 + 5,
		},
		{
			"one word in description",
			types.SearchResult{Title: "Power grids", Description: "solar panels everywhere", URL: "https://news.com/2"},
			1,
		},
		{
			"phrase in description",
			types.SearchResult{Description: "the solar energy market"},
			1 + 1 + 2,
		},
		{
			"domain word bonus",
			types.SearchResult{URL: "https://solarreview.com/x"},
			0.5,
		},
		{
			"no match",
			types.SearchResult{Title: "Gardening", Description: "tomatoes", URL: "https://veg.com"},
			0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.res, query); got != tt.want {
				t.Errorf("Score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankDescendingAndStable(t *testing.T) {
	results := []types.SearchResult{
		{Title: "nothing relevant", URL: "https://x.com/1"},
		{Title: "tie A", Description: "solar", URL: "https://a.com/1"},
		{Title: "solar energy report", URL: "https://y.com/1"},
		{Title: "tie B", Description: "solar", URL: "https://b.com/1"},
	}
	got := Rank(results, "solar energy")

	scores := make([]float64, len(got))
	for i, r := range got {
		scores[i] = Score(r, "solar energy")
	}
	if !sort.SliceIsSorted(scores, func(i, j int) bool { return scores[i] > scores[j] }) {
		t.Errorf("scores not non-increasing: %v", scores)
	}
	// Ties keep input order: tie A before tie B.
	posA, posB := -1, -1
	for i, r := range got {
		switch r.Title {
		case "tie A":
			posA = i
		case "tie B":
			posB = i
		}
	}
	if posA > posB {
		t.Errorf("stable sort violated: tie A at %d after tie B at %d", posA, posB)
	}
}

func TestCapPerDomain(t *testing.T) {
	results := []types.SearchResult{
		{Title: "1", URL: "https://example.com/1"},
		{Title: "2", URL: "https://www.example.com/2"},
		{Title: "3", URL: "https://example.com/3"},
		{Title: "other", URL: "https://other.com/1"},
		{Title: "no domain"},
	}
	got := CapPerDomain(results, 2)
	count := 0
	for _, r := range got {
		if Domain(r.URL) == "example.com" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("example.com results = %d, want 2", count)
	}
	// The urlless result and the other domain both survive.
	if len(got) != 4 {
		t.Errorf("len = %d, want 4: %+v", len(got), got)
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	x := []types.SearchResult{
		{Title: "solar energy basics", URL: "https://a.com/1"},
		{Title: "unrelated", URL: "https://b.com/1"},
	}
	y := []types.SearchResult{
		{Title: "solar energy basics", URL: "https://www.a.com/1"},
		{Title: "grid report", Description: "solar energy", URL: "https://c.com/1"},
	}

	xy := Merge([][]types.SearchResult{x, y}, "solar energy", 2)
	yx := Merge([][]types.SearchResult{y, x}, "solar energy", 2)

	if len(xy) != len(yx) {
		t.Fatalf("lengths differ: %d vs %d", len(xy), len(yx))
	}
	// Same multiset of normalized URLs regardless of input order.
	urls := func(rs []types.SearchResult) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = NormalizeURL(r.URL)
		}
		sort.Strings(out)
		return out
	}
	if !reflect.DeepEqual(urls(xy), urls(yx)) {
		t.Errorf("merge multisets differ:\nxy: %v\nyx: %v", urls(xy), urls(yx))
	}
}

func TestProcessPipeline(t *testing.T) {
	results := []types.SearchResult{
		{Title: "dup", URL: "https://site.com/page"},
		{Title: "dup", URL: "https://www.site.com/page/"},
		{Title: "solar energy exact", URL: "https://best.com/solar"},
		{Title: "site filler 1", URL: "https://site.com/2"},
		{Title: "site filler 2", URL: "https://site.com/3"},
	}
	got := Process(results, "solar energy", 2)

	if got[0].Title != "solar energy exact" {
		t.Errorf("best match not first: %+v", got[0])
	}
	siteCount := 0
	for _, r := range got {
		if Domain(r.URL) == "site.com" {
			siteCount++
		}
	}
	if siteCount > 2 {
		t.Errorf("site.com results = %d, want <= 2", siteCount)
	}
}
