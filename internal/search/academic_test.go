package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/types"
)

func TestTagResult(t *testing.T) {
	r := types.SearchResult{
		Title:       "Deep learning for protein folding",
		URL:         "https://doi.org/10.1038/s41586-021-03819-2",
		Description: "A neural network predicts structures.",
	}
	tagResult(&r, "Scholar")

	if r.SourceTag != "Scholar" {
		t.Errorf("source tag = %q", r.SourceTag)
	}
	if !strings.HasPrefix(r.Description, "[Scholar] ") {
		t.Errorf("description not tagged: %q", r.Description)
	}
	if r.DOI != "10.1038/s41586-021-03819-2" {
		t.Errorf("DOI not backfilled from URL: %q", r.DOI)
	}

	// Tagging twice must not stack prefixes.
	tagResult(&r, "Scholar")
	if strings.HasPrefix(r.Description, "[Scholar] [Scholar]") {
		t.Errorf("double tagged: %q", r.Description)
	}
}

func TestMatchesPMC(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.ncbi.nlm.nih.gov/pmc/articles/PMC8371605/", true},
		{"https://pmc.ncbi.nlm.nih.gov/articles/PMC9874412/", true},
		{"https://pubmed.ncbi.nlm.nih.gov/34265844/", false},
		{"https://example.com/pmc/articles/", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := matchesPMC(tt.url); got != tt.want {
				t.Errorf("matchesPMC(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestDedupAcademic(t *testing.T) {
	results := []types.SearchResult{
		{Title: "Paper A", DOI: "10.1000/a", URL: "https://scholar.google.com/a"},
		{Title: "Paper A retitled", DOI: "10.1000/A", URL: "https://pubmed.ncbi.nlm.nih.gov/a"},
		{Title: "Paper B", URL: "https://arxiv.org/abs/1"},
		{Title: "paper b", URL: "https://biorxiv.org/1"},
		{Title: "", URL: "https://example.com/1"},
		{Title: "", URL: "https://example.com/2"},
	}

	got := DedupAcademic(results)
	if len(got) != 4 {
		t.Fatalf("got %d results, want 4", len(got))
	}
	if got[0].DOI != "10.1000/a" || got[1].Title != "Paper B" {
		t.Errorf("wrong survivors: %+v", got[:2])
	}
	// Results with no DOI and no title cannot be identified, so both stay.
	if got[2].URL != "https://example.com/1" || got[3].URL != "https://example.com/2" {
		t.Errorf("keyless results dropped: %+v", got[2:])
	}
}

func TestDedupAcademicIdempotent(t *testing.T) {
	results := []types.SearchResult{
		{Title: "Paper A", DOI: "10.1000/a"},
		{Title: "Paper A", DOI: "10.1000/a"},
		{Title: "Paper B"},
	}
	once := DedupAcademic(results)
	twice := DedupAcademic(once)
	if len(once) != 2 || len(twice) != 2 {
		t.Errorf("len(once) = %d, len(twice) = %d, want 2", len(once), len(twice))
	}
}

func TestAcademicSearchTagsAndDedups(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "PMC pubmed central"):
			w.Write([]byte(`<html><body>
<a class="result__a" href="https://pmc.ncbi.nlm.nih.gov/articles/PMC1234567/">CRISPR base editors review</a>
<a class="result__snippet" href="#">Full text of the review.</a>
<a class="result__a" href="https://example.com/not-pmc">Unrelated blog post</a>
<a class="result__snippet" href="#">Filtered out by URL pattern.</a>
</body></html>`))
		case strings.Contains(q, "site:scholar.google.com"):
			w.Write([]byte(`<html><body>
<a class="result__a" href="https://journals.example/10.1000/crispr1">CRISPR screening in vivo</a>
<a class="result__snippet" href="#">Scholar copy of the paper.</a>
</body></html>`))
		case strings.Contains(q, "site:pubmed.ncbi.nlm.nih.gov"):
			w.Write([]byte(`<html><body>
<a class="result__a" href="https://doi.org/10.1000/crispr1">CRISPR screening in vivo</a>
<a class="result__snippet" href="#">PubMed copy of the same paper.</a>
</body></html>`))
		default:
			w.Write([]byte(`<html><body></body></html>`))
		}
	}))
	defer srv.Close()
	pointDDGAt(t, srv.URL)

	searcher := NewAcademicSearcher(
		NewDuckDuckGoClient(5*time.Second),
		NewCOREClient("", 5*time.Second), // disabled, counts as a failed source
		nil,                              // no full-text probing
		5,
	)

	results, err := searcher.Search(context.Background(), "CRISPR screening in vivo")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Scholar and PubMed return the same DOI, so one survives. The
	// non-PMC blog URL never passes the pattern filter.
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2: %+v", len(results), results)
	}
	paper := results[0]
	if paper.SourceTag != "Scholar" {
		t.Errorf("source tag = %q, want Scholar", paper.SourceTag)
	}
	if !strings.HasPrefix(paper.Description, "[Scholar] ") {
		t.Errorf("description = %q", paper.Description)
	}
	if paper.DOI != "10.1000/crispr1" {
		t.Errorf("DOI = %q", paper.DOI)
	}
	review := results[1]
	if review.SourceTag != "PMC" || !strings.HasPrefix(review.Description, "[PMC] ") {
		t.Errorf("second result = %+v, want PMC tagged", review)
	}
}

func TestAcademicSearchAllSourcesFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	pointDDGAt(t, srv.URL)

	searcher := NewAcademicSearcher(NewDuckDuckGoClient(5*time.Second), NewCOREClient("", 5*time.Second), nil, 5)
	if _, err := searcher.Search(context.Background(), "anything"); err == nil {
		t.Fatal("expected error when every source fails")
	}
}
