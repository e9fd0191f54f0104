package search

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// WebSearcher combines Brave and DuckDuckGo behind one call. In parallel
// mode both run concurrently and their sets merge; otherwise Brave leads
// and DuckDuckGo covers its failures.
type WebSearcher struct {
	brave        *BraveClient
	ddg          *DuckDuckGoClient
	parallel     bool
	maxPerDomain int
}

func NewWebSearcher(brave *BraveClient, ddg *DuckDuckGoClient, parallel bool, maxPerDomain int) *WebSearcher {
	return &WebSearcher{
		brave:        brave,
		ddg:          ddg,
		parallel:     parallel,
		maxPerDomain: maxPerDomain,
	}
}

// Search returns processed results for the query. When every source
// fails, the error names each one attempted so the user knows what broke.
func (w *WebSearcher) Search(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	if w.parallel {
		return w.searchParallel(ctx, query, maxResults)
	}
	return w.searchSequential(ctx, query, maxResults)
}

func (w *WebSearcher) searchParallel(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	var (
		mu       sync.Mutex
		sets     [][]types.SearchResult
		attempts []string
		failures []string
	)

	record := func(name string, results []types.SearchResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, name)
		if err != nil {
			failures = append(failures, name)
			L_warn("search: source failed", "source", name, "error", err)
			return
		}
		if len(results) > 0 {
			sets = append(sets, results)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := w.brave.Web(gctx, query, maxResults)
		record("brave", results, err)
		return nil
	})
	g.Go(func() error {
		results, err := w.ddg.Text(gctx, query, maxResults)
		record("duckduckgo", results, err)
		return nil
	})
	g.Wait()

	if ctx.Err() != nil {
		return nil, fault.Interrupted()
	}
	if len(sets) == 0 {
		if len(failures) == len(attempts) {
			return nil, fault.Network(nil, "no results: all sources failed (%s)", strings.Join(attempts, ", "))
		}
		return nil, nil
	}
	merged := Merge(sets, query, w.maxPerDomain)
	if len(merged) > maxResults && maxResults > 0 {
		merged = merged[:maxResults]
	}
	return merged, nil
}

func (w *WebSearcher) searchSequential(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error) {
	results, braveErr := w.brave.Web(ctx, query, maxResults)
	if braveErr == nil && len(results) > 0 {
		return Process(results, query, w.maxPerDomain), nil
	}
	if braveErr != nil {
		L_warn("search: brave failed, falling back to duckduckgo", "error", braveErr)
	}

	results, ddgErr := w.ddg.Text(ctx, query, maxResults)
	if ddgErr != nil {
		if fault.IsKind(ddgErr, fault.KindInterrupted) {
			return nil, ddgErr
		}
		if braveErr != nil {
			return nil, fault.Network(ddgErr, "no results: all sources failed (brave, duckduckgo)")
		}
		return nil, ddgErr
	}
	return Process(results, query, w.maxPerDomain), nil
}
