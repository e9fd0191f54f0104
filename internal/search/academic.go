package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const (
	academicWorkers = 7
	sciHubWorkers   = 10
	// DefaultPerSourceMax bounds what one source may contribute before the
	// merged ranking.
	DefaultPerSourceMax = 5
)

// siteSource is an academic source reached through a site:-scoped
// DuckDuckGo query.
type siteSource struct {
	name string
	site string
}

var siteSources = []siteSource{
	{"Scholar", "scholar.google.com"},
	{"PubMed", "pubmed.ncbi.nlm.nih.gov"},
	{"arXiv", "arxiv.org"},
	{"bioRxiv", "biorxiv.org"},
	{"medRxiv", "medrxiv.org"},
}

// PMC results come from a keyword query instead of site: scoping, which
// the engine applies unreliably there, then URL-pattern filtering.
var pmcURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ncbi\.nlm\.nih\.gov/pmc/articles/PMC\d+`),
	regexp.MustCompile(`pmc\.ncbi\.nlm\.nih\.gov/articles/PMC\d+`),
}

var doiRe = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)

// AcademicSearcher fans a query out to seven scholarly sources, dedups by
// DOI or title, and probes Sci-Hub for full text.
type AcademicSearcher struct {
	ddg          *DuckDuckGoClient
	core         *COREClient
	scihub       *SciHubClient
	perSourceMax int
}

func NewAcademicSearcher(ddg *DuckDuckGoClient, core *COREClient, scihub *SciHubClient, perSourceMax int) *AcademicSearcher {
	if perSourceMax <= 0 {
		perSourceMax = DefaultPerSourceMax
	}
	return &AcademicSearcher{
		ddg:          ddg,
		core:         core,
		scihub:       scihub,
		perSourceMax: perSourceMax,
	}
}

// Search runs the full academic pipeline. Individual source failures are
// logged and skipped; only all-sources-failed is an error. The context
// cancels all outstanding fetches on interrupt.
func (a *AcademicSearcher) Search(ctx context.Context, query string) ([]types.SearchResult, error) {
	sourceCount := len(siteSources) + 2 // + PMC + CORE
	sets := make([][]types.SearchResult, sourceCount)
	errs := make([]error, sourceCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(academicWorkers)

	for i, src := range siteSources {
		g.Go(func() error {
			sets[i], errs[i] = a.searchSite(gctx, src, query)
			return nil
		})
	}
	pmcIdx := len(siteSources)
	g.Go(func() error {
		sets[pmcIdx], errs[pmcIdx] = a.searchPMC(gctx, query)
		return nil
	})
	coreIdx := pmcIdx + 1
	g.Go(func() error {
		if !a.core.Enabled() {
			errs[coreIdx] = fault.Config("CORE API key not configured")
			return nil
		}
		sets[coreIdx], errs[coreIdx] = a.core.Search(gctx, query, a.perSourceMax)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fault.Interrupted()
	}

	var all []types.SearchResult
	failed := 0
	for i := range sets {
		if errs[i] != nil {
			failed++
			L_warn("search: academic source failed", "source", sourceName(i), "error", errs[i])
			continue
		}
		all = append(all, sets[i]...)
	}
	if failed == sourceCount {
		return nil, fault.Network(nil, "all academic sources failed (%s)", allSourceNames())
	}

	deduped := DedupAcademic(all)
	a.attachFullText(ctx, deduped)
	return deduped, nil
}

func (a *AcademicSearcher) searchSite(ctx context.Context, src siteSource, query string) ([]types.SearchResult, error) {
	results, err := a.ddg.Text(ctx, fmt.Sprintf("site:%s %s", src.site, query), a.perSourceMax)
	if err != nil {
		return nil, err
	}
	for i := range results {
		tagResult(&results[i], src.name)
	}
	return results, nil
}

func (a *AcademicSearcher) searchPMC(ctx context.Context, query string) ([]types.SearchResult, error) {
	results, err := a.ddg.Text(ctx, query+" PMC pubmed central full text", a.perSourceMax*2)
	if err != nil {
		return nil, err
	}
	var kept []types.SearchResult
	for _, r := range results {
		if !matchesPMC(r.URL) {
			continue
		}
		tagResult(&r, "PMC")
		kept = append(kept, r)
		if len(kept) >= a.perSourceMax {
			break
		}
	}
	return kept, nil
}

// attachFullText probes Sci-Hub for each result in a bounded worker pool
// and records the PDF URL on hits.
func (a *AcademicSearcher) attachFullText(ctx context.Context, results []types.SearchResult) {
	if a.scihub == nil || len(results) == 0 || ctx.Err() != nil {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sciHubWorkers)
	var mu sync.Mutex
	for i := range results {
		g.Go(func() error {
			key := results[i].DOI
			if key == "" {
				key = results[i].Title
			}
			pdfURL, ok := a.scihub.FindPDF(gctx, key)
			if !ok {
				return nil
			}
			mu.Lock()
			results[i].SciHubURL = pdfURL
			results[i].FullTextAvailable = true
			results[i].Description = strings.TrimSpace(results[i].Description) + " [Full Text Available]"
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

// tagResult stamps the source tag, prefixes the description with it, and
// backfills a DOI found in the URL.
func tagResult(r *types.SearchResult, source string) {
	r.SourceTag = source
	if !strings.HasPrefix(r.Description, "["+source+"]") {
		r.Description = strings.TrimSpace("[" + source + "] " + r.Description)
	}
	if r.DOI == "" {
		if doi := doiRe.FindString(r.URL); doi != "" {
			r.DOI = doi
		}
	}
}

func matchesPMC(url string) bool {
	for _, re := range pmcURLPatterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// DedupAcademic drops duplicate papers. A paper's identity is its DOI
// when known, otherwise its lowercased title.
func DedupAcademic(results []types.SearchResult) []types.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]types.SearchResult, 0, len(results))
	for _, r := range results {
		key := academicKey(r)
		if key != "" && seen[key] {
			continue
		}
		if key != "" {
			seen[key] = true
		}
		out = append(out, r)
	}
	return out
}

func academicKey(r types.SearchResult) string {
	if r.DOI != "" {
		return "doi:" + strings.ToLower(r.DOI)
	}
	title := strings.ToLower(strings.TrimSpace(r.Title))
	if title == "" {
		return ""
	}
	return "title:" + title
}

func sourceName(i int) string {
	if i < len(siteSources) {
		return siteSources[i].name
	}
	if i == len(siteSources) {
		return "PMC"
	}
	return "CORE"
}

func allSourceNames() string {
	names := make([]string, 0, len(siteSources)+2)
	for _, s := range siteSources {
		names = append(names, s.name)
	}
	names = append(names, "PMC", "CORE")
	return strings.Join(names, ", ")
}
