package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/newsroom"
	"github.com/ruzivolabs/ruzivo/internal/progress"
	"github.com/ruzivolabs/ruzivo/internal/search"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// ResearchConfig tunes the research pipeline. Zero values pick defaults.
type ResearchConfig struct {
	MaxResults     int  // web results fed to synthesis
	NewsroomDays   int  // how far back the newsroom fetch reaches
	NewsroomLimit  int  // article cap per fetch
	ExtractContent bool // fetch readable page content for top results
}

func (c ResearchConfig) withDefaults() ResearchConfig {
	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}
	if c.NewsroomDays <= 0 {
		c.NewsroomDays = 7
	}
	if c.NewsroomLimit <= 0 {
		c.NewsroomLimit = 20
	}
	return c
}

// Searcher runs a processed web search. *search.WebSearcher satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.SearchResult, error)
}

// ArticleFetcher pulls newsroom articles. *newsroom.Client satisfies it.
type ArticleFetcher interface {
	Enabled() bool
	FetchArticles(ctx context.Context, search string, limit int, dateFrom time.Time) ([]types.NewsroomArticle, error)
}

// Research runs the fixed three-step pipeline: newsroom (best-effort),
// web, synthesis with inline citations and a trailing Sources block.
type Research struct {
	synth   Completer
	news    ArticleFetcher
	web     Searcher
	extract *search.Extractor
	em      emitter
	cfg     ResearchConfig
}

func NewResearch(synth Completer, news ArticleFetcher, web Searcher, extract *search.Extractor, bus *progress.Bus, cfg ResearchConfig) *Research {
	return &Research{
		synth:   synth,
		news:    news,
		web:     web,
		extract: extract,
		em:      emitter{bus: bus},
		cfg:     cfg.withDefaults(),
	}
}

// Run executes the pipeline and returns the cited synthesis.
func (r *Research) Run(ctx context.Context, query string) (string, error) {
	start := time.Now()
	rootID := progress.NewNodeID()
	r.em.emit(progress.WorkflowStart, "Research: "+query, rootID, "")

	blocks, _, err := r.gather(ctx, query, rootID)
	if err != nil {
		r.em.emit(progress.WorkflowComplete, "Research failed", rootID, "")
		return "", err
	}

	text, err := r.synthesize(ctx, query, blocks, rootID)
	if err != nil {
		r.em.emit(progress.WorkflowComplete, "Research failed", rootID, "")
		return "", err
	}

	answer := text + "\n\n" + sourcesSection(blocks)
	r.em.emit(progress.WorkflowComplete,
		fmt.Sprintf("Research complete in %.1fs", time.Since(start).Seconds()), rootID, "")
	return answer, nil
}

// gather runs the two fetch steps. The newsroom is best-effort; the web
// step may also fail as long as the newsroom produced something.
func (r *Research) gather(ctx context.Context, query, rootID string) ([]sourceBlock, []types.SearchResult, error) {
	keywords := search.ExtractKeywords(query)
	var blocks []sourceBlock

	newsID := progress.NewNodeID()
	r.em.emit(progress.StepStart, "Fetching newsroom articles", newsID, rootID)
	if r.news != nil && r.news.Enabled() {
		from := time.Now().AddDate(0, 0, -r.cfg.NewsroomDays)
		articles, err := r.news.FetchArticles(ctx, keywords, r.cfg.NewsroomLimit, from)
		switch {
		case fault.IsKind(err, fault.KindInterrupted):
			return nil, nil, err
		case err != nil:
			r.em.emit(progress.StepError, "Newsroom skipped: "+err.Error(), newsID, rootID)
		case len(articles) == 0:
			r.em.emit(progress.StepComplete, "Newsroom: no matching articles", newsID, rootID)
		default:
			r.em.emit(progress.StepComplete, fmt.Sprintf("Newsroom: %d articles", len(articles)), newsID, rootID)
			blocks = append(blocks, sourceBlock{name: "Newsroom", text: newsroom.FormatArticles(articles)})
		}
	} else {
		r.em.emit(progress.StepComplete, "Newsroom not configured, skipping", newsID, rootID)
	}

	webID := progress.NewNodeID()
	r.em.emit(progress.StepStart, "Searching the web for: "+keywords, webID, rootID)
	webResults, err := r.web.Search(ctx, keywords, r.cfg.MaxResults)
	switch {
	case fault.IsKind(err, fault.KindInterrupted):
		return nil, nil, err
	case err != nil:
		r.em.emit(progress.StepError, "Web search failed: "+err.Error(), webID, rootID)
		L_warn("research: web search failed", "error", err)
	default:
		if r.cfg.ExtractContent && r.extract != nil {
			r.extract.EnrichResults(ctx, webResults)
		}
		r.em.emit(progress.StepComplete, fmt.Sprintf("Web: %d results", len(webResults)), webID, rootID)
		if len(webResults) > 0 {
			blocks = append(blocks, sourceBlock{name: "Web", text: formatWebResults(webResults)})
		}
	}

	if len(blocks) == 0 {
		return nil, nil, fault.Network(err, "research found nothing: newsroom and web both came up empty").
			WithHint("check network access and newsroom credentials")
	}
	return blocks, webResults, nil
}

// synthesize runs the synthesis call under a heartbeat so long calls
// stay visibly alive.
func (r *Research) synthesize(ctx context.Context, query string, blocks []sourceBlock, rootID string) (string, error) {
	synthID := progress.NewNodeID()
	r.em.emit(progress.StepStart, "Synthesizing findings", synthID, rootID)

	hb := startHeartbeat(r.em, synthID)
	resp, err := r.synth.Complete(ctx, llm.Request{
		Messages: synthesisMessages(query, blocks, time.Now()),
	})
	hb.Stop()

	if err != nil {
		r.em.emit(progress.StepError, "Synthesis failed: "+err.Error(), synthID, rootID)
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		r.em.emit(progress.StepError, "Synthesis returned nothing", synthID, rootID)
		return "", fault.InvalidResponse("synthesis model returned an empty answer")
	}
	r.em.emit(progress.StepComplete, "Synthesis ready", synthID, rootID)
	return text, nil
}

// synthesisMessages builds the prompt: the system message pins today's
// date and the citation rules, the user message carries the source
// excerpts.
func synthesisMessages(query string, blocks []sourceBlock, now time.Time) []types.Message {
	system := fmt.Sprintf(`You are a research analyst. Today's date is %s; interpret all relative dates against it.

Synthesize the source material below into one coherent answer to the question. Rules:
- Use only items relevant to the question; silently drop the rest.
- Cite every claim inline with its source tag: [Newsroom] or [Web].
- When sources disagree, say so explicitly and present both positions.
- Prefer recent material when freshness matters to the question.`,
		now.Format("Monday, January 2, 2006"))

	var b strings.Builder
	b.WriteString("Question: " + query + "\n")
	for _, blk := range blocks {
		fmt.Fprintf(&b, "\n=== %s RESULTS ===\n\n%s\n", strings.ToUpper(blk.name), excerpt(blk.text, maxSourceChars))
	}

	return []types.Message{
		types.SystemMessage(system),
		types.UserMessage(b.String()),
	}
}
