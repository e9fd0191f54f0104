package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/progress"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// DeepResearch extends the research pipeline with per-source credibility
// tiers, a persisted run, and a research id in the answer.
type DeepResearch struct {
	research *Research
	store    *ResearchStore
}

func NewDeepResearch(research *Research, store *ResearchStore) *DeepResearch {
	return &DeepResearch{research: research, store: store}
}

// Run executes the deep pipeline and returns the synthesis with the
// credibility summary, sources, and research id appended.
func (d *DeepResearch) Run(ctx context.Context, query string) (string, error) {
	start := time.Now()
	r := d.research
	rootID := progress.NewNodeID()
	r.em.emit(progress.WorkflowStart, "Deep research: "+query, rootID, "")

	blocks, webResults, err := r.gather(ctx, query, rootID)
	if err != nil {
		r.em.emit(progress.WorkflowComplete, "Deep research failed", rootID, "")
		return "", err
	}

	scored := ScoreSources(webResults)
	annotateCredibility(blocks, scored)

	text, err := r.synthesize(ctx, query, blocks, rootID)
	if err != nil {
		r.em.emit(progress.WorkflowComplete, "Deep research failed", rootID, "")
		return "", err
	}

	summary := CredibilitySummary(scored)
	var answer strings.Builder
	answer.WriteString(text)
	answer.WriteString("\n\n")
	answer.WriteString(summary)
	answer.WriteString("\n\n")
	answer.WriteString(sourcesSection(blocks))

	if d.store != nil {
		saveID := progress.NewNodeID()
		r.em.emit(progress.StepStart, "Saving research run", saveID, rootID)
		id, err := d.store.SaveRun(&ResearchRun{
			Query:     query,
			Synthesis: text,
			Findings:  summary,
			Sources:   scored,
		})
		if err != nil {
			// The answer stands even when persistence fails.
			r.em.emit(progress.StepError, "Save failed: "+err.Error(), saveID, rootID)
			L_warn("deep research: save failed", "error", err)
		} else {
			r.em.emit(progress.StepComplete, "Saved as "+id, saveID, rootID)
			fmt.Fprintf(&answer, "\n\nResearch ID: %s", id)
		}
	}

	r.em.emit(progress.WorkflowComplete,
		fmt.Sprintf("Deep research complete in %.1fs", time.Since(start).Seconds()), rootID, "")
	return answer.String(), nil
}

// annotateCredibility rewrites the Web block with per-result credibility
// markers so the synthesis can weigh sources.
func annotateCredibility(blocks []sourceBlock, scored []ScoredSource) {
	if len(scored) == 0 {
		return
	}
	for i := range blocks {
		if blocks[i].name != "Web" {
			continue
		}
		var b strings.Builder
		for j, src := range scored {
			fmt.Fprintf(&b, "%d. %s [credibility: %s]\n", j+1, src.Title, src.Credibility)
			if src.Description != "" {
				fmt.Fprintf(&b, "   %s\n", src.Description)
			}
			if src.URL != "" {
				fmt.Fprintf(&b, "   URL: %s\n", src.URL)
			}
			if src.ExtractedContent != "" {
				fmt.Fprintf(&b, "   Content: %s\n", src.ExtractedContent)
			}
			b.WriteString("\n")
		}
		blocks[i].text = strings.TrimSpace(b.String())
	}
}
