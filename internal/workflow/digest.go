package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"
	"github.com/ruzivolabs/ruzivo/internal/llm"
	"github.com/ruzivolabs/ruzivo/internal/progress"
	"github.com/ruzivolabs/ruzivo/internal/types"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

const (
	digestMaxDays     = 90
	digestDefaultDays = 7
	articlesPerDay    = 50
	continentMax      = 6
	trendCount        = 3
)

// Continent rendering order. Every digest has all seven sections even
// when a continent collected nothing.
var continentOrder = []string{"Africa", "Americas", "Asia", "Europe", "Middle East", "Oceania", "Global"}

// Geography tags mapped to continents. An article matching several
// continents goes to the first in continentOrder.
var continentTags = map[string]string{
	"africa": "Africa", "west africa": "Africa", "east africa": "Africa",
	"north africa": "Africa", "southern africa": "Africa", "sub-saharan africa": "Africa",
	"americas": "Americas", "north america": "Americas", "south america": "Americas",
	"latin america": "Americas", "central america": "Americas", "caribbean": "Americas",
	"asia": "Asia", "east asia": "Asia", "south asia": "Asia",
	"southeast asia": "Asia", "central asia": "Asia",
	"europe": "Europe", "western europe": "Europe", "eastern europe": "Europe",
	"eu": "Europe", "european union": "Europe",
	"middle east": "Middle East", "gulf": "Middle East", "mena": "Middle East",
	"oceania": "Oceania", "pacific": "Oceania", "australasia": "Oceania",
	"global": "Global", "world": "Global", "international": "Global",
}

// Digest builds the periodic continental news digest from newsroom
// articles: meta-trends first, then one section per continent.
type Digest struct {
	reason Completer
	news   ArticleFetcher
	em     emitter
}

func NewDigest(reason Completer, news ArticleFetcher, bus *progress.Bus) *Digest {
	return &Digest{reason: reason, news: news, em: emitter{bus: bus}}
}

// Run produces the digest markdown for the last days of coverage,
// optionally filtered to a topic.
func (d *Digest) Run(ctx context.Context, days int, topic string) (string, error) {
	if d.news == nil || !d.news.Enabled() {
		return "", fault.Config("digest needs the newsroom").
			WithHint("set newsroom.url and NEWSROOM_JWT")
	}
	if days <= 0 {
		days = digestDefaultDays
	}
	if days > digestMaxDays {
		days = digestMaxDays
	}

	rootID := progress.NewNodeID()
	title := fmt.Sprintf("Digest: last %d days", days)
	if topic != "" {
		title += " on " + topic
	}
	d.em.emit(progress.WorkflowStart, title, rootID, "")

	fetchID := progress.NewNodeID()
	d.em.emit(progress.StepStart, "Fetching newsroom articles", fetchID, rootID)
	from := time.Now().AddDate(0, 0, -days)
	articles, err := d.news.FetchArticles(ctx, "", articlesPerDay*days, from)
	if err != nil {
		d.em.emit(progress.StepError, "Newsroom fetch failed: "+err.Error(), fetchID, rootID)
		d.em.emit(progress.WorkflowComplete, "Digest failed", rootID, "")
		return "", err
	}
	d.em.emit(progress.StepComplete, fmt.Sprintf("Fetched %d articles", len(articles)), fetchID, rootID)

	if topic != "" {
		articles = filterByTopic(articles, topic)
		L_debug("digest: topic filter", "topic", topic, "kept", len(articles))
	}
	if len(articles) == 0 {
		d.em.emit(progress.WorkflowComplete, "Digest empty", rootID, "")
		return fmt.Sprintf("No newsroom coverage found for the last %d days%s.", days, topicSuffix(topic)), nil
	}

	trendID := progress.NewNodeID()
	d.em.emit(progress.StepStart, "Identifying trends", trendID, rootID)
	trends := d.findTrends(ctx, articles, topic)
	d.em.emit(progress.StepComplete, fmt.Sprintf("%d trends identified", len(trends)), trendID, rootID)

	buckets := assignContinents(articles)

	sumID := progress.NewNodeID()
	d.em.emit(progress.StepStart, "Summarizing by continent", sumID, rootID)
	summaries := d.summarizeContinents(ctx, buckets)
	d.em.emit(progress.StepComplete, "Continental summaries ready", sumID, rootID)

	out := renderDigest(days, topic, trends, buckets, summaries)
	d.em.emit(progress.WorkflowComplete, "Digest ready", rootID, "")
	return out, nil
}

func topicSuffix(topic string) string {
	if topic == "" {
		return ""
	}
	return " on " + topic
}

// filterByTopic keeps articles scoring at least 2 against the topic:
// +3 per topic word in the headline, +2 per topic word in the tags,
// +5 for the full phrase in the headline, +3 for the full phrase in a
// tag.
func filterByTopic(articles []types.NewsroomArticle, topic string) []types.NewsroomArticle {
	var kept []types.NewsroomArticle
	for _, a := range articles {
		if topicScore(a, topic) >= 2 {
			kept = append(kept, a)
		}
	}
	return kept
}

func topicScore(a types.NewsroomArticle, topic string) int {
	phrase := strings.ToLower(strings.TrimSpace(topic))
	if phrase == "" {
		return 0
	}
	headline := strings.ToLower(a.Headline)
	headlineWords := map[string]bool{}
	for _, w := range strings.Fields(headline) {
		headlineWords[strings.Trim(w, ".,:;!?\"'()")] = true
	}
	tags := make([]string, 0, len(a.TopicTags))
	for _, tag := range a.TopicTags {
		tags = append(tags, strings.ToLower(tag))
	}

	score := 0
	for _, word := range strings.Fields(phrase) {
		if headlineWords[word] {
			score += 3
		}
		for _, tag := range tags {
			if strings.Contains(tag, word) {
				score += 2
				break
			}
		}
	}
	if strings.Contains(headline, phrase) {
		score += 5
	}
	for _, tag := range tags {
		if strings.Contains(tag, phrase) {
			score += 3
			break
		}
	}
	return score
}

type trend struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// findTrends asks the reasoning model for exactly three meta-trends in
// strict JSON; any shortfall falls back to topic-tag frequency.
func (d *Digest) findTrends(ctx context.Context, articles []types.NewsroomArticle, topic string) []trend {
	trends, err := d.trendsFromModel(ctx, articles, topic)
	if err == nil {
		return trends
	}
	L_warn("digest: trend call failed, using tag frequency", "error", err)
	return fallbackTrends(articles)
}

func (d *Digest) trendsFromModel(ctx context.Context, articles []types.NewsroomArticle, topic string) ([]trend, error) {
	if d.reason == nil {
		return nil, fault.Config("no reasoning endpoint for digest trends")
	}

	var sample strings.Builder
	for i, a := range articles {
		if i >= 100 {
			break
		}
		fmt.Fprintf(&sample, "- %s [%s]\n", a.Headline, strings.Join(a.TopicTags, ", "))
	}

	focus := ""
	if topic != "" {
		focus = fmt.Sprintf(" The reader cares specifically about %s.", topic)
	}
	prompt := fmt.Sprintf(`These are news headlines from the last period.%s

%s
Identify exactly %d meta-trends that connect multiple headlines. Respond with ONLY this JSON, no prose:
{"trends": [{"title": "...", "description": "..."}, {"title": "...", "description": "..."}, {"title": "...", "description": "..."}]}`,
		focus, sample.String(), trendCount)

	resp, err := d.reason.Complete(ctx, llm.Request{
		Messages: []types.Message{types.UserMessage(prompt)},
	})
	if err != nil {
		return nil, err
	}

	raw, ok := llm.ExtractJSON(resp.Text())
	if !ok {
		return nil, fault.Parse(nil, "trend response carried no JSON")
	}
	var parsed struct {
		Trends []trend `json:"trends"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fault.Parse(err, "trend response")
	}
	if len(parsed.Trends) != trendCount {
		return nil, fault.Parse(nil, "expected %d trends, got %d", trendCount, len(parsed.Trends))
	}
	return parsed.Trends, nil
}

// fallbackTrends enumerates the three most frequent topic tags.
func fallbackTrends(articles []types.NewsroomArticle) []trend {
	freq := map[string]int{}
	for _, a := range articles {
		for _, tag := range a.TopicTags {
			if tag != "" {
				freq[tag]++
			}
		}
	}
	tags := make([]string, 0, len(freq))
	for tag := range freq {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool {
		if freq[tags[i]] != freq[tags[j]] {
			return freq[tags[i]] > freq[tags[j]]
		}
		return tags[i] < tags[j]
	})

	trends := make([]trend, 0, trendCount)
	for _, tag := range tags {
		if len(trends) == trendCount {
			break
		}
		trends = append(trends, trend{
			Title:       tag,
			Description: fmt.Sprintf("%d articles tagged %s this period.", freq[tag], tag),
		})
	}
	for len(trends) < trendCount {
		trends = append(trends, trend{
			Title:       "Coverage volume",
			Description: fmt.Sprintf("%d articles in the period overall.", len(articles)),
		})
	}
	return trends
}

// assignContinents places each article in exactly one continent bucket.
// Tag matches follow continentOrder priority; a second pass fills
// Global with untagged articles until it holds six.
func assignContinents(articles []types.NewsroomArticle) map[string][]types.NewsroomArticle {
	buckets := make(map[string][]types.NewsroomArticle, len(continentOrder))
	var untagged []types.NewsroomArticle

	for _, a := range articles {
		continent := continentFor(a)
		if continent == "" {
			untagged = append(untagged, a)
			continue
		}
		if len(buckets[continent]) < continentMax {
			buckets[continent] = append(buckets[continent], a)
		}
	}

	for _, a := range untagged {
		if len(buckets["Global"]) >= continentMax {
			break
		}
		buckets["Global"] = append(buckets["Global"], a)
	}
	return buckets
}

func continentFor(a types.NewsroomArticle) string {
	matched := map[string]bool{}
	for _, tag := range a.GeographyTags {
		if continent, ok := continentTags[strings.ToLower(strings.TrimSpace(tag))]; ok {
			matched[continent] = true
		}
	}
	for _, continent := range continentOrder {
		if matched[continent] {
			return continent
		}
	}
	return ""
}

// summarizeContinents runs one strict-JSON reasoning call per non-empty
// continent. A failed call leaves that continent without a summary
// paragraph; the headline list still renders.
func (d *Digest) summarizeContinents(ctx context.Context, buckets map[string][]types.NewsroomArticle) map[string]string {
	summaries := make(map[string]string, len(buckets))
	if d.reason == nil {
		return summaries
	}
	for _, continent := range continentOrder {
		articles := buckets[continent]
		if len(articles) == 0 {
			continue
		}
		summary, err := d.summarizeOne(ctx, continent, articles)
		if err != nil {
			L_warn("digest: continent summary failed", "continent", continent, "error", err)
			continue
		}
		summaries[continent] = summary
	}
	return summaries
}

func (d *Digest) summarizeOne(ctx context.Context, continent string, articles []types.NewsroomArticle) (string, error) {
	var list strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&list, "- %s (%s)\n", a.Headline, a.Source)
	}
	prompt := fmt.Sprintf(`Summarize this period's %s coverage in 2-3 sentences. Headlines:

%s
Respond with ONLY this JSON, no prose:
{"summary": "..."}`, continent, list.String())

	resp, err := d.reason.Complete(ctx, llm.Request{
		Messages: []types.Message{types.UserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	raw, ok := llm.ExtractJSON(resp.Text())
	if !ok {
		return "", fault.Parse(nil, "summary response carried no JSON")
	}
	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fault.Parse(err, "summary response")
	}
	return strings.TrimSpace(parsed.Summary), nil
}

// renderDigest produces the final markdown: a trend section, then all
// seven continent sections in fixed order.
func renderDigest(days int, topic string, trends []trend, buckets map[string][]types.NewsroomArticle, summaries map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# News Digest: last %d days%s\n", days, topicSuffix(topic))

	b.WriteString("\n## Key Trends\n\n")
	for i, tr := range trends {
		fmt.Fprintf(&b, "%d. **%s** %s\n", i+1, tr.Title, tr.Description)
	}

	for _, continent := range continentOrder {
		fmt.Fprintf(&b, "\n## %s\n\n", continent)
		articles := buckets[continent]
		if len(articles) == 0 {
			b.WriteString("No notable coverage this period.\n")
			continue
		}
		if summary := summaries[continent]; summary != "" {
			b.WriteString(summary + "\n\n")
		}
		for _, a := range articles {
			fmt.Fprintf(&b, "- %s", a.Headline)
			if meta := articleLineMeta(a); meta != "" {
				fmt.Fprintf(&b, " (%s)", meta)
			}
			b.WriteString("\n")
			if a.URL != "" {
				fmt.Fprintf(&b, "  URL: %s\n", a.URL)
			}
		}
	}
	return b.String()
}

func articleLineMeta(a types.NewsroomArticle) string {
	parts := make([]string, 0, 2)
	if a.Source != "" {
		parts = append(parts, a.Source)
	}
	if a.Date != "" {
		parts = append(parts, a.Date)
	}
	return strings.Join(parts, ", ")
}
