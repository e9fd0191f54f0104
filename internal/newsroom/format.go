package newsroom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/types"
)

// FormatArticles renders articles grouped by primary topic: a frequency
// header first, then one section per topic with date, source, and URL per
// article. The "URL:" lines feed the research workflow's source listing.
func FormatArticles(articles []types.NewsroomArticle) string {
	if len(articles) == 0 {
		return "No newsroom articles found."
	}

	groups := make(map[string][]types.NewsroomArticle)
	for _, a := range articles {
		topic := a.PrimaryTopic()
		groups[topic] = append(groups[topic], a)
	}

	topics := make([]string, 0, len(groups))
	for topic := range groups {
		topics = append(topics, topic)
	}
	// Busiest topics first; ties alphabetical so output is stable.
	sort.Slice(topics, func(i, j int) bool {
		if len(groups[topics[i]]) != len(groups[topics[j]]) {
			return len(groups[topics[i]]) > len(groups[topics[j]])
		}
		return topics[i] < topics[j]
	})

	var b strings.Builder
	fmt.Fprintf(&b, "## Newsroom: %d articles across %d topics\n\n", len(articles), len(topics))

	freq := make([]string, 0, len(topics))
	for _, topic := range topics {
		freq = append(freq, fmt.Sprintf("%s (%d)", topic, len(groups[topic])))
	}
	b.WriteString(strings.Join(freq, ", "))
	b.WriteString("\n")

	for _, topic := range topics {
		fmt.Fprintf(&b, "\n### %s\n\n", topic)
		for _, a := range groups[topic] {
			fmt.Fprintf(&b, "- %s", a.Headline)
			meta := articleMeta(a)
			if meta != "" {
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

func articleMeta(a types.NewsroomArticle) string {
	parts := make([]string, 0, 2)
	if a.Date != "" {
		parts = append(parts, a.Date)
	}
	if a.Source != "" {
		parts = append(parts, a.Source)
	}
	return strings.Join(parts, ", ")
}
