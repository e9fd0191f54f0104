package search

import (
	"regexp"
	"strings"

	"github.com/ruzivolabs/ruzivo/internal/fault"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Intent classifies a query for cache TTL selection and source choice.
type Intent string

const (
	IntentNews    Intent = "news"    // volatile: recent events, prices, weather
	IntentGeneral Intent = "general" // volatile: anything unclassified
	IntentStable  Intent = "stable"  // long-lived: definitions, history, how-to
)

// Volatile reports whether answers for this intent go stale quickly.
func (i Intent) Volatile() bool { return i != IntentStable }

// Meta-language patterns models and users wrap around the actual query.
var (
	leadingSearchRe = regexp.MustCompile(`(?i)^(?:let'?s\s+)?(?:do\s+a\s+)?(?:please\s+)?(?:web\s+)?search(?:\s+the\s+web)?\s+(?:for|to|about|on)\b\s*`)
	leadingFillerRe = regexp.MustCompile(`(?i)^(?:behind|about|regarding)\s+`)
	embeddedRe      = regexp.MustCompile(`(?i)\s*(?:and\s+what\s+it\s+means|(?:to\s+)?better\s+understand\s+the\s+context\s+around)\s*`)
	trailingRe      = regexp.MustCompile(`(?i)\s*(?:and\s+)?(?:what\s+does\s+(?:this|that|it)\s+mean\??|to\s+(?:better\s+)?understand(?:\s+\w+)?\.?)\s*$`)
)

var newsWordsRe = regexp.MustCompile(`(?i)\b(news|latest|today|breaking|current(?:ly)?|this\s+(?:week|month|year)|recent(?:ly)?|update[sd]?|price|stock|weather|happening)\b`)

var stableWordsRe = regexp.MustCompile(`(?i)\b(what\s+is|what\s+are|definition|define[sd]?|meaning\s+of|history\s+of|how\s+(?:do(?:es)?|to)|tutorial|explain|origin\s+of|who\s+(?:was|invented|discovered))\b`)

// Optimize strips meta-language from a raw query and classifies its
// intent. An emptied query is a caller error: the user asked to search
// for nothing but wrapper words.
func Optimize(raw string) (string, Intent, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = leadingSearchRe.ReplaceAllString(cleaned, "")
	cleaned = embeddedRe.ReplaceAllString(cleaned, " ")
	cleaned = trailingRe.ReplaceAllString(cleaned, "")
	cleaned = leadingFillerRe.ReplaceAllString(cleaned, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.Trim(cleaned, `"'`)

	if cleaned == "" {
		return "", IntentGeneral, fault.InvalidArgument(
			"the search query is empty after removing filler words; say what to search for, e.g. \"solar tariffs in Kenya\"")
	}

	intent := classify(cleaned)
	if cleaned != strings.TrimSpace(raw) {
		L_debug("search: optimized query", "raw", raw, "cleaned", cleaned, "intent", intent)
	}
	return cleaned, intent, nil
}

// classify tags the query with a coarse intent: news-ish wording wins,
// definitional wording marks it stable, everything else is general.
func classify(query string) Intent {
	if newsWordsRe.MatchString(query) {
		return IntentNews
	}
	if stableWordsRe.MatchString(query) {
		return IntentStable
	}
	return IntentGeneral
}

// Stop words removed when extracting searchable keywords from a
// conversational request.
var keywordStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "do": true, "does": true,
	"did": true, "can": true, "could": true, "should": true, "would": true,
	"will": true, "please": true, "me": true, "my": true, "i": true,
	"you": true, "your": true, "we": true, "our": true, "us": true,
	"what": true, "which": true, "who": true, "how": true, "when": true,
	"where": true, "why": true, "tell": true, "show": true, "find": true,
	"give": true, "get": true, "about": true, "for": true, "of": true,
	"on": true, "in": true, "at": true, "to": true, "from": true,
	"with": true, "and": true, "or": true, "some": true, "any": true,
	"more": true, "info": true, "information": true, "research": true,
	"look": true, "up": true, "search": true, "web": true, "internet": true,
}

// ExtractKeywords removes stop words and collapses whitespace. If the
// remainder is shorter than 10 characters the original query is returned,
// since over-stripped queries search worse than conversational ones.
func ExtractKeywords(query string) string {
	var kept []string
	for _, word := range strings.Fields(query) {
		if keywordStopWords[strings.ToLower(strings.Trim(word, ".,!?;:"))] {
			continue
		}
		kept = append(kept, word)
	}
	keywords := strings.Join(kept, " ")
	if len(keywords) < 10 {
		return strings.TrimSpace(query)
	}
	return keywords
}
