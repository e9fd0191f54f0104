package search

import (
	"strings"
	"testing"
	"time"

	"github.com/ruzivolabs/ruzivo/internal/fault"
)

func TestOptimizeStripsMetaLanguage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"search for", "search for gold vs bitcoin prices", "gold vs bitcoin prices"},
		{"lets do a web search", "let's do a web search for solar tariffs", "solar tariffs"},
		{"search about", "search about the new grid code", "the new grid code"},
		{"trailing what does this mean", "load shedding stage 6 what does this mean", "load shedding stage 6"},
		{"trailing to better understand", "uranium enrichment to better understand", "uranium enrichment"},
		{"embedded and what it means", "the rand crashed and what it means", "the rand crashed"},
		{"leading regarding", "regarding lithium mining in Zimbabwe", "lithium mining in Zimbabwe"},
		{"plain query untouched", "gold price history", "gold price history"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := Optimize(tt.in)
			if err != nil {
				t.Fatalf("Optimize(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Optimize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptimizeEmptyAfterStripping(t *testing.T) {
	_, _, err := Optimize("search for")
	if err == nil {
		t.Fatal("expected error for emptied query")
	}
	if fault.KindOf(err) != fault.KindInvalidArgument {
		t.Errorf("kind = %v, want invalid_argument", fault.KindOf(err))
	}
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		query string
		want  Intent
	}{
		{"latest news on eskom", IntentNews},
		{"bitcoin price today", IntentNews},
		{"breaking: grid collapse", IntentNews},
		{"what is a heat pump", IntentStable},
		{"history of the gold standard", IntentStable},
		{"how does a pressurized water reactor work", IntentStable},
		{"lithium mining in Zimbabwe", IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := classify(tt.query); got != tt.want {
				t.Errorf("classify(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestIntentVolatile(t *testing.T) {
	if !IntentNews.Volatile() || !IntentGeneral.Volatile() {
		t.Error("news and general must be volatile")
	}
	if IntentStable.Volatile() {
		t.Error("stable must not be volatile")
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("can you please tell me about renewable energy subsidies in South Africa")
	if strings.Contains(got, "please") || strings.Contains(got, "about") {
		t.Errorf("stop words survived: %q", got)
	}
	if !strings.Contains(got, "renewable") || !strings.Contains(got, "South Africa") {
		t.Errorf("content words lost: %q", got)
	}
}

func TestExtractKeywordsRevertsWhenTooShort(t *testing.T) {
	// Everything except "gold" is a stop word; the remainder is under 10
	// characters so the original query comes back.
	in := "tell me about gold"
	if got := ExtractKeywords(in); got != in {
		t.Errorf("ExtractKeywords(%q) = %q, want original", in, got)
	}
}

func TestCacheHitAndKey(t *testing.T) {
	c := NewCache(8, time.Hour, 24*time.Hour)
	c.Put("Gold Price", 5, IntentGeneral, "answer one")

	if got, ok := c.Get("gold   price", 5); !ok || got != "answer one" {
		t.Errorf("normalized key miss: %q %v", got, ok)
	}
	// Different max_results is a different key.
	if _, ok := c.Get("gold price", 10); ok {
		t.Error("max_results must be part of the cache key")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(8, time.Millisecond, time.Hour)
	c.Put("volatile query", 5, IntentNews, "stale soon")
	c.Put("stable query", 5, IntentStable, "lives long")

	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("volatile query", 5); ok {
		t.Error("volatile entry must expire")
	}
	if got, ok := c.Get("stable query", 5); !ok || got != "lives long" {
		t.Error("stable entry must use the long TTL")
	}
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2, time.Hour, time.Hour)
	c.Put("one", 5, IntentGeneral, "1")
	c.Put("two", 5, IntentGeneral, "2")
	c.Get("one", 5) // refresh recency; "two" is now LRU
	c.Put("three", 5, IntentGeneral, "3")

	if _, ok := c.Get("two", 5); ok {
		t.Error("LRU entry must be evicted")
	}
	if _, ok := c.Get("one", 5); !ok {
		t.Error("recently read entry must survive")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}
