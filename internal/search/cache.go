package search

import (
	"container/list"
	"fmt"
	"strings"
	"sync"
	"time"

	. "github.com/ruzivolabs/ruzivo/internal/logging"
)

// Cache TTL defaults. Volatile entries cover news-like queries; stable
// entries cover definitional ones.
const (
	DefaultCacheSize   = 128
	DefaultVolatileTTL = time.Hour
	DefaultStableTTL   = 24 * time.Hour
)

type cacheEntry struct {
	key     string
	answer  string
	expires time.Time
}

// Cache is a bounded LRU of formatted search answers keyed by
// (normalized query, max_results). Reads refresh recency; expired
// entries behave as misses and are evicted lazily.
type Cache struct {
	mu          sync.Mutex
	capacity    int
	volatileTTL time.Duration
	stableTTL   time.Duration
	order       *list.List // front = most recent
	entries     map[string]*list.Element
	hits        uint64
	misses      uint64
}

// NewCache creates an LRU answer cache. Zero arguments pick the defaults.
func NewCache(capacity int, volatileTTL, stableTTL time.Duration) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	if volatileTTL <= 0 {
		volatileTTL = DefaultVolatileTTL
	}
	if stableTTL <= 0 {
		stableTTL = DefaultStableTTL
	}
	return &Cache{
		capacity:    capacity,
		volatileTTL: volatileTTL,
		stableTTL:   stableTTL,
		order:       list.New(),
		entries:     make(map[string]*list.Element),
	}
}

func cacheKey(query string, maxResults int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return fmt.Sprintf("%s|%d", normalized, maxResults)
}

// Get returns the cached answer for the query, if present and fresh.
func (c *Cache) Get(query string, maxResults int) (string, bool) {
	key := cacheKey(query, maxResults)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}
	entry := elem.Value.(*cacheEntry)
	if time.Now().After(entry.expires) {
		c.order.Remove(elem)
		delete(c.entries, key)
		c.misses++
		L_trace("search cache: expired", "key", key)
		return "", false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return entry.answer, true
}

// Put stores a formatted answer. The intent picks the TTL: stable intents
// live a day, everything else an hour.
func (c *Cache) Put(query string, maxResults int, intent Intent, answer string) {
	ttl := c.volatileTTL
	if !intent.Volatile() {
		ttl = c.stableTTL
	}
	key := cacheKey(query, maxResults)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.answer = answer
		entry.expires = time.Now().Add(ttl)
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{
		key:     key,
		answer:  answer,
		expires: time.Now().Add(ttl),
	})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len reports the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats reports lifetime hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
