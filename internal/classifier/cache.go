package classifier

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/pscheid92/brandpulse/internal/metrics"
)

// ResultCache stores prior classification results keyed by normalized text,
// so repeated or near-duplicate content skips inference within a freshness
// window. Implementations must be safe for concurrent use. The context is
// carried for implementations backed by an external store; in-memory
// implementations ignore it.
type ResultCache interface {
	Get(ctx context.Context, key string) (domain.SentimentResult, bool)
	Set(ctx context.Context, key string, result domain.SentimentResult)
}

// CacheKey derives the cache (and dedup) key for a text: the hex SHA-256 of
// its normalized form.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(domain.NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// LRUCache is a fixed-capacity in-memory ResultCache with least-recently-used
// eviction and TTL-based freshness.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	clock    clockwork.Clock
	ll       *list.List
	entries  map[string]*list.Element
}

type lruEntry struct {
	key       string
	result    domain.SentimentResult
	expiresAt time.Time
}

func NewLRUCache(capacity int, ttl time.Duration, clock clockwork.Clock) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		clock:    clock,
		ll:       list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *LRUCache) Get(_ context.Context, key string) (domain.SentimentResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return domain.SentimentResult{}, false
	}

	entry := elem.Value.(*lruEntry)
	if c.clock.Now().After(entry.expiresAt) {
		c.removeElement(elem)
		metrics.ClassifierCacheEvictions.Inc()
		return domain.SentimentResult{}, false
	}

	c.ll.MoveToFront(elem)
	return entry.result, true
}

func (c *LRUCache) Set(_ context.Context, key string, result domain.SentimentResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*lruEntry)
		entry.result = result
		entry.expiresAt = expiresAt
		c.ll.MoveToFront(elem)
		return
	}

	elem := c.ll.PushFront(&lruEntry{key: key, result: result, expiresAt: expiresAt})
	c.entries[key] = elem

	if c.ll.Len() > c.capacity {
		c.removeElement(c.ll.Back())
		metrics.ClassifierCacheEvictions.Inc()
	}
}

// Size returns the current number of entries (including expired ones not yet
// evicted).
func (c *LRUCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// EvictExpired removes all expired entries and returns the count evicted.
func (c *LRUCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0

	for elem := c.ll.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*lruEntry).expiresAt) {
			c.removeElement(elem)
			evicted++
		}
		elem = prev
	}

	return evicted
}

// StartEvictionTimer starts a background goroutine that periodically evicts
// expired entries. Returns a stop function.
func (c *LRUCache) StartEvictionTimer(interval time.Duration) func() {
	ticker := c.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				evicted := c.EvictExpired()
				if evicted > 0 {
					slog.Debug("Evicted expired classifier cache entries",
						"count", evicted,
						"remaining", c.Size(),
					)
					metrics.ClassifierCacheEvictions.Add(float64(evicted))
				}
				metrics.ClassifierCacheSize.Set(float64(c.Size()))

			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}

// removeElement must be called with the lock held.
func (c *LRUCache) removeElement(elem *list.Element) {
	c.ll.Remove(elem)
	delete(c.entries, elem.Value.(*lruEntry).key)
}
