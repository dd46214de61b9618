package classifier

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/stretchr/testify/assert"
)

var positiveResult = domain.SentimentResult{
	Label:        domain.LabelPositive,
	Confidence:   0.9,
	ModelVersion: "test-model",
	Method:       "huggingface",
}

func TestLRUCache_SetGet(t *testing.T) {
	ctx := context.Background()
	cache := NewLRUCache(10, time.Minute, clockwork.NewFakeClock())

	_, ok := cache.Get(ctx, "k")
	assert.False(t, ok)

	cache.Set(ctx, "k", positiveResult)
	got, ok := cache.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, positiveResult, got)
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	cache := NewLRUCache(10, time.Minute, clock)

	cache.Set(ctx, "k", positiveResult)

	clock.Advance(59 * time.Second)
	_, ok := cache.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size(), "expired entry removed on read")
}

func TestLRUCache_CapacityEviction(t *testing.T) {
	ctx := context.Background()
	cache := NewLRUCache(3, time.Minute, clockwork.NewFakeClock())

	for i := range 4 {
		cache.Set(ctx, fmt.Sprintf("k%d", i), positiveResult)
	}

	assert.Equal(t, 3, cache.Size())
	_, ok := cache.Get(ctx, "k0")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = cache.Get(ctx, "k3")
	assert.True(t, ok)
}

func TestLRUCache_GetRefreshesRecency(t *testing.T) {
	ctx := context.Background()
	cache := NewLRUCache(2, time.Minute, clockwork.NewFakeClock())

	cache.Set(ctx, "a", positiveResult)
	cache.Set(ctx, "b", positiveResult)

	_, _ = cache.Get(ctx, "a") // a becomes most recent
	cache.Set(ctx, "c", positiveResult)

	_, ok := cache.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry evicted")
}

func TestLRUCache_EvictExpired(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	cache := NewLRUCache(10, time.Minute, clock)

	cache.Set(ctx, "old", positiveResult)
	clock.Advance(2 * time.Minute)
	cache.Set(ctx, "fresh", positiveResult)

	evicted := cache.EvictExpired()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, cache.Size())
}

func TestCacheKey_NormalizesWhitespace(t *testing.T) {
	assert.Equal(t, CacheKey("hello  world"), CacheKey("  hello world "))
	assert.NotEqual(t, CacheKey("hello world"), CacheKey("hello worlds"))
}
