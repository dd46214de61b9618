package redis

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/pscheid92/brandpulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

var testClient *goredis.Client

func TestMain(m *testing.M) {
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	redisContainer, err := tcredis.Run(ctx, "redis:8-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	connStr, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	testClient, err = NewClient(ctx, connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test redis: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = testClient.Close()
	if err := redisContainer.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to terminate redis container: %v\n", err)
	}
	os.Exit(code)
}

func TestClassifierCache_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	cache := NewClassifierCache(testClient, time.Minute)

	result := domain.SentimentResult{
		Label:        domain.LabelPositive,
		Confidence:   0.93,
		ModelVersion: "distilbert-sst2",
		Method:       "huggingface",
	}

	_, ok := cache.Get(ctx, "roundtrip")
	assert.False(t, ok)

	cache.Set(ctx, "roundtrip", result)

	got, ok := cache.Get(ctx, "roundtrip")
	require.True(t, ok)
	assert.Equal(t, result, got)
}

func TestClassifierCache_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	cache := NewClassifierCache(testClient, 100*time.Millisecond)

	cache.Set(ctx, "shortlived", domain.SentimentResult{Label: domain.LabelNeutral, Confidence: 0.5})

	_, ok := cache.Get(ctx, "shortlived")
	require.True(t, ok)

	time.Sleep(200 * time.Millisecond)

	_, ok = cache.Get(ctx, "shortlived")
	assert.False(t, ok)
}

func TestClassifierCache_CorruptEntryIsMiss(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	cache := NewClassifierCache(testClient, time.Minute)

	require.NoError(t, testClient.Set(ctx, classifierKeyPrefix+"corrupt", "not json", time.Minute).Err())

	_, ok := cache.Get(ctx, "corrupt")
	assert.False(t, ok)
}
