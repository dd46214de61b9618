package classifier

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// classifierFunc adapts a function to domain.Classifier for test doubles.
type classifierFunc func(ctx context.Context, text string) (domain.SentimentResult, error)

func (f classifierFunc) Classify(ctx context.Context, text string) (domain.SentimentResult, error) {
	return f(ctx, text)
}

func fastConfig() AdapterConfig {
	return AdapterConfig{
		MaxInflight: 4,
		QueueWait:   50 * time.Millisecond,
		Timeout:     time.Second,
		MaxAttempts: 3,
	}
}

func TestAdapter_Success(t *testing.T) {
	model := classifierFunc(func(context.Context, string) (domain.SentimentResult, error) {
		return positiveResult, nil
	})

	adapter := NewAdapter(model, nil, nil, fastConfig())

	result, err := adapter.Classify(context.Background(), "great stuff")
	require.NoError(t, err)
	assert.Equal(t, positiveResult, result)
}

func TestAdapter_CacheHitSkipsModel(t *testing.T) {
	var calls atomic.Int64
	model := classifierFunc(func(context.Context, string) (domain.SentimentResult, error) {
		calls.Add(1)
		return positiveResult, nil
	})

	cache := NewLRUCache(16, time.Minute, clockwork.NewRealClock())
	adapter := NewAdapter(model, nil, cache, fastConfig())

	_, err := adapter.Classify(context.Background(), "great stuff")
	require.NoError(t, err)
	_, err = adapter.Classify(context.Background(), "great stuff")
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load(), "second call served from cache")
}

func TestAdapter_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	model := classifierFunc(func(context.Context, string) (domain.SentimentResult, error) {
		if calls.Add(1) < 3 {
			return domain.SentimentResult{}, domain.ErrModelUnavailable
		}
		return positiveResult, nil
	})

	cfg := fastConfig()
	adapter := NewAdapter(model, nil, nil, cfg)
	adapter.policy.InitialBackoff = time.Millisecond
	adapter.policy.MaxBackoff = 2 * time.Millisecond

	result, err := adapter.Classify(context.Background(), "great stuff")
	require.NoError(t, err)
	assert.Equal(t, positiveResult, result)
	assert.Equal(t, int64(3), calls.Load())
}

func TestAdapter_InferenceErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	model := classifierFunc(func(context.Context, string) (domain.SentimentResult, error) {
		calls.Add(1)
		return domain.SentimentResult{}, domain.ErrInference
	})

	adapter := NewAdapter(model, NewLexicon(), nil, fastConfig())

	_, err := adapter.Classify(context.Background(), "great stuff")
	assert.ErrorIs(t, err, domain.ErrInference)
	assert.Equal(t, int64(1), calls.Load(), "permanent failure must not retry")
}

func TestAdapter_UnavailableSurfacesAfterRetries(t *testing.T) {
	var calls atomic.Int64
	model := classifierFunc(func(context.Context, string) (domain.SentimentResult, error) {
		calls.Add(1)
		return domain.SentimentResult{}, domain.ErrModelUnavailable
	})

	adapter := NewAdapter(model, nil, nil, fastConfig())
	adapter.policy.InitialBackoff = time.Millisecond
	adapter.policy.MaxBackoff = 2 * time.Millisecond

	_, err := adapter.Classify(context.Background(), "great stuff")
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Equal(t, int64(3), calls.Load())
}

func TestAdapter_LexiconFallbackOnOutage(t *testing.T) {
	model := classifierFunc(func(context.Context, string) (domain.SentimentResult, error) {
		return domain.SentimentResult{}, domain.ErrModelUnavailable
	})

	adapter := NewAdapter(model, NewLexicon(), nil, fastConfig())
	adapter.policy.MaxAttempts = 1

	result, err := adapter.Classify(context.Background(), "Loving the new update!")
	require.NoError(t, err)
	assert.Equal(t, domain.LabelPositive, result.Label)
	assert.Equal(t, LexiconVersion, result.ModelVersion)
}

func TestAdapter_OverloadedWhenSaturated(t *testing.T) {
	release := make(chan struct{})
	model := classifierFunc(func(ctx context.Context, _ string) (domain.SentimentResult, error) {
		select {
		case <-release:
			return positiveResult, nil
		case <-ctx.Done():
			return domain.SentimentResult{}, domain.ErrModelUnavailable
		}
	})

	cfg := fastConfig()
	cfg.MaxInflight = 1
	cfg.QueueWait = 20 * time.Millisecond
	adapter := NewAdapter(model, nil, nil, cfg)

	firstDone := make(chan error, 1)
	go func() {
		_, err := adapter.Classify(context.Background(), "occupies the only slot")
		firstDone <- err
	}()

	// Wait until the first call holds the semaphore.
	require.Eventually(t, func() bool {
		return !adapter.sem.TryAcquire(1)
	}, time.Second, time.Millisecond)

	_, err := adapter.Classify(context.Background(), "rejected by backpressure")
	assert.ErrorIs(t, err, domain.ErrOverloaded)

	close(release)
	require.NoError(t, <-firstDone)
}

func TestAdapter_FallbackResultIsCached(t *testing.T) {
	var calls atomic.Int64
	model := classifierFunc(func(context.Context, string) (domain.SentimentResult, error) {
		calls.Add(1)
		return domain.SentimentResult{}, domain.ErrModelUnavailable
	})

	cache := NewLRUCache(16, time.Minute, clockwork.NewRealClock())
	adapter := NewAdapter(model, NewLexicon(), cache, fastConfig())
	adapter.policy.MaxAttempts = 1

	_, err := adapter.Classify(context.Background(), "Loving the new update!")
	require.NoError(t, err)
	_, err = adapter.Classify(context.Background(), "Loving the new update!")
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load(), "fallback result reused from cache")
}
