package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/pscheid92/brandpulse/internal/metrics"
	"github.com/pscheid92/brandpulse/internal/platform/retry"
	"golang.org/x/sync/semaphore"
)

// AdapterConfig bounds the adapter's process-wide shared state. All fields
// are fixed at startup.
type AdapterConfig struct {
	// MaxInflight is the semaphore size for concurrent external calls.
	MaxInflight int
	// QueueWait is how long a request may wait for an inference slot before
	// it is rejected with ErrOverloaded.
	QueueWait time.Duration
	// Timeout is the hard deadline for a single inference attempt.
	Timeout time.Duration
	// MaxAttempts bounds retries of transient failures.
	MaxAttempts int
}

// Adapter implements domain.Classifier around a remote model. It is the
// system's backpressure point: calls beyond MaxInflight queue for at most
// QueueWait and then fail with ErrOverloaded.
type Adapter struct {
	model     domain.Classifier
	fallback  domain.Classifier // may be nil
	cache     ResultCache       // may be nil
	sem       *semaphore.Weighted
	queueWait time.Duration
	timeout   time.Duration
	policy    retry.Policy
	breaker   circuitbreaker.CircuitBreaker[any]
}

// NewAdapter wires the shared semaphore, retry policy and circuit breaker.
// fallback and cache are optional.
func NewAdapter(model, fallback domain.Classifier, cache ResultCache, cfg AdapterConfig) *Adapter {
	breaker := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "classifier",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues("classifier", e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues("classifier").Set(stateToFloat(e.NewState))
		}).
		Build()

	return &Adapter{
		model:     model,
		fallback:  fallback,
		cache:     cache,
		sem:       semaphore.NewWeighted(int64(cfg.MaxInflight)),
		queueWait: cfg.QueueWait,
		timeout:   cfg.Timeout,
		policy: retry.Policy{
			MaxAttempts:      cfg.MaxAttempts,
			InitialBackoff:   200 * time.Millisecond,
			MaxBackoff:       5 * time.Second,
			RateLimitBackoff: 2 * time.Second,
			OnRetry: func(attempt int, err error, backoff time.Duration) {
				metrics.ClassifierRetriesTotal.Inc()
				slog.Warn("Retrying inference", "attempt", attempt, "backoff", backoff, "error", err)
			},
		},
		breaker: breaker,
	}
}

func (a *Adapter) Classify(ctx context.Context, text string) (domain.SentimentResult, error) {
	var zero domain.SentimentResult

	key := CacheKey(text)
	if a.cache != nil {
		if result, ok := a.cache.Get(ctx, key); ok {
			metrics.ClassifierCacheHits.Inc()
			metrics.ClassifierRequestsTotal.WithLabelValues("cache_hit").Inc()
			return result, nil
		}
		metrics.ClassifierCacheMisses.Inc()
	}

	if err := a.acquireSlot(ctx); err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues("overloaded").Inc()
		return zero, err
	}
	defer a.sem.Release(1)

	metrics.ClassifierInflight.Inc()
	defer metrics.ClassifierInflight.Dec()

	result, err := retry.Do(ctx, a.policy, classifyFailure, func() (domain.SentimentResult, error) {
		return a.callOnce(ctx, text)
	})
	if err != nil {
		return a.handleFailure(ctx, key, text, err)
	}

	if a.cache != nil {
		a.cache.Set(ctx, key, result)
	}
	metrics.ClassifierRequestsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

// acquireSlot waits for an inference slot for at most queueWait.
func (a *Adapter) acquireSlot(ctx context.Context) error {
	acquireCtx, cancel := context.WithTimeout(ctx, a.queueWait)
	defer cancel()

	if err := a.sem.Acquire(acquireCtx, 1); err != nil {
		return fmt.Errorf("no inference slot within %s: %w", a.queueWait, domain.ErrOverloaded)
	}
	return nil
}

// callOnce performs a single breaker-guarded inference attempt with the
// per-attempt deadline.
func (a *Adapter) callOnce(ctx context.Context, text string) (domain.SentimentResult, error) {
	if !a.breaker.TryAcquirePermit() {
		return domain.SentimentResult{}, fmt.Errorf("circuit open: %w", domain.ErrModelUnavailable)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	result, err := a.model.Classify(attemptCtx, text)
	metrics.ClassifierDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		a.breaker.RecordSuccess()
	case errors.Is(err, domain.ErrInference):
		// The service answered; the input is the problem. Not a breaker event.
		a.breaker.RecordSuccess()
	default:
		a.breaker.RecordFailure()
	}
	return result, err
}

// handleFailure applies the lexicon fallback for transient outages and maps
// everything else through unchanged.
func (a *Adapter) handleFailure(ctx context.Context, key, text string, err error) (domain.SentimentResult, error) {
	if errors.Is(err, domain.ErrInference) {
		metrics.ClassifierRequestsTotal.WithLabelValues("inference_error").Inc()
		return domain.SentimentResult{}, err
	}

	if errors.Is(err, domain.ErrModelUnavailable) && a.fallback != nil {
		result, ferr := a.fallback.Classify(ctx, text)
		if ferr == nil {
			slog.Warn("Model unavailable, scored with lexicon fallback", "error", err)
			if a.cache != nil {
				a.cache.Set(ctx, key, result)
			}
			metrics.ClassifierRequestsTotal.WithLabelValues("fallback").Inc()
			return result, nil
		}
	}

	metrics.ClassifierRequestsTotal.WithLabelValues("unavailable").Inc()
	return domain.SentimentResult{}, err
}

// classifyFailure maps domain errors onto retry actions: only transient
// model outages are retried.
func classifyFailure(err error) retry.Action {
	switch {
	case errors.Is(err, domain.ErrInference):
		return retry.Stop
	case errors.Is(err, domain.ErrModelUnavailable):
		return retry.Retry
	default:
		return retry.Stop
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
