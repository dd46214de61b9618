package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/pscheid92/brandpulse/internal/metrics"
)

// rebuildPageSize is the replay page size when rebuilding from storage.
const rebuildPageSize = 500

// meanEpsilon bounds the floating point tolerance when comparing incremental
// means against storage-side averages.
const meanEpsilon = 1e-6

type bucketKey struct {
	brand  string
	window time.Time
}

// bucket holds the counters for one (brand, window) pair. Each bucket has its
// own lock so concurrent applies to different windows never contend.
type bucket struct {
	mu       sync.Mutex
	positive int64
	negative int64
	neutral  int64
	total    int64
	mean     float64
}

// add folds one result into the counters. The mean is updated incrementally
// so no per-record history is kept.
func (b *bucket) add(result domain.SentimentResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch result.Label {
	case domain.LabelPositive:
		b.positive++
	case domain.LabelNegative:
		b.negative++
	case domain.LabelNeutral:
		b.neutral++
	}
	b.total++
	b.mean += (result.Confidence - b.mean) / float64(b.total)
}

func (b *bucket) snapshot(key bucketKey) domain.AggregateBucket {
	b.mu.Lock()
	defer b.mu.Unlock()

	return domain.AggregateBucket{
		Brand:          key.brand,
		WindowStart:    key.window,
		Positive:       b.positive,
		Negative:       b.negative,
		Neutral:        b.neutral,
		Total:          b.total,
		MeanConfidence: b.mean,
	}
}

// Engine is the concurrent-safe aggregation registry. Every applied record
// contributes to the BrandAll rollup and, when tagged, to its brand bucket.
// The applied set makes Apply idempotent per identity.
type Engine struct {
	granularity domain.Granularity

	mu      sync.RWMutex
	buckets map[bucketKey]*bucket
	applied map[string]struct{}
}

func NewEngine(granularity domain.Granularity) *Engine {
	return &Engine{
		granularity: granularity,
		buckets:     make(map[bucketKey]*bucket),
		applied:     make(map[string]struct{}),
	}
}

// Granularity returns the window width the engine buckets by.
func (e *Engine) Granularity() domain.Granularity {
	return e.granularity
}

// Apply folds one persisted record into the counters. Applying the same
// identity twice is a no-op; the return value reports whether the record was
// counted by this call.
func (e *Engine) Apply(record domain.PersistedRecord) bool {
	e.mu.Lock()
	if _, done := e.applied[record.Identity]; done {
		e.mu.Unlock()
		return false
	}
	e.applied[record.Identity] = struct{}{}
	targets := e.targetsLocked(record.Post)
	metrics.AggregateBuckets.Set(float64(len(e.buckets)))
	e.mu.Unlock()

	for _, b := range targets {
		b.add(record.Result)
	}
	metrics.AggregateAppliedTotal.Inc()
	return true
}

// Applied reports whether an identity has already been counted.
func (e *Engine) Applied(identity string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, done := e.applied[identity]
	return done
}

// targetsLocked returns the buckets a post contributes to, creating them on
// first use. Caller must hold e.mu.
func (e *Engine) targetsLocked(post domain.Post) []*bucket {
	window := e.granularity.Truncate(post.Timestamp)

	targets := []*bucket{e.bucketLocked(bucketKey{brand: domain.BrandAll, window: window})}
	if post.Brand != "" {
		targets = append(targets, e.bucketLocked(bucketKey{brand: post.Brand, window: window}))
	}
	return targets
}

func (e *Engine) bucketLocked(key bucketKey) *bucket {
	b, ok := e.buckets[key]
	if !ok {
		b = &bucket{}
		e.buckets[key] = b
	}
	return b
}

// Snapshot returns the buckets for one brand (use domain.BrandAll for the
// rollup) whose window overlaps [from, to), ordered by window start. Nil
// bounds mean unbounded.
func (e *Engine) Snapshot(brand string, from, to *time.Time) []domain.AggregateBucket {
	e.mu.RLock()
	selected := make(map[bucketKey]*bucket)
	for key, b := range e.buckets {
		if key.brand != brand {
			continue
		}
		if from != nil && !key.window.Add(e.granularity.Width()).After(*from) {
			continue
		}
		if to != nil && !key.window.Before(*to) {
			continue
		}
		selected[key] = b
	}
	e.mu.RUnlock()

	out := make([]domain.AggregateBucket, 0, len(selected))
	for key, b := range selected {
		out = append(out, b.snapshot(key))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.Before(out[j].WindowStart)
	})
	return out
}

// Rebuild discards all counters and replays every persisted record from the
// repository. It holds the registry lock for the duration so applies cannot
// interleave with the replay.
func (e *Engine) Rebuild(ctx context.Context, repo domain.PostRepository) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	buckets := make(map[bucketKey]*bucket)
	applied := make(map[string]struct{})

	replayed := 0
	for page := 1; ; page++ {
		records, _, err := repo.Query(ctx, domain.QueryFilter{}, page, rebuildPageSize)
		if err != nil {
			return fmt.Errorf("failed to replay records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		for _, record := range records {
			if _, done := applied[record.Identity]; done {
				continue
			}
			applied[record.Identity] = struct{}{}
			window := e.granularity.Truncate(record.Timestamp)

			keys := []bucketKey{{brand: domain.BrandAll, window: window}}
			if record.Brand != "" {
				keys = append(keys, bucketKey{brand: record.Brand, window: window})
			}
			for _, key := range keys {
				b, ok := buckets[key]
				if !ok {
					b = &bucket{}
					buckets[key] = b
				}
				b.add(record.Result)
			}
			replayed++
		}

		if len(records) < rebuildPageSize {
			break
		}
	}

	e.buckets = buckets
	e.applied = applied

	metrics.AggregateRebuildsTotal.Inc()
	metrics.AggregateBuckets.Set(float64(len(buckets)))
	slog.Info("Aggregates rebuilt from storage", "records", replayed, "buckets", len(buckets))
	return nil
}

// Reconcile compares the in-memory counters against the storage-side
// aggregation and rebuilds when they disagree. A record persisted while the
// snapshot query runs can surface as transient drift; the rebuild that follows
// converges back to ground truth either way.
func (e *Engine) Reconcile(ctx context.Context, repo domain.PostRepository) error {
	rows, err := repo.AggregateSnapshot(ctx, e.granularity)
	if err != nil {
		return fmt.Errorf("failed to load ground truth: %w", err)
	}

	if reason := e.diff(rows); reason != "" {
		metrics.AggregateDriftDetected.Inc()
		slog.Warn("Aggregate drift detected, rebuilding", "reason", reason)
		return e.Rebuild(ctx, repo)
	}
	return nil
}

// diff reports the first discrepancy between the counters and the
// storage-side rows, or "" when they agree.
func (e *Engine) diff(rows []domain.AggregateRow) string {
	type expected struct {
		positive int64
		negative int64
		neutral  int64
		sum      float64
	}

	want := make(map[bucketKey]*expected)
	addRow := func(brand string, row domain.AggregateRow) {
		key := bucketKey{brand: brand, window: row.WindowStart}
		exp, ok := want[key]
		if !ok {
			exp = &expected{}
			want[key] = exp
		}
		switch row.Label {
		case domain.LabelPositive:
			exp.positive += row.Count
		case domain.LabelNegative:
			exp.negative += row.Count
		case domain.LabelNeutral:
			exp.neutral += row.Count
		}
		exp.sum += float64(row.Count) * row.MeanConfidence
	}

	for _, row := range rows {
		addRow(domain.BrandAll, row)
		if row.Brand != "" {
			addRow(row.Brand, row)
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(want) != len(e.buckets) {
		return fmt.Sprintf("bucket count mismatch: have %d, want %d", len(e.buckets), len(want))
	}

	for key, exp := range want {
		b, ok := e.buckets[key]
		if !ok {
			return fmt.Sprintf("missing bucket %s@%s", key.brand, key.window.Format(time.RFC3339))
		}
		snap := b.snapshot(key)
		total := exp.positive + exp.negative + exp.neutral
		if snap.Positive != exp.positive || snap.Negative != exp.negative || snap.Neutral != exp.neutral || snap.Total != total {
			return fmt.Sprintf("count mismatch in bucket %s@%s", key.brand, key.window.Format(time.RFC3339))
		}
		if total > 0 && math.Abs(snap.MeanConfidence-exp.sum/float64(total)) > meanEpsilon {
			return fmt.Sprintf("mean mismatch in bucket %s@%s", key.brand, key.window.Format(time.RFC3339))
		}
	}
	return ""
}
