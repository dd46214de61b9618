package aggregate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/brandpulse/internal/database"
	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(identity, brand string, ts time.Time, label domain.Label, confidence float64) domain.PersistedRecord {
	return domain.PersistedRecord{
		Post: domain.Post{
			Identity:  identity,
			Text:      "text for " + identity,
			Brand:     brand,
			Timestamp: ts,
			Source:    "test",
		},
		Result: domain.SentimentResult{
			Label:        label,
			Confidence:   confidence,
			ModelVersion: "test-model",
			Method:       "huggingface",
		},
		SchemaVersion: domain.RecordSchemaVersion,
		CreatedAt:     ts,
	}
}

func TestEngine_ApplyCountsLabels(t *testing.T) {
	engine := NewEngine(domain.GranularityHour)
	ts := time.Date(2026, 3, 1, 14, 20, 0, 0, time.UTC)

	assert.True(t, engine.Apply(record("p1", "acme", ts, domain.LabelPositive, 0.8)))
	assert.True(t, engine.Apply(record("p2", "acme", ts, domain.LabelPositive, 0.6)))
	assert.True(t, engine.Apply(record("p3", "acme", ts, domain.LabelNegative, 0.9)))
	assert.True(t, engine.Apply(record("p4", "acme", ts, domain.LabelNeutral, 0.5)))

	buckets := engine.Snapshot("acme", nil, nil)
	require.Len(t, buckets, 1)

	b := buckets[0]
	assert.Equal(t, time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC), b.WindowStart)
	assert.Equal(t, int64(2), b.Positive)
	assert.Equal(t, int64(1), b.Negative)
	assert.Equal(t, int64(1), b.Neutral)
	assert.Equal(t, int64(4), b.Total)
	assert.InDelta(t, 0.7, b.MeanConfidence, 1e-9)
}

func TestEngine_ApplyIsIdempotent(t *testing.T) {
	engine := NewEngine(domain.GranularityHour)
	ts := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	rec := record("p1", "acme", ts, domain.LabelPositive, 0.8)

	assert.True(t, engine.Apply(rec))
	assert.False(t, engine.Apply(rec))
	assert.True(t, engine.Applied("p1"))
	assert.False(t, engine.Applied("p2"))

	buckets := engine.Snapshot("acme", nil, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(1), buckets[0].Total)
}

func TestEngine_RollupIncludesEveryPost(t *testing.T) {
	engine := NewEngine(domain.GranularityHour)
	ts := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	engine.Apply(record("p1", "acme", ts, domain.LabelPositive, 0.8))
	engine.Apply(record("p2", "globex", ts, domain.LabelNegative, 0.7))
	engine.Apply(record("p3", "", ts, domain.LabelNeutral, 0.5))

	all := engine.Snapshot(domain.BrandAll, nil, nil)
	require.Len(t, all, 1)
	assert.Equal(t, int64(3), all[0].Total)
	assert.Equal(t, int64(1), all[0].Positive)
	assert.Equal(t, int64(1), all[0].Negative)
	assert.Equal(t, int64(1), all[0].Neutral)

	// Untagged posts only show up in the rollup.
	assert.Empty(t, engine.Snapshot("", nil, nil))
	require.Len(t, engine.Snapshot("acme", nil, nil), 1)
	assert.Equal(t, int64(1), engine.Snapshot("acme", nil, nil)[0].Total)
}

func TestEngine_SnapshotWindowFilter(t *testing.T) {
	engine := NewEngine(domain.GranularityHour)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := range 4 {
		engine.Apply(record(fmt.Sprintf("p%d", i), "acme", base.Add(time.Duration(i)*time.Hour), domain.LabelPositive, 0.8))
	}

	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	buckets := engine.Snapshot("acme", &from, &to)
	require.Len(t, buckets, 2)
	assert.Equal(t, base.Add(time.Hour), buckets[0].WindowStart)
	assert.Equal(t, base.Add(2*time.Hour), buckets[1].WindowStart)

	// A from inside a window still selects that window.
	mid := base.Add(90 * time.Minute)
	buckets = engine.Snapshot("acme", &mid, nil)
	require.Len(t, buckets, 3)
	assert.Equal(t, base.Add(time.Hour), buckets[0].WindowStart)
}

func TestEngine_DayGranularity(t *testing.T) {
	engine := NewEngine(domain.GranularityDay)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	engine.Apply(record("p1", "acme", day.Add(2*time.Hour), domain.LabelPositive, 0.8))
	engine.Apply(record("p2", "acme", day.Add(20*time.Hour), domain.LabelNegative, 0.6))

	buckets := engine.Snapshot("acme", nil, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, day, buckets[0].WindowStart)
	assert.Equal(t, int64(2), buckets[0].Total)
}

func TestEngine_ConcurrentApplies(t *testing.T) {
	engine := NewEngine(domain.GranularityHour)
	ts := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	const goroutines = 8
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perGoroutine {
				identity := fmt.Sprintf("g%d-p%d", g, i)
				engine.Apply(record(identity, "acme", ts, domain.LabelPositive, 0.8))
			}
		}()
	}
	wg.Wait()

	buckets := engine.Snapshot("acme", nil, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(goroutines*perGoroutine), buckets[0].Positive)
	assert.Equal(t, int64(goroutines*perGoroutine), buckets[0].Total)
	assert.InDelta(t, 0.8, buckets[0].MeanConfidence, 1e-9)
}

func TestEngine_ConcurrentDuplicatesCountOnce(t *testing.T) {
	engine := NewEngine(domain.GranularityHour)
	ts := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	rec := record("dup", "acme", ts, domain.LabelPositive, 0.8)

	var wg sync.WaitGroup
	var counted int64
	var mu sync.Mutex
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if engine.Apply(rec) {
				mu.Lock()
				counted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), counted)
	buckets := engine.Snapshot("acme", nil, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(1), buckets[0].Total)
}

func TestEngine_RebuildReplaysStorage(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMemoryRepo(clockwork.NewFakeClock())
	base := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	// More records than one replay page to exercise paging.
	for i := range rebuildPageSize + 10 {
		rec := record(fmt.Sprintf("p%d", i), "acme", base.Add(time.Duration(i)*time.Second), domain.LabelPositive, 0.8)
		_, _, err := repo.Save(ctx, rec.Post, rec.Result)
		require.NoError(t, err)
	}

	engine := NewEngine(domain.GranularityHour)
	require.NoError(t, engine.Rebuild(ctx, repo))

	buckets := engine.Snapshot("acme", nil, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(rebuildPageSize+10), buckets[0].Total)

	// The replay repopulates the applied set: re-applying is a no-op.
	assert.True(t, engine.Applied("p0"))
	assert.False(t, engine.Apply(record("p0", "acme", base, domain.LabelPositive, 0.8)))
}

func TestEngine_RebuildMatchesIncrementalState(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMemoryRepo(clockwork.NewFakeClock())
	base := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	incremental := NewEngine(domain.GranularityHour)
	labels := []domain.Label{domain.LabelPositive, domain.LabelNegative, domain.LabelNeutral}
	for i := range 30 {
		rec := record(fmt.Sprintf("p%d", i), "acme", base.Add(time.Duration(i)*time.Minute), labels[i%3], 0.5+float64(i%5)/10)
		_, _, err := repo.Save(ctx, rec.Post, rec.Result)
		require.NoError(t, err)
		incremental.Apply(rec)
	}

	rebuilt := NewEngine(domain.GranularityHour)
	require.NoError(t, rebuilt.Rebuild(ctx, repo))

	for _, brand := range []string{domain.BrandAll, "acme"} {
		want := incremental.Snapshot(brand, nil, nil)
		got := rebuilt.Snapshot(brand, nil, nil)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Positive, got[i].Positive)
			assert.Equal(t, want[i].Negative, got[i].Negative)
			assert.Equal(t, want[i].Neutral, got[i].Neutral)
			assert.Equal(t, want[i].Total, got[i].Total)
			assert.InDelta(t, want[i].MeanConfidence, got[i].MeanConfidence, 1e-9)
		}
	}
}

func TestEngine_ReconcileDetectsDrift(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMemoryRepo(clockwork.NewFakeClock())
	ts := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	rec := record("p1", "acme", ts, domain.LabelPositive, 0.8)
	_, _, err := repo.Save(ctx, rec.Post, rec.Result)
	require.NoError(t, err)

	// Engine never saw the record: reconciliation must notice and rebuild.
	engine := NewEngine(domain.GranularityHour)
	require.NoError(t, engine.Reconcile(ctx, repo))

	buckets := engine.Snapshot("acme", nil, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(1), buckets[0].Total)
	assert.True(t, engine.Applied("p1"))
}

func TestEngine_ReconcileNoDriftKeepsState(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMemoryRepo(clockwork.NewFakeClock())
	ts := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	engine := NewEngine(domain.GranularityHour)
	for i := range 5 {
		rec := record(fmt.Sprintf("p%d", i), "acme", ts, domain.LabelPositive, 0.8)
		_, _, err := repo.Save(ctx, rec.Post, rec.Result)
		require.NoError(t, err)
		engine.Apply(rec)
	}

	require.NoError(t, engine.Reconcile(ctx, repo))

	buckets := engine.Snapshot("acme", nil, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, int64(5), buckets[0].Total)
}
