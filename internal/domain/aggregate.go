package domain

import "time"

// BrandAll is the rollup key every post contributes to, regardless of brand.
const BrandAll = "all"

// Granularity is the width of an aggregation time window.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

// Valid reports whether g is a supported granularity.
func (g Granularity) Valid() bool {
	return g == GranularityHour || g == GranularityDay
}

// Truncate floors t (in UTC) to the start of the window containing it.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	if g == GranularityDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return t.Truncate(time.Hour)
}

// Interval is the matching PostgreSQL date_trunc field name.
func (g Granularity) Interval() string {
	return string(g)
}

// Width is the duration of one window.
func (g Granularity) Width() time.Duration {
	if g == GranularityDay {
		return 24 * time.Hour
	}
	return time.Hour
}

// AggregateBucket is a snapshot of the counters for one (brand, window) pair.
// Buckets are derived state: they must always be reconstructable by replaying
// persisted records.
type AggregateBucket struct {
	Brand          string // BrandAll or a normalized brand tag
	WindowStart    time.Time
	Positive       int64
	Negative       int64
	Neutral        int64
	Total          int64
	MeanConfidence float64
}

// Count returns the counter for a single label.
func (b AggregateBucket) Count(l Label) int64 {
	switch l {
	case LabelPositive:
		return b.Positive
	case LabelNegative:
		return b.Negative
	case LabelNeutral:
		return b.Neutral
	}
	return 0
}

// AggregateRow is one group of the storage-side aggregation used for engine
// bootstrap and drift reconciliation: per (brand, window, label) counts with
// the mean confidence of that group.
type AggregateRow struct {
	Brand          string // "" for untagged posts (storage never emits BrandAll)
	WindowStart    time.Time
	Label          Label
	Count          int64
	MeanConfidence float64
}
