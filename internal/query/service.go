// Package query serves paginated post listings and aggregate statistics to
// the boundary layer. It reads persisted records through the repository and
// counters through the aggregation engine; it never mutates either.
package query

import (
	"context"
	"time"

	"github.com/pscheid92/brandpulse/internal/domain"
	apperrors "github.com/pscheid92/brandpulse/internal/errors"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// BucketSource is the read side of the aggregation engine.
type BucketSource interface {
	Snapshot(brand string, from, to *time.Time) []domain.AggregateBucket
	Granularity() domain.Granularity
}

// Stats is the merged sentiment summary for one scope.
type Stats struct {
	Positive       int64
	Negative       int64
	Neutral        int64
	Total          int64
	Percentages    map[domain.Label]float64
	MeanConfidence float64
}

// TimelinePoint is the sentiment summary of a single time window.
type TimelinePoint struct {
	WindowStart time.Time
	Stats       Stats
}

// PostPage is one page of persisted records. Page and PageSize are the
// values actually served after clamping, so callers can echo them back.
type PostPage struct {
	Items    []domain.PersistedRecord
	Page     int
	PageSize int
	Total    int64
}

// Service answers read queries.
type Service struct {
	repo    domain.PostRepository
	buckets BucketSource
}

func NewService(repo domain.PostRepository, buckets BucketSource) *Service {
	return &Service{repo: repo, buckets: buckets}
}

// ListPosts returns one page of persisted records, newest first. An unknown
// brand yields an empty page, not an error.
func (s *Service) ListPosts(ctx context.Context, brand string, from, to *time.Time, page, pageSize int) (PostPage, error) {
	page, pageSize = clampPaging(page, pageSize)

	filter := domain.QueryFilter{From: from, To: to}
	if brand != "" {
		normalized := domain.NormalizeBrand(brand)
		filter.Brand = &normalized
	}

	records, total, err := s.repo.Query(ctx, filter, page, pageSize)
	if err != nil {
		return PostPage{}, apperrors.InternalError("failed to list posts", err)
	}
	return PostPage{Items: records, Page: page, PageSize: pageSize, Total: total}, nil
}

// SentimentStats merges every bucket of the scope into one summary. An empty
// brand means the "all" rollup. A window with no posts reports zero counts
// and zero percentages.
func (s *Service) SentimentStats(_ context.Context, brand string, from, to *time.Time) Stats {
	return mergeBuckets(s.buckets.Snapshot(scopeBrand(brand), from, to))
}

// Timeline returns one merged summary per window, ordered by window start.
func (s *Service) Timeline(_ context.Context, brand string, from, to *time.Time) []TimelinePoint {
	buckets := s.buckets.Snapshot(scopeBrand(brand), from, to)

	points := make([]TimelinePoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, TimelinePoint{
			WindowStart: b.WindowStart,
			Stats:       mergeBuckets([]domain.AggregateBucket{b}),
		})
	}
	return points
}

// CompareBrands returns the merged summary per requested brand.
func (s *Service) CompareBrands(_ context.Context, brands []string, from, to *time.Time) (map[string]Stats, error) {
	if len(brands) == 0 {
		return nil, apperrors.ValidationError("at least one brand is required")
	}

	out := make(map[string]Stats, len(brands))
	for _, brand := range brands {
		normalized := domain.NormalizeBrand(brand)
		if normalized == "" {
			return nil, apperrors.ValidationError("brand must not be empty")
		}
		out[normalized] = mergeBuckets(s.buckets.Snapshot(normalized, from, to))
	}
	return out, nil
}

// Granularity returns the window width stats and timelines are bucketed by.
func (s *Service) Granularity() domain.Granularity {
	return s.buckets.Granularity()
}

func scopeBrand(brand string) string {
	normalized := domain.NormalizeBrand(brand)
	if normalized == "" {
		return domain.BrandAll
	}
	return normalized
}

func clampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return page, pageSize
}

// mergeBuckets sums counts across buckets and recomputes the weighted mean.
func mergeBuckets(buckets []domain.AggregateBucket) Stats {
	stats := Stats{Percentages: zeroPercentages()}

	var confidenceSum float64
	for _, b := range buckets {
		stats.Positive += b.Positive
		stats.Negative += b.Negative
		stats.Neutral += b.Neutral
		stats.Total += b.Total
		confidenceSum += float64(b.Total) * b.MeanConfidence
	}

	if stats.Total == 0 {
		return stats
	}

	stats.MeanConfidence = confidenceSum / float64(stats.Total)
	stats.Percentages[domain.LabelPositive] = 100 * float64(stats.Positive) / float64(stats.Total)
	stats.Percentages[domain.LabelNegative] = 100 * float64(stats.Negative) / float64(stats.Total)
	stats.Percentages[domain.LabelNeutral] = 100 * float64(stats.Neutral) / float64(stats.Total)
	return stats
}

func zeroPercentages() map[domain.Label]float64 {
	return map[domain.Label]float64{
		domain.LabelPositive: 0,
		domain.LabelNegative: 0,
		domain.LabelNeutral:  0,
	}
}
