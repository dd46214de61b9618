package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/brandpulse/internal/domain"
)

// MemoryRepo is an in-memory domain.PostRepository for single-binary mode
// and tests. Semantics mirror PostRepo exactly, including idempotent saves
// and stable pagination order.
type MemoryRepo struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	records map[string]domain.PersistedRecord
}

func NewMemoryRepo(clock clockwork.Clock) *MemoryRepo {
	return &MemoryRepo{
		clock:   clock,
		records: make(map[string]domain.PersistedRecord),
	}
}

func (r *MemoryRepo) Save(_ context.Context, post domain.Post, result domain.SentimentResult) (domain.PersistedRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[post.Identity]; ok {
		return existing, false, nil
	}

	record := domain.PersistedRecord{
		Post:          post,
		Result:        result,
		SchemaVersion: domain.RecordSchemaVersion,
		CreatedAt:     r.clock.Now().UTC(),
	}
	record.Timestamp = record.Timestamp.UTC()
	r.records[post.Identity] = record
	return record, true, nil
}

func (r *MemoryRepo) GetByID(_ context.Context, identity string) (domain.PersistedRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[identity]
	if !ok {
		return domain.PersistedRecord{}, domain.ErrRecordNotFound
	}
	return record, nil
}

func (r *MemoryRepo) Query(_ context.Context, filter domain.QueryFilter, page, pageSize int) ([]domain.PersistedRecord, int64, error) {
	r.mu.RLock()
	matched := make([]domain.PersistedRecord, 0, len(r.records))
	for _, record := range r.records {
		if matchesFilter(record, filter) {
			matched = append(matched, record)
		}
	}
	r.mu.RUnlock()

	// Newest first; identity breaks timestamp ties so pages never reshuffle.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].Identity < matched[j].Identity
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepo) AggregateSnapshot(_ context.Context, granularity domain.Granularity) ([]domain.AggregateRow, error) {
	type groupKey struct {
		brand  string
		window time.Time
		label  domain.Label
	}
	type group struct {
		count int64
		sum   float64
	}

	r.mu.RLock()
	groups := make(map[groupKey]*group)
	for _, record := range r.records {
		key := groupKey{
			brand:  record.Brand,
			window: granularity.Truncate(record.Timestamp),
			label:  record.Result.Label,
		}
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.count++
		g.sum += record.Result.Confidence
	}
	r.mu.RUnlock()

	rows := make([]domain.AggregateRow, 0, len(groups))
	for key, g := range groups {
		rows = append(rows, domain.AggregateRow{
			Brand:          key.brand,
			WindowStart:    key.window,
			Label:          key.label,
			Count:          g.count,
			MeanConfidence: g.sum / float64(g.count),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].WindowStart.Equal(rows[j].WindowStart) {
			return rows[i].WindowStart.Before(rows[j].WindowStart)
		}
		if rows[i].Brand != rows[j].Brand {
			return rows[i].Brand < rows[j].Brand
		}
		return rows[i].Label < rows[j].Label
	})
	return rows, nil
}

func (r *MemoryRepo) HealthCheck(context.Context) error {
	return nil
}

func matchesFilter(record domain.PersistedRecord, filter domain.QueryFilter) bool {
	if filter.Brand != nil && record.Brand != *filter.Brand {
		return false
	}
	if filter.From != nil && record.Timestamp.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !record.Timestamp.Before(*filter.To) {
		return false
	}
	return true
}
