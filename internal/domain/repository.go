package domain

import (
	"context"
	"time"
)

// QueryFilter narrows a post listing or aggregate snapshot.
// Nil fields mean "no constraint". Brand matches the normalized tag;
// an empty-string brand matches untagged posts.
type QueryFilter struct {
	Brand *string
	From  *time.Time
	To    *time.Time
}

// PostRepository is the persistence façade: durable, idempotent storage of
// (Post, SentimentResult) records keyed by identity.
type PostRepository interface {
	// Save stores the record as a single atomic unit. Saving an identity
	// that already exists is a no-op that returns the original record;
	// inserted reports whether this call created the record.
	Save(ctx context.Context, post Post, result SentimentResult) (record PersistedRecord, inserted bool, err error)

	// GetByID returns the record for an identity, or ErrRecordNotFound.
	GetByID(ctx context.Context, identity string) (PersistedRecord, error)

	// Query returns one page of records ordered by timestamp descending
	// with identity as the stable tiebreaker, plus the total match count.
	// page is 1-based.
	Query(ctx context.Context, filter QueryFilter, page, pageSize int) ([]PersistedRecord, int64, error)

	// AggregateSnapshot groups all persisted records into
	// (brand, window, label) rows. It is the ground truth the aggregation
	// engine reconciles against.
	AggregateSnapshot(ctx context.Context, granularity Granularity) ([]AggregateRow, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}
