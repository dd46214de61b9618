package domain

import "time"

// RecordSchemaVersion is stamped on every persisted record so the storage
// format can evolve without ambiguity about which shape a row carries.
const RecordSchemaVersion = 1

// Label is the sentiment classification of a post.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Valid reports whether l is one of the three known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelPositive, LabelNegative, LabelNeutral:
		return true
	}
	return false
}

// Labels lists all labels in a stable order.
func Labels() []Label {
	return []Label{LabelPositive, LabelNegative, LabelNeutral}
}

// Post is a single ingested social-media post. Immutable once persisted.
// Identity is either the caller-supplied source id or a content hash of
// (normalized text, brand, second-rounded timestamp).
type Post struct {
	Identity  string
	Text      string
	Brand     string // normalized (trimmed, lower-cased); "" if untagged
	Timestamp time.Time
	Source    string
}

// SentimentResult is the classification attached to a post. Created once,
// never revised.
type SentimentResult struct {
	Label        Label
	Confidence   float64 // in [0, 1]
	ModelVersion string
	Method       string // "huggingface" or "lexicon"
}

// PersistedRecord is the durable (Post, SentimentResult) unit. A reader
// never observes a post without its result.
type PersistedRecord struct {
	Post
	Result        SentimentResult
	SchemaVersion int
	CreatedAt     time.Time
}

// PostStatus tracks a submission through the pipeline.
type PostStatus string

const (
	StatusPending     PostStatus = "pending"
	StatusClassifying PostStatus = "classifying"
	StatusClassified  PostStatus = "classified"
	StatusPersisted   PostStatus = "persisted"
	StatusAggregated  PostStatus = "aggregated"
	StatusFailed      PostStatus = "failed"
)
