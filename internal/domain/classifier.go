package domain

import "context"

// Classifier scores a piece of text. Implementations must honor the context
// deadline and return one of the sentinel errors below on failure.
type Classifier interface {
	Classify(ctx context.Context, text string) (SentimentResult, error)
}
