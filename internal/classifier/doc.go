// Package classifier wraps external sentiment inference behind the
// domain.Classifier port. The Adapter adds a bounded-size result cache,
// bounded concurrency with queue-wait backpressure, per-call deadlines,
// retry with exponential backoff for transient failures, a circuit breaker,
// and an optional in-process lexicon fallback.
package classifier
