package domain

import "errors"

var (
	// ErrRecordNotFound is returned by repository lookups for unknown identities.
	ErrRecordNotFound = errors.New("record not found")

	// ErrModelUnavailable is a transient inference failure (timeout, 5xx,
	// model loading). Retried with backoff before surfacing.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrInference means this specific input could not be scored.
	// Permanent per input; never retried.
	ErrInference = errors.New("input could not be scored")

	// ErrOverloaded is the backpressure signal: the in-flight limit is
	// saturated and the request exceeded its queue wait.
	ErrOverloaded = errors.New("classifier overloaded")
)
