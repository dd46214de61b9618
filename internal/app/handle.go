package app

import (
	"context"
	"sync"

	"github.com/pscheid92/brandpulse/internal/domain"
)

// PostHandle tracks one submission through the pipeline. Submit returns it
// immediately; callers can poll Status or block on Wait for the outcome.
type PostHandle struct {
	identity string
	done     chan struct{}

	mu     sync.RWMutex
	status domain.PostStatus
	record domain.PersistedRecord
	err    error
}

func newPostHandle(identity string) *PostHandle {
	return &PostHandle{
		identity: identity,
		done:     make(chan struct{}),
		status:   domain.StatusPending,
	}
}

// Identity returns the deterministic dedup key of the submission.
func (h *PostHandle) Identity() string {
	return h.identity
}

// Status returns the current pipeline stage.
func (h *PostHandle) Status() domain.PostStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Wait blocks until the pipeline finishes or ctx is cancelled. Cancelling
// only abandons the wait; the pipeline itself always runs to completion.
func (h *PostHandle) Wait(ctx context.Context) (domain.PersistedRecord, error) {
	select {
	case <-h.done:
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.record, h.err
	case <-ctx.Done():
		return domain.PersistedRecord{}, ctx.Err()
	}
}

func (h *PostHandle) setStatus(status domain.PostStatus) {
	h.mu.Lock()
	h.status = status
	h.mu.Unlock()
}

func (h *PostHandle) complete(record domain.PersistedRecord) {
	h.mu.Lock()
	h.status = domain.StatusAggregated
	h.record = record
	h.mu.Unlock()
	close(h.done)
}

func (h *PostHandle) fail(err error) {
	h.mu.Lock()
	h.status = domain.StatusFailed
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
