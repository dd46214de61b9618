// Package app is the application layer — the only component that references
// multiple domain components. It drives a submission through validation,
// classification, persistence and aggregation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/brandpulse/internal/domain"
	apperrors "github.com/pscheid92/brandpulse/internal/errors"
	"github.com/pscheid92/brandpulse/internal/metrics"
	"github.com/pscheid92/brandpulse/internal/platform/retry"
	"golang.org/x/sync/singleflight"
)

const (
	// overloadedRetryAfter is the wait suggested to clients rejected by
	// classifier backpressure.
	overloadedRetryAfter = 5 * time.Second
	// unavailableRetryAfter is the wait suggested when the model stayed down
	// through all retries.
	unavailableRetryAfter = 30 * time.Second
)

// storagePolicy bounds persistence retries. The write is idempotent, so
// retrying a save can never duplicate a record.
var storagePolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     time.Second,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Retrying save", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

// Aggregator is the slice of the aggregation engine the gateway drives.
type Aggregator interface {
	Apply(record domain.PersistedRecord) bool
	Applied(identity string) bool
}

// SubmitInput is one raw submission. Timestamp zero means "now"; SourceID
// overrides the content-derived identity.
type SubmitInput struct {
	Text      string
	Brand     string
	Timestamp time.Time
	SourceID  string
	Source    string
}

// pipelineOutcome is the shared result of one classify+save+aggregate run.
type pipelineOutcome struct {
	record    domain.PersistedRecord
	duplicate bool
}

type savedRecord struct {
	record   domain.PersistedRecord
	inserted bool
}

// Service is the ingestion gateway.
type Service struct {
	repo          domain.PostRepository
	classifier    domain.Classifier
	engine        Aggregator
	clock         clockwork.Clock
	maxTextLength int

	// inflight serializes the pipeline per identity so the dedup logic in
	// repository and engine never races itself.
	inflight singleflight.Group
	wg       sync.WaitGroup
}

func NewService(repo domain.PostRepository, classifier domain.Classifier, engine Aggregator, clock clockwork.Clock, maxTextLength int) *Service {
	return &Service{
		repo:          repo,
		classifier:    classifier,
		engine:        engine,
		clock:         clock,
		maxTextLength: maxTextLength,
	}
}

// Submit validates and admits one post. Validation failures are returned
// immediately; past admission the pipeline runs to completion even if the
// caller goes away, and the returned handle reports the outcome.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*PostHandle, error) {
	start := s.clock.Now()

	post, err := s.buildPost(input)
	if err != nil {
		metrics.IngestTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	handle := newPostHandle(post.Identity)

	// Detach from the caller: abandoning the request must not cancel
	// classification or persistence.
	pipelineCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(pipelineCtx, handle, post)
		metrics.IngestDuration.Observe(s.clock.Since(start).Seconds())
	}()

	return handle, nil
}

// SubmitAndWait is Submit followed by Wait on the returned handle.
func (s *Service) SubmitAndWait(ctx context.Context, input SubmitInput) (domain.PersistedRecord, error) {
	handle, err := s.Submit(ctx, input)
	if err != nil {
		return domain.PersistedRecord{}, err
	}
	return handle.Wait(ctx)
}

// Stop waits for all in-flight pipelines to finish.
func (s *Service) Stop() {
	s.wg.Wait()
}

// buildPost validates and normalizes one submission.
func (s *Service) buildPost(input SubmitInput) (domain.Post, error) {
	text := domain.NormalizeText(input.Text)
	if text == "" {
		return domain.Post{}, apperrors.ValidationError("text must not be empty")
	}
	if len(text) > s.maxTextLength {
		return domain.Post{}, apperrors.ValidationError(
			fmt.Sprintf("text exceeds maximum length of %d", s.maxTextLength)).
			WithContext("length", len(text))
	}

	brand := domain.NormalizeBrand(input.Brand)

	ts := input.Timestamp
	if ts.IsZero() {
		ts = s.clock.Now()
	}
	ts = ts.UTC()

	identity := input.SourceID
	if identity == "" {
		identity = ComputeIdentity(text, brand, ts)
	}

	return domain.Post{
		Identity:  identity,
		Text:      text,
		Brand:     brand,
		Timestamp: ts,
		Source:    input.Source,
	}, nil
}

// process runs the classify+save+aggregate sequence, collapsed per identity
// so concurrent resubmissions share one run.
func (s *Service) process(ctx context.Context, handle *PostHandle, post domain.Post) {
	v, err, _ := s.inflight.Do(post.Identity, func() (any, error) {
		return s.runPipeline(ctx, handle, post)
	})
	if err != nil {
		metrics.IngestTotal.WithLabelValues("failed").Inc()
		handle.fail(err)
		return
	}

	outcome := v.(pipelineOutcome)
	if outcome.duplicate {
		metrics.IngestTotal.WithLabelValues("duplicate").Inc()
	} else {
		metrics.IngestTotal.WithLabelValues("accepted").Inc()
	}
	handle.complete(outcome.record)
}

func (s *Service) runPipeline(ctx context.Context, handle *PostHandle, post domain.Post) (pipelineOutcome, error) {
	// Already-processed identities replay without touching the classifier.
	existing, err := s.repo.GetByID(ctx, post.Identity)
	switch {
	case err == nil:
		s.applyOnce(existing)
		return pipelineOutcome{record: existing, duplicate: true}, nil
	case !errors.Is(err, domain.ErrRecordNotFound):
		return pipelineOutcome{}, apperrors.InternalError("failed to check for existing record", err)
	}

	handle.setStatus(domain.StatusClassifying)
	result, err := s.classifier.Classify(ctx, post.Text)
	if err != nil {
		return pipelineOutcome{}, mapClassifyError(err)
	}
	handle.setStatus(domain.StatusClassified)

	saved, err := retry.Do(ctx, storagePolicy, classifySaveFailure, func() (savedRecord, error) {
		rec, inserted, saveErr := s.repo.Save(ctx, post, result)
		return savedRecord{record: rec, inserted: inserted}, saveErr
	})
	if err != nil {
		return pipelineOutcome{}, apperrors.InternalError("failed to persist record", err).
			WithContext("identity", post.Identity)
	}
	handle.setStatus(domain.StatusPersisted)

	s.applyOnce(saved.record)
	return pipelineOutcome{record: saved.record, duplicate: !saved.inserted}, nil
}

// applyOnce folds the record into the aggregates unless it already counted.
// Covers the crash window where a save succeeded but the apply never ran.
func (s *Service) applyOnce(record domain.PersistedRecord) {
	if !s.engine.Applied(record.Identity) {
		s.engine.Apply(record)
	}
}

// classifySaveFailure retries every storage failure except caller
// cancellation.
func classifySaveFailure(err error) retry.Action {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Stop
	}
	return retry.Retry
}

// mapClassifyError translates classifier failures into the client-facing
// error taxonomy.
func mapClassifyError(err error) error {
	switch {
	case errors.Is(err, domain.ErrOverloaded):
		return apperrors.OverloadedError("classifier is overloaded, retry later", overloadedRetryAfter)
	case errors.Is(err, domain.ErrInference):
		return apperrors.UnprocessableError("text could not be scored", err)
	case errors.Is(err, domain.ErrModelUnavailable):
		return apperrors.UnavailableError("sentiment model is unavailable", err, unavailableRetryAfter)
	default:
		return apperrors.InternalError("classification failed", err)
	}
}
