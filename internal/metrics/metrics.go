package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion Metrics
var (
	// IngestTotal tracks submissions by outcome (accepted, duplicate, rejected, failed)
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_posts_total",
			Help: "Total post submissions by outcome",
		},
		[]string{"outcome"},
	)

	// IngestDuration tracks end-to-end submit latency (validation through aggregation)
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "End-to-end submission duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Classifier Metrics
var (
	// ClassifierRequestsTotal tracks classification requests by outcome
	// (ok, cache_hit, fallback, unavailable, inference_error, overloaded)
	ClassifierRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_requests_total",
			Help: "Classification requests by outcome",
		},
		[]string{"outcome"},
	)

	// ClassifierDuration tracks external inference call latency
	ClassifierDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classifier_inference_duration_seconds",
			Help:    "External inference call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// ClassifierInflight tracks in-flight external inference calls
	ClassifierInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classifier_inflight_requests",
			Help: "Current in-flight external inference calls",
		},
	)

	// ClassifierRetriesTotal tracks inference retries after transient failures
	ClassifierRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_retries_total",
			Help: "Total inference retries after transient failures",
		},
	)

	// ClassifierCacheHits tracks result cache hits
	ClassifierCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_cache_hits_total",
			Help: "Total classifier result cache hits",
		},
	)

	// ClassifierCacheMisses tracks result cache misses
	ClassifierCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_cache_misses_total",
			Help: "Total classifier result cache misses",
		},
	)

	// ClassifierCacheEvictions tracks entries evicted from the result cache
	ClassifierCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classifier_cache_evictions_total",
			Help: "Total classifier result cache evictions (LRU or expiry)",
		},
	)

	// ClassifierCacheSize tracks current result cache entry count
	ClassifierCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classifier_cache_size",
			Help: "Current classifier result cache entry count",
		},
	)
)

// Circuit Breaker Metrics
var (
	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Aggregation Metrics
var (
	// AggregateBuckets tracks the number of live aggregate buckets
	AggregateBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregate_buckets",
			Help: "Number of live aggregate buckets",
		},
	)

	// AggregateAppliedTotal tracks results applied to aggregates
	AggregateAppliedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_applied_total",
			Help: "Total sentiment results applied to aggregates",
		},
	)

	// AggregateRebuildsTotal tracks full rebuilds from persisted ground truth
	AggregateRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_rebuilds_total",
			Help: "Total aggregate rebuilds from persisted records",
		},
	)

	// AggregateDriftDetected tracks reconciliations that found drift
	AggregateDriftDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aggregate_drift_detected_total",
			Help: "Reconciliation runs that detected drift against ground truth",
		},
	)
)

// Storage Metrics
var (
	// StorageOpsTotal tracks repository operations by operation and status
	StorageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Repository operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// StorageOpDuration tracks repository operation latency in seconds
	StorageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Repository operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)
