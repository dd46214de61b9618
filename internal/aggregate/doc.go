// Package aggregate maintains the in-memory sentiment counters: per-brand,
// time-bucketed label counts with an incremental mean confidence. The counters
// are derived state and can always be rebuilt by replaying persisted records.
package aggregate
