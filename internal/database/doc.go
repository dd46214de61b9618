// Package database implements the persistence façade: durable, idempotent
// storage of (Post, SentimentResult) records keyed by identity, backed by
// PostgreSQL, plus an in-memory implementation for single-binary mode and
// tests.
package database
