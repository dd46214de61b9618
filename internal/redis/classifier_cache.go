package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pscheid92/brandpulse/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const classifierKeyPrefix = "classifier:result:"

// ClassifierCache is a Redis-backed implementation of the classifier's
// result cache. Capacity bounding is delegated to Redis key expiry plus the
// server's own eviction policy; the TTL is the freshness window.
//
// Failures degrade gracefully: a Redis error is a cache miss on read and a
// no-op on write, never a classification failure.
type ClassifierCache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewClassifierCache(rdb *goredis.Client, ttl time.Duration) *ClassifierCache {
	return &ClassifierCache{rdb: rdb, ttl: ttl}
}

type cachedResult struct {
	Label        domain.Label `json:"label"`
	Confidence   float64      `json:"confidence"`
	ModelVersion string       `json:"model_version"`
	Method       string       `json:"method"`
}

func (c *ClassifierCache) Get(ctx context.Context, key string) (domain.SentimentResult, bool) {
	payload, err := c.rdb.Get(ctx, classifierKeyPrefix+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			slog.Warn("Classifier cache read failed, treating as miss", "error", err)
		}
		return domain.SentimentResult{}, false
	}

	var cached cachedResult
	if err := json.Unmarshal(payload, &cached); err != nil {
		slog.Warn("Corrupt classifier cache entry, treating as miss", "error", err)
		return domain.SentimentResult{}, false
	}

	return domain.SentimentResult{
		Label:        cached.Label,
		Confidence:   cached.Confidence,
		ModelVersion: cached.ModelVersion,
		Method:       cached.Method,
	}, true
}

func (c *ClassifierCache) Set(ctx context.Context, key string, result domain.SentimentResult) {
	payload, err := json.Marshal(cachedResult{
		Label:        result.Label,
		Confidence:   result.Confidence,
		ModelVersion: result.ModelVersion,
		Method:       result.Method,
	})
	if err != nil {
		slog.Warn("Failed to marshal classifier cache entry", "error", err)
		return
	}

	if err := c.rdb.Set(ctx, classifierKeyPrefix+key, payload, c.ttl).Err(); err != nil {
		slog.Warn("Classifier cache write failed", "error", err)
	}
}
