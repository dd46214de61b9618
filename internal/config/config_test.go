package config

import (
	"testing"
	"time"

	"github.com/pscheid92/brandpulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, domain.GranularityHour, cfg.Granularity)
	assert.Equal(t, 8, cfg.ClassifierMaxInflight)
	assert.Equal(t, 10*time.Second, cfg.ClassifierTimeout)
	assert.Equal(t, 1000, cfg.MaxTextLength)
	assert.True(t, cfg.LexiconFallback)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AGGREGATE_GRANULARITY", "day")
	t.Setenv("CLASSIFIER_MAX_INFLIGHT", "32")
	t.Setenv("CLASSIFIER_QUEUE_WAIT", "500ms")
	t.Setenv("LEXICON_FALLBACK", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, domain.GranularityDay, cfg.Granularity)
	assert.Equal(t, 32, cfg.ClassifierMaxInflight)
	assert.Equal(t, 500*time.Millisecond, cfg.ClassifierQueueWait)
	assert.False(t, cfg.LexiconFallback)
}

func TestLoad_InvalidGranularity(t *testing.T) {
	t.Setenv("AGGREGATE_GRANULARITY", "fortnight")

	_, err := Load()
	assert.ErrorContains(t, err, "AGGREGATE_GRANULARITY")
}

func TestLoad_InvalidInflight(t *testing.T) {
	t.Setenv("CLASSIFIER_MAX_INFLIGHT", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "CLASSIFIER_MAX_INFLIGHT")
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("CLASSIFIER_TIMEOUT", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "CLASSIFIER_TIMEOUT")
}
