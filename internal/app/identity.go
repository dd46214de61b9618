package app

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ComputeIdentity derives the deterministic dedup key for a post without a
// caller-supplied id: a content hash of the normalized text, the normalized
// brand and the timestamp rounded to the second. Resubmitting the same
// content is a replay, not a new event.
func ComputeIdentity(normalizedText, brand string, ts time.Time) string {
	rounded := ts.UTC().Truncate(time.Second).Format(time.RFC3339)
	sum := sha256.Sum256([]byte(normalizedText + "\x00" + brand + "\x00" + rounded))
	return hex.EncodeToString(sum[:])
}
