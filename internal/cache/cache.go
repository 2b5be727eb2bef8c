// Package cache provides pluggable memoization of stage outputs. Variants are
// interchangeable behind one interface; cache failures never surface as stage
// failures, they degrade to a miss.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Cache memoizes candidate sets. Implementations must treat stored sets as
// immutable: a Set for an existing key replaces the entry, and returned sets
// are safe for the caller to mutate.
type Cache interface {
	Get(ctx context.Context, key string) (domain.CandidateSet, bool)
	Set(ctx context.Context, key string, cs domain.CandidateSet, ttl time.Duration)
}

// Key builds a cache key from everything that affects a stage's output:
// the stage identity, the query, the input set fingerprint, and the
// effective top-K.
func Key(stage, query, fingerprint string, topK int) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s\x00%s\x00%s\x00%d", stage, query, fingerprint, topK))
	return hex.EncodeToString(h[:])
}

// Noop always misses. Used when caching is disabled for a stage.
type Noop struct{}

// NewNoop creates a no-op cache.
func NewNoop() Noop { return Noop{} }

// Get always reports a miss.
func (Noop) Get(context.Context, string) (domain.CandidateSet, bool) { return nil, false }

// Set discards the entry.
func (Noop) Set(context.Context, string, domain.CandidateSet, time.Duration) {}
