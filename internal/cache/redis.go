package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/db"
	"github.com/kailas-cloud/rankdex/internal/domain"
)

// store is the consumer interface for the networked cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Redis caches candidate sets in a networked key-value store. Store failures
// and timeouts are swallowed into a miss (fail-open): the cache being down
// must never fail a stage.
type Redis struct {
	store  store
	prefix string
	logger *zap.Logger
}

// NewRedis creates a networked cache. prefix namespaces keys within the store.
func NewRedis(s store, prefix string, logger *zap.Logger) *Redis {
	return &Redis{store: s, prefix: prefix, logger: logger}
}

// Get returns the cached set, or a miss on absence, expiry, or store error.
func (r *Redis) Get(ctx context.Context, key string) (domain.CandidateSet, bool) {
	data, err := r.store.Get(ctx, r.prefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			r.logger.Warn("Stage cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var cs domain.CandidateSet
	if err := json.Unmarshal(data, &cs); err != nil {
		r.logger.Warn("Stage cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return cs, true
}

// Set stores the set with the given TTL, best-effort. ttl <= 0 stores nothing,
// relying on the store's expiry for staleness.
func (r *Redis) Set(ctx context.Context, key string, cs domain.CandidateSet, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(cs)
	if err != nil {
		r.logger.Warn("Stage cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.store.SetWithTTL(ctx, r.prefix+key, data, ttl); err != nil {
		r.logger.Warn("Stage cache write failed", zap.String("key", key), zap.Error(err))
	}
}
