package retrieve

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/breaker"
	"github.com/kailas-cloud/rankdex/internal/cache"
	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/config"
	"github.com/kailas-cloud/rankdex/internal/domain"
	"github.com/kailas-cloud/rankdex/internal/pipeline"
)

// Build assembles the retrieval service from the configured stage list.
// Disabled stages are not constructed. Build fails on an empty pipeline,
// a widening funnel or an unresolvable backend type; all such errors
// wrap domain.ErrConfiguration and are fatal to startup.
func Build(rcfg config.RetrievalConfig, reg *component.Registry, deps component.Deps, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	enabled := make([]config.StageConfig, 0, len(rcfg.Stages))
	for _, sc := range rcfg.Stages {
		if sc.IsEnabled() {
			enabled = append(enabled, sc)
		}
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no enabled stages: %w", domain.ErrConfiguration)
	}

	for i := 1; i < len(enabled); i++ {
		if enabled[i].TopK > enabled[i-1].TopK {
			return nil, fmt.Errorf(
				"stage %s widens the funnel (top_k %d after %d): %w",
				enabled[i].Name, enabled[i].TopK, enabled[i-1].TopK, domain.ErrConfiguration,
			)
		}
	}

	stages := make([]*pipeline.Stage, 0, len(enabled))
	var ingestors []component.Ingestor

	for _, sc := range enabled {
		comp, err := reg.Build(sc.Type, sc.Name, component.Params(sc.Params), deps)
		if err != nil {
			return nil, err
		}

		stageCache, err := buildCache(sc, deps, logger)
		if err != nil {
			return nil, err
		}

		stages = append(stages, pipeline.NewStage(pipeline.StageOptions{
			Name:      sc.Name,
			Component: comp,
			Cache:     stageCache,
			TTL:       time.Duration(sc.Cache.TTLSec) * time.Second,
			Breaker: breaker.New(breaker.Config{
				FailureThreshold: sc.Breaker.FailureThreshold,
				Window:           time.Duration(sc.Breaker.WindowSec) * time.Second,
				Cooldown:         time.Duration(sc.Breaker.CooldownSec) * time.Second,
				BackoffFactor:    sc.Breaker.BackoffFactor,
			}),
			Timeout:      time.Duration(sc.TimeoutSec) * time.Second,
			DegradeEmpty: sc.Degrade == config.DegradeEmpty,
			TopK:         sc.TopK,
			Logger:       logger,
		}))

		if ing, ok := comp.(component.Ingestor); ok {
			ingestors = append(ingestors, ing)
		}

		logger.Info("stage configured",
			zap.String("stage", sc.Name),
			zap.String("type", sc.Type),
			zap.Int("top_k", sc.TopK),
			zap.String("cache", sc.Cache.Variant),
			zap.String("degrade", sc.Degrade))
	}

	return &Service{
		pipeline:  pipeline.New(stages, logger),
		ingestors: ingestors,
		timeout:   time.Duration(rcfg.QueryTimeoutSec) * time.Second,
		logger:    logger,
	}, nil
}

func buildCache(sc config.StageConfig, deps component.Deps, logger *zap.Logger) (cache.Cache, error) {
	switch sc.Cache.Variant {
	case "", config.CacheNone:
		return cache.NewNoop(), nil
	case config.CacheMemory:
		return cache.NewMemory(sc.Cache.MaxEntries), nil
	case config.CacheRedis:
		if deps.Store == nil {
			return nil, fmt.Errorf(
				"stage %s: redis cache requires a database: %w", sc.Name, domain.ErrConfiguration)
		}
		return cache.NewRedis(deps.Store, deps.KeyPrefix+"cache:", logger), nil
	default:
		return nil, fmt.Errorf(
			"stage %s: unknown cache variant %q: %w", sc.Name, sc.Cache.Variant, domain.ErrConfiguration)
	}
}
