package rankdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/component/rerank"
	"github.com/kailas-cloud/rankdex/internal/component/rules"
	"github.com/kailas-cloud/rankdex/internal/component/vector"
	"github.com/kailas-cloud/rankdex/internal/config"
	"github.com/kailas-cloud/rankdex/internal/db"
	dbRedis "github.com/kailas-cloud/rankdex/internal/db/redis"
	"github.com/kailas-cloud/rankdex/internal/domain"
	"github.com/kailas-cloud/rankdex/internal/metrics"
	openaiEmb "github.com/kailas-cloud/rankdex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/rankdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/rankdex/internal/usecase/ingest"
	retrieveuc "github.com/kailas-cloud/rankdex/internal/usecase/retrieve"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "rankdex:"
	defaultMaxBatchSize     = 100
	defaultQueryTimeout     = 10 * time.Second
)

// Internal interfaces for substitution in tests.
type retrieveUseCase interface {
	Retrieve(ctx context.Context, q domain.Query) domain.Result
	Ingestors() []component.Ingestor
}

type ingestUseCase interface {
	Ingest(ctx context.Context, docs []domain.Document) ([]string, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the rankdex SDK entry point.
type Client struct {
	store       db.Store
	retrieveSvc retrieveUseCase
	ingestSvc   ingestUseCase
	healthSvc   healthUseCase
}

// New creates a rankdex Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix:    defaultKeyPrefix,
		maxBatchSize: defaultMaxBatchSize,
		queryTimeout: defaultQueryTimeout,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("rankdex: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("rankdex: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("rankdex: database not ready: %w", err)
	}

	c, err := wire(ctx, store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wire(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics.RegisterPipelineMetrics()
	metrics.RegisterEmbeddingMetrics()

	embedder := cfg.embedder
	if embedder == nil && cfg.apiKey != "" {
		embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.apiKey,
			BaseURL:    cfg.baseURL,
			Model:      cfg.model,
			Dimensions: cfg.dimensions,
			Provider:   "openai",
			Logger:     logger,
		})
	}

	stages := cfg.stages
	if len(stages) == 0 {
		if cfg.dimensions <= 0 {
			return nil, errors.New(
				"rankdex: stages required (use WithStages, or WithEmbeddingAPI for the default funnel)")
		}
		stages = DefaultStages(cfg.dimensions)
	}

	rcfg := config.RetrievalConfig{
		QueryTimeoutSec: int(cfg.queryTimeout / time.Second),
		MaxBatchSize:    cfg.maxBatchSize,
		Stages:          make([]config.StageConfig, len(stages)),
	}
	for i, s := range stages {
		rcfg.Stages[i] = s.toConfig()
	}

	deps := component.Deps{
		Store:     store,
		KeyPrefix: cfg.keyPrefix,
		Logger:    logger,
	}
	if embedder != nil {
		deps.Embedder = embedder
	}

	reg := component.NewRegistry()
	reg.Register(StageVector, vector.Factory)
	reg.Register(StageRules, rules.Factory)
	reg.Register(StageEmbedding, rerank.Factory)

	retrieveSvc, err := retrieveuc.Build(rcfg, reg, deps, logger)
	if err != nil {
		return nil, fmt.Errorf("rankdex: build pipeline: %w", err)
	}

	for _, ing := range retrieveSvc.Ingestors() {
		if idx, ok := ing.(interface{ EnsureIndex(context.Context) error }); ok {
			if err := idx.EnsureIndex(ctx); err != nil {
				return nil, fmt.Errorf("rankdex: ensure search index: %w", err)
			}
		}
	}

	var embChecker healthuc.EmbeddingChecker
	if hc, ok := embedder.(healthuc.EmbeddingChecker); ok {
		embChecker = hc
	}

	return &Client{
		store:       store,
		retrieveSvc: retrieveSvc,
		ingestSvc:   ingestuc.New(retrieveSvc.Ingestors(), cfg.maxBatchSize, logger),
		healthSvc:   healthuc.New(store, embChecker),
	}, nil
}

// Retrieve runs the staged pipeline for one query. Backend failures
// degrade the result instead of failing it; inspect Result.Degraded
// and Result.Stages for details.
func (c *Client) Retrieve(ctx context.Context, q Query) (Result, error) {
	if q.Text == "" {
		return Result{}, errors.New("rankdex: query text required")
	}
	res := c.retrieveSvc.Retrieve(ctx, domain.Query{Text: q.Text, TopK: q.TopK})
	return fromDomainResult(res), nil
}

// IngestDocuments stores a document batch in every stage backend that
// indexes documents. Returns the document IDs in input order, generating
// IDs where missing.
func (c *Client) IngestDocuments(ctx context.Context, docs []Document) ([]string, error) {
	return c.ingestSvc.Ingest(ctx, toDomainDocs(docs))
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component -> "ok"/"error"
}

// Health checks the health of the database and the embedding provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	return HealthStatus{
		Status: string(report.Status),
		Checks: report.Checks,
	}
}

// Close releases the database connection.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}
