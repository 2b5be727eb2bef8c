package rankdex

import (
	"strconv"
	"time"

	"github.com/kailas-cloud/rankdex/internal/config"
	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Stage backend types.
const (
	StageVector    = "vector"    // embedding recall over the Redis vector index
	StageRules     = "rules"     // BM25 plus heuristic rules pre-ranking
	StageEmbedding = "embedding" // embedding cosine re-ranking
)

// Degradation policies applied when a stage backend fails.
const (
	DegradePassthrough = "passthrough" // forward the truncated input set
	DegradeEmpty       = "empty"       // clear the candidate set
)

// Stage configures one pipeline stage. Stages execute in order and
// top-K values must not increase along the chain.
type Stage struct {
	Name         string
	Type         string
	TopK         int
	Timeout      time.Duration
	Degrade      string
	CacheVariant string // none | memory | redis
	CacheTTL     time.Duration
	Params       map[string]string
}

// DefaultStages returns the standard three-stage funnel: vector recall
// to 100 candidates, rule-based pre-ranking to 20, embedding re-ranking
// to 5. dim is the embedding dimensionality of the recall index.
func DefaultStages(dim int) []Stage {
	return []Stage{
		{
			Name: "recall", Type: StageVector, TopK: 100,
			Timeout: 3 * time.Second, Degrade: DegradeEmpty,
			CacheVariant: "redis", CacheTTL: 5 * time.Minute,
			Params: map[string]string{"dim": strconv.Itoa(dim)},
		},
		{
			Name: "prerank", Type: StageRules, TopK: 20,
			Timeout: time.Second, Degrade: DegradePassthrough,
			CacheVariant: "memory", CacheTTL: time.Minute,
		},
		{
			Name: "rerank", Type: StageEmbedding, TopK: 5,
			Timeout: 3 * time.Second, Degrade: DegradePassthrough,
			CacheVariant: "memory", CacheTTL: time.Minute,
		},
	}
}

// Query is a retrieval request. TopK optionally narrows per-stage
// result counts below the configured maxima, keyed by stage name.
type Query struct {
	Text string
	TopK map[string]int
}

// Document is a retrieval candidate or an ingest payload.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
	Score    float64
}

// StageOutcome reports how one stage completed.
type StageOutcome struct {
	Stage       string
	Status      string // success | cache_hit | degraded | skipped
	Latency     time.Duration
	InputCount  int
	OutputCount int
	Error       string
}

// Result is the retrieval output: ranked documents plus per-stage
// diagnostics. A fully degraded query has empty Documents, not an error.
type Result struct {
	Documents []Document
	Latency   time.Duration
	Stages    []StageOutcome
	Degraded  bool
}

func (s Stage) toConfig() config.StageConfig {
	return config.StageConfig{
		Name:       s.Name,
		Type:       s.Type,
		TopK:       s.TopK,
		TimeoutSec: int(s.Timeout / time.Second),
		Degrade:    s.Degrade,
		Cache: config.CacheConfig{
			Variant: s.CacheVariant,
			TTLSec:  int(s.CacheTTL / time.Second),
		},
		Params: s.Params,
	}
}

func toDomainDocs(docs []Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		out[i] = domain.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
			Score:    d.Score,
		}
	}
	return out
}

func fromDomainResult(r domain.Result) Result {
	docs := make([]Document, len(r.Documents))
	for i, d := range r.Documents {
		docs[i] = Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
			Score:    d.Score,
		}
	}
	stages := make([]StageOutcome, len(r.Diagnostics.Stages))
	for i, s := range r.Diagnostics.Stages {
		stages[i] = StageOutcome{
			Stage:       s.Stage,
			Status:      string(s.Status),
			Latency:     s.Latency,
			InputCount:  s.InputCount,
			OutputCount: s.OutputCount,
			Error:       s.Error,
		}
	}
	return Result{
		Documents: docs,
		Latency:   r.Diagnostics.Latency,
		Stages:    stages,
		Degraded:  r.Diagnostics.Degraded(),
	}
}
