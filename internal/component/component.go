// Package component defines the stage backend contract and the registry
// that resolves configured backend types to constructors.
package component

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/db"
	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Component is a stage backend. Retrieve takes the query, the candidates
// produced by the previous stage (empty for the first stage) and the
// effective top-K, and returns at most topK candidates in rank order.
type Component interface {
	Name() string
	Retrieve(ctx context.Context, q domain.Query, in domain.CandidateSet, topK int) (domain.CandidateSet, error)
}

// Ingestor is implemented by backends that accept documents for indexing.
type Ingestor interface {
	Ingest(ctx context.Context, docs []domain.Document) error
}

// Embedder converts texts to vectors. Implemented by transport/openai.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Deps carries the shared infrastructure available to backend constructors.
type Deps struct {
	Store     db.Store
	Embedder  Embedder
	KeyPrefix string
	Logger    *zap.Logger
}
