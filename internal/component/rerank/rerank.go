// Package rerank implements the embedding cosine-similarity re-rank backend.
package rerank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Reranker rescores candidates by cosine similarity between the query
// embedding and each document embedding, computed in one batch call.
type Reranker struct {
	name     string
	embedder component.Embedder
	logger   *zap.Logger
}

// Factory builds a Reranker. No params; the embedder comes from deps.
func Factory(name string, _ component.Params, deps component.Deps) (component.Component, error) {
	if deps.Embedder == nil {
		return nil, fmt.Errorf("rerank backend requires an embedder: %w", domain.ErrConfiguration)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{name: name, embedder: deps.Embedder, logger: logger}, nil
}

// Name returns the stage name this backend serves.
func (r *Reranker) Name() string { return r.name }

// Retrieve embeds the query and all candidates together, rescores by
// cosine similarity and returns the topK best. Ties keep input order.
func (r *Reranker) Retrieve(ctx context.Context, q domain.Query, in domain.CandidateSet, topK int) (domain.CandidateSet, error) {
	if len(in) == 0 {
		return in, nil
	}

	texts := make([]string, 0, len(in)+1)
	texts = append(texts, q.Text)
	for _, d := range in {
		texts = append(texts, d.Content)
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed for rerank: %w", err)
	}

	queryVec := vectors[0]
	out := in.Clone()
	for i := range out {
		out[i].Score = cosine(queryVec, vectors[i+1])
		out[i].Stage = r.name
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out.Truncate(topK), nil
}

// cosine returns the cosine similarity of two vectors, 0 for mismatched
// or zero-norm inputs.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
