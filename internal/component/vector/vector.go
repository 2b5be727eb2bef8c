// Package vector implements the embedding KNN recall backend.
package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/db"
	"github.com/kailas-cloud/rankdex/internal/domain"
)

// store is the database surface the backend consumes.
type store interface {
	db.Searcher
	db.HashStore
	db.IndexManager
}

// Recall retrieves candidates by embedding the query text and running a
// KNN search over the document index. It is the first stage backend, so
// it ignores incoming candidates.
type Recall struct {
	name      string
	store     store
	embedder  component.Embedder
	index     string
	prefix    string
	dim       int
	threshold float64
	logger    *zap.Logger
}

// Factory builds a Recall from stage params:
//
//	index            FT index name (default <key_prefix>docs:idx)
//	dim              vector dimensionality, required for index creation
//	score_threshold  minimum similarity to keep a hit (default 0)
func Factory(name string, params component.Params, deps component.Deps) (component.Component, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("vector backend requires a database: %w", domain.ErrConfiguration)
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("vector backend requires an embedder: %w", domain.ErrConfiguration)
	}

	dim, err := params.Int("dim", 0)
	if err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector backend requires a positive dim param: %w", domain.ErrConfiguration)
	}

	threshold, err := params.Float("score_threshold", 0)
	if err != nil {
		return nil, err
	}

	return &Recall{
		name:      name,
		store:     deps.Store,
		embedder:  deps.Embedder,
		index:     params.String("index", deps.KeyPrefix+"docs:idx"),
		prefix:    deps.KeyPrefix + "doc:",
		dim:       dim,
		threshold: threshold,
		logger:    deps.Logger,
	}, nil
}

// Name returns the stage name this backend serves.
func (r *Recall) Name() string { return r.name }

// Retrieve embeds the query and returns up to topK nearest documents
// above the similarity threshold, best first.
func (r *Recall) Retrieve(ctx context.Context, q domain.Query, _ domain.CandidateSet, topK int) (domain.CandidateSet, error) {
	vectors, err := r.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	result, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.index,
		Vector:       vectors[0],
		K:            topK,
		// __vector_score carries the KNN distance; without it every
		// hit comes back unscored.
		ReturnFields: []string{"id", "content", "metadata", "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w: %w", err, domain.ErrComponentFailure)
	}

	out := make(domain.CandidateSet, 0, len(result.Entries))
	for _, e := range result.Entries {
		if e.Score < r.threshold {
			continue
		}
		doc := domain.Document{
			ID:      e.Fields["id"],
			Content: e.Fields["content"],
			Score:   e.Score,
			Stage:   r.name,
		}
		if doc.ID == "" {
			doc.ID = e.Key
		}
		if raw := e.Fields["metadata"]; raw != "" {
			var meta map[string]string
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				doc.Metadata = meta
			} else {
				r.logger.Warn("malformed document metadata",
					zap.String("key", e.Key), zap.Error(err))
			}
		}
		out = append(out, doc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out.Dedupe(), nil
}

// EnsureIndex creates the HNSW document index when it does not exist.
func (r *Recall) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     r.index,
		Prefixes: []string{r.prefix},
		Fields: []db.IndexField{
			{Name: "id", Type: db.IndexFieldTag},
			{Name: "content", Type: db.IndexFieldText},
			{Name: "vector", Type: db.IndexFieldVector,
				VectorAlgo: db.VectorHNSW, VectorDistance: db.DistanceCosine,
				VectorDim: r.dim, VectorM: 16, VectorEFConstruct: 200},
		},
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	r.logger.Info("document index created", zap.String("index", r.index), zap.Int("dim", r.dim))
	return nil
}

// Ingest embeds and stores documents as hashes under the index prefix.
// Documents without an ID keep the content hash assigned by the caller.
func (r *Recall) Ingest(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}

	items := make([]db.HashSetItem, len(docs))
	for i, d := range docs {
		fields := map[string]string{
			"id":      d.ID,
			"content": d.Content,
			"vector":  encodeVector(vectors[i]),
		}
		if len(d.Metadata) > 0 {
			meta, err := json.Marshal(d.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", d.ID, err)
			}
			fields["metadata"] = string(meta)
		}
		items[i] = db.HashSetItem{Key: r.prefix + d.ID, Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}
	return nil
}

// encodeVector packs float32s little-endian for the FT vector field.
func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
