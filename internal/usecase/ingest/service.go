// Package ingest feeds documents to the pipeline backends that index them.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Service validates document batches and hands them to every ingesting
// backend in stage order.
type Service struct {
	ingestors []component.Ingestor
	maxBatch  int
	logger    *zap.Logger
}

// New creates an ingest service. maxBatch <= 0 means no batch limit.
func New(ingestors []component.Ingestor, maxBatch int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{ingestors: ingestors, maxBatch: maxBatch, logger: logger}
}

// Ingest stores the batch and returns the document IDs in input order.
// Documents without an ID get a generated one.
func (s *Service) Ingest(ctx context.Context, docs []domain.Document) ([]string, error) {
	if len(s.ingestors) == 0 {
		return nil, domain.ErrIngestNotSupported
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("empty batch: %w", domain.ErrInvalidRequest)
	}
	if s.maxBatch > 0 && len(docs) > s.maxBatch {
		return nil, fmt.Errorf("batch of %d exceeds limit %d: %w",
			len(docs), s.maxBatch, domain.ErrInvalidRequest)
	}

	ids := make([]string, len(docs))
	for i := range docs {
		if strings.TrimSpace(docs[i].Content) == "" {
			return nil, fmt.Errorf("document %d has empty content: %w", i, domain.ErrInvalidRequest)
		}
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		ids[i] = docs[i].ID
	}

	for _, ing := range s.ingestors {
		if err := ing.Ingest(ctx, docs); err != nil {
			return nil, fmt.Errorf("ingest batch: %w", err)
		}
	}

	s.logger.Info("documents ingested", zap.Int("count", len(docs)))
	return ids, nil
}
