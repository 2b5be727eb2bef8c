// Package retrieve exposes the staged retrieval pipeline as one facade:
// build it from configuration, hand it a query, get ranked documents
// plus per-stage diagnostics back.
package retrieve

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/domain"
	"github.com/kailas-cloud/rankdex/internal/metrics"
	"github.com/kailas-cloud/rankdex/internal/pipeline"
)

// Service is the retrieval facade over the staged pipeline.
type Service struct {
	pipeline  *pipeline.Pipeline
	ingestors []component.Ingestor
	timeout   time.Duration
	logger    *zap.Logger
}

// Retrieve runs the pipeline for one query under the query deadline.
// It never fails on backend trouble: degradation shows up in the
// diagnostics, and a fully degraded query returns an empty document set.
func (s *Service) Retrieve(ctx context.Context, q domain.Query) domain.Result {
	q.Text = strings.TrimSpace(q.Text)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	docs, diag := s.pipeline.Run(ctx, q)

	status := "ok"
	if diag.Degraded() {
		status = "degraded"
	}
	metrics.RetrievalsTotal.WithLabelValues(status).Inc()

	return domain.Result{Documents: docs, Diagnostics: diag}
}

// Ingestors returns the pipeline backends that accept documents,
// in stage order.
func (s *Service) Ingestors() []component.Ingestor {
	return s.ingestors
}

// Stages returns the configured stage names in execution order.
func (s *Service) Stages() []string {
	stages := s.pipeline.Stages()
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name()
	}
	return names
}
