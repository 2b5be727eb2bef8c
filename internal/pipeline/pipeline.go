package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Pipeline runs stages in order, feeding each stage's output to the next.
type Pipeline struct {
	stages []*Stage
	logger *zap.Logger
}

// New creates a pipeline over the given stages.
func New(stages []*Stage, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{stages: stages, logger: logger}
}

// Stages returns the pipeline's stages in execution order.
func (p *Pipeline) Stages() []*Stage { return p.stages }

// Run executes the pipeline for one query. Stages after the first are
// skipped once the candidate set is empty; every stage contributes an
// outcome. Run never fails: a fully degraded query yields an empty set.
func (p *Pipeline) Run(ctx context.Context, q domain.Query) (domain.CandidateSet, domain.Diagnostics) {
	start := time.Now()

	current := domain.CandidateSet{}
	diag := domain.Diagnostics{Stages: make([]domain.StageOutcome, 0, len(p.stages))}

	for i, stage := range p.stages {
		if i > 0 && len(current) == 0 {
			diag.Stages = append(diag.Stages, domain.StageOutcome{
				Stage:  stage.Name(),
				Status: domain.StatusSkipped,
			})
			continue
		}

		var outcome domain.StageOutcome
		current, outcome = stage.Execute(ctx, q, current)
		diag.Stages = append(diag.Stages, outcome)

		p.logger.Debug("stage executed",
			zap.String("stage", outcome.Stage),
			zap.String("status", string(outcome.Status)),
			zap.Int("in", outcome.InputCount),
			zap.Int("out", outcome.OutputCount),
			zap.Duration("latency", outcome.Latency))
	}

	diag.Latency = time.Since(start)
	diag.LatencyMS = float64(diag.Latency.Microseconds()) / 1000
	return current, diag
}
