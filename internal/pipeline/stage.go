// Package pipeline runs the staged retrieval funnel: each stage narrows
// the candidate set behind its own cache, circuit breaker and
// degradation policy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/breaker"
	"github.com/kailas-cloud/rankdex/internal/cache"
	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/domain"
	"github.com/kailas-cloud/rankdex/internal/metrics"
)

// StageOptions configures one pipeline stage.
type StageOptions struct {
	Name      string
	Component component.Component
	Cache     cache.Cache
	TTL       time.Duration
	Breaker   *breaker.Breaker
	// Timeout bounds one backend call. Zero means no per-call bound beyond
	// the query deadline.
	Timeout time.Duration
	// DegradeEmpty yields an empty set on failure instead of passing the
	// input through.
	DegradeEmpty bool
	TopK         int
	Logger       *zap.Logger
}

// Stage wraps a backend with the per-stage policies.
type Stage struct {
	name         string
	comp         component.Component
	cache        cache.Cache
	ttl          time.Duration
	brk          *breaker.Breaker
	timeout      time.Duration
	degradeEmpty bool
	topK         int
	logger       *zap.Logger

	// last breaker state seen by observeBreaker, for transition counting
	lastBrkState atomic.Int32
}

// NewStage creates a stage. Cache and Logger default to no-ops,
// Breaker to default thresholds.
func NewStage(opts StageOptions) *Stage {
	c := opts.Cache
	if c == nil {
		c = cache.NewNoop()
	}
	brk := opts.Breaker
	if brk == nil {
		brk = breaker.New(breaker.DefaultConfig())
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		name:         opts.Name,
		comp:         opts.Component,
		cache:        c,
		ttl:          opts.TTL,
		brk:          brk,
		timeout:      opts.Timeout,
		degradeEmpty: opts.DegradeEmpty,
		topK:         opts.TopK,
		logger:       logger,
	}
}

// Name returns the stage name.
func (s *Stage) Name() string { return s.name }

// TopK returns the configured per-stage maximum.
func (s *Stage) TopK() int { return s.topK }

// Execute runs the stage for one query. It never returns an error:
// failures resolve through the degradation policy and are reported in
// the outcome.
func (s *Stage) Execute(ctx context.Context, q domain.Query, in domain.CandidateSet) (domain.CandidateSet, domain.StageOutcome) {
	start := time.Now()
	topK := q.StageTopK(s.name, s.topK)

	outcome := domain.StageOutcome{Stage: s.name, InputCount: len(in)}

	key := cache.Key(s.name, q.Text, in.Fingerprint(), topK)
	if cached, ok := s.cache.Get(ctx, key); ok {
		metrics.CacheTotal.WithLabelValues(s.name, "hit").Inc()
		return s.finish(cached, domain.StatusCacheHit, start, outcome)
	}
	metrics.CacheTotal.WithLabelValues(s.name, "miss").Inc()

	if !s.brk.Allow() {
		s.logger.Warn("stage call suppressed by open breaker", zap.String("stage", s.name))
		return s.degrade(in, topK, domain.ErrCircuitOpen, start, outcome)
	}

	out, err := s.call(ctx, q, in, topK)
	if err != nil {
		s.brk.RecordFailure()
		s.observeBreaker()
		s.logger.Warn("stage backend failed",
			zap.String("stage", s.name), zap.Error(err))
		return s.degrade(in, topK, err, start, outcome)
	}

	s.brk.RecordSuccess()
	s.observeBreaker()

	out = out.Dedupe().Truncate(topK)
	s.cache.Set(ctx, key, out, s.ttl)
	return s.finish(out, domain.StatusSuccess, start, outcome)
}

// call invokes the backend under the per-call timeout and classifies
// deadline errors.
func (s *Stage) call(ctx context.Context, q domain.Query, in domain.CandidateSet, topK int) (domain.CandidateSet, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.comp.Retrieve(ctx, q, in, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", s.name, domain.ErrTimeout)
		}
		return nil, err
	}
	return out, nil
}

// degrade resolves a failure per the stage policy: empty drops all
// candidates, passthrough forwards the input truncated to topK.
func (s *Stage) degrade(in domain.CandidateSet, topK int, cause error, start time.Time, outcome domain.StageOutcome) (domain.CandidateSet, domain.StageOutcome) {
	outcome.Error = cause.Error()

	out := domain.CandidateSet{}
	if !s.degradeEmpty {
		out = in.Truncate(topK)
	}
	return s.finish(out, domain.StatusDegraded, start, outcome)
}

func (s *Stage) finish(out domain.CandidateSet, status domain.StageStatus, start time.Time, outcome domain.StageOutcome) (domain.CandidateSet, domain.StageOutcome) {
	outcome.Status = status
	outcome.Latency = time.Since(start)
	outcome.LatencyMS = float64(outcome.Latency.Microseconds()) / 1000
	outcome.OutputCount = len(out)

	metrics.StageDuration.WithLabelValues(s.name).Observe(outcome.Latency.Seconds())
	metrics.StageOutcomesTotal.WithLabelValues(s.name, string(status)).Inc()
	metrics.StageCandidates.WithLabelValues(s.name).Observe(float64(len(out)))
	return out, outcome
}

func (s *Stage) observeBreaker() {
	st := s.brk.State()
	var v float64
	switch st {
	case breaker.Closed:
		v = 0
	case breaker.HalfOpen:
		v = 1
	case breaker.Open:
		v = 2
	}
	metrics.BreakerState.WithLabelValues(s.name).Set(v)
	if prev := breaker.State(s.lastBrkState.Swap(int32(st))); prev != st {
		metrics.BreakerTransitionsTotal.WithLabelValues(s.name, st.String()).Inc()
	}
}
