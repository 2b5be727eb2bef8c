// Package rules implements the BM25 plus rule-engine pre-rank backend.
package rules

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/domain"
)

// PreRank rescores recall candidates with a blend of BM25 relevance and
// rule scores, then keeps the best topK.
type PreRank struct {
	name       string
	ranker     bm25
	engine     engine
	bm25Weight float64
	ruleWeight float64
	logger     *zap.Logger
}

// Factory builds a PreRank from stage params:
//
//	bm25_k1, bm25_b          BM25 parameters (default 1.5 / 0.75)
//	bm25_weight, rule_weight blend weights (default 0.7 / 0.3)
//	rules                    comma-separated rule names (default keyword,recency,authority)
//	weight_<rule>            per-rule weight (default 1.0)
//
// plus the per-rule params documented on each rule type.
func Factory(name string, params component.Params, deps component.Deps) (component.Component, error) {
	k1, err := params.Float("bm25_k1", defaultK1)
	if err != nil {
		return nil, err
	}
	b, err := params.Float("bm25_b", defaultB)
	if err != nil {
		return nil, err
	}
	bm25Weight, err := params.Float("bm25_weight", 0.7)
	if err != nil {
		return nil, err
	}
	ruleWeight, err := params.Float("rule_weight", 0.3)
	if err != nil {
		return nil, err
	}

	ruleSet, err := buildRules(params, time.Now)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PreRank{
		name:       name,
		ranker:     bm25{k1: k1, b: b},
		engine:     engine{rules: ruleSet},
		bm25Weight: bm25Weight,
		ruleWeight: ruleWeight,
		logger:     logger,
	}, nil
}

// Name returns the stage name this backend serves.
func (p *PreRank) Name() string { return p.name }

// Retrieve rescores the incoming candidates and returns the topK best.
// Ties keep recall order.
func (p *PreRank) Retrieve(_ context.Context, q domain.Query, in domain.CandidateSet, topK int) (domain.CandidateSet, error) {
	if len(in) == 0 {
		return in, nil
	}

	bm25Scores := p.ranker.Score(q.Text, in)

	out := in.Clone()
	for i := range out {
		ruleScore := p.engine.Score(out[i], q.Text)
		out[i].Score = p.bm25Weight*bm25Scores[i] + p.ruleWeight*ruleScore
		out[i].Stage = p.name
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out.Truncate(topK), nil
}
