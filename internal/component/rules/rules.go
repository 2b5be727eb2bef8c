package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/rankdex/internal/component"
	"github.com/kailas-cloud/rankdex/internal/domain"
)

// Rule scores one document against the query. Scores are rule-specific
// ranges; the engine normalizes by weight.
type Rule interface {
	Name() string
	Weight() float64
	Score(doc domain.Document, query string) float64
}

// engine combines rules into one weighted-average score.
type engine struct {
	rules []Rule
}

func (e engine) Score(doc domain.Document, query string) float64 {
	if len(e.rules) == 0 {
		return 0
	}
	var total, totalWeight float64
	for _, r := range e.rules {
		total += r.Score(doc, query) * r.Weight()
		totalWeight += r.Weight()
	}
	if totalWeight == 0 {
		return 0
	}
	return total / totalWeight
}

// buildRules constructs the enabled rules from stage params. Known rule
// names: keyword, recency, authority, length.
func buildRules(params component.Params, now func() time.Time) ([]Rule, error) {
	names := strings.Split(params.String("rules", "keyword,recency,authority"), ",")
	rules := make([]Rule, 0, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		weight, err := params.Float("weight_"+name, 1.0)
		if err != nil {
			return nil, err
		}

		switch name {
		case "keyword":
			rules = append(rules, &keywordRule{
				weight:    weight,
				mandatory: splitList(params.String("mandatory_keywords", "")),
				boost:     splitList(params.String("boost_keywords", "")),
				penalty:   splitList(params.String("penalty_keywords", "")),
			})
		case "recency":
			recentDays, err := params.Int("recent_days", 7)
			if err != nil {
				return nil, err
			}
			olderPenalty, err := params.Float("older_penalty", 0.1)
			if err != nil {
				return nil, err
			}
			rules = append(rules, &recencyRule{
				weight:       weight,
				recentDays:   float64(recentDays),
				olderPenalty: olderPenalty,
				now:          now,
			})
		case "authority":
			rules = append(rules, &authorityRule{weight: weight})
		case "length":
			minLen, err := params.Int("ideal_min_length", 50)
			if err != nil {
				return nil, err
			}
			maxLen, err := params.Int("ideal_max_length", 2000)
			if err != nil {
				return nil, err
			}
			rules = append(rules, &lengthRule{
				weight:          weight,
				idealMin:        minLen,
				idealMax:        maxLen,
				tooShortPenalty: 0.5,
				tooLongPenalty:  0.3,
			})
		default:
			return nil, fmt.Errorf("unknown rule %q: %w", name, domain.ErrConfiguration)
		}
	}
	return rules, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// keywordRule scores on keyword presence: all mandatory keywords must
// appear or the score collapses to -1; boost and penalty keywords shift
// the score per occurrence; query term matches add a small bonus.
// Range [-1, 3].
type keywordRule struct {
	weight    float64
	mandatory []string
	boost     []string
	penalty   []string
}

func (r *keywordRule) Name() string    { return "keyword" }
func (r *keywordRule) Weight() float64 { return r.weight }

func (r *keywordRule) Score(doc domain.Document, query string) float64 {
	counts := make(map[string]int)
	for _, tok := range tokenize(doc.Content) {
		counts[tok]++
	}

	for _, kw := range r.mandatory {
		if counts[kw] == 0 {
			return -1.0
		}
	}

	var score float64

	boostCount := 0
	for _, kw := range r.boost {
		boostCount += counts[kw]
	}
	if boostCount > 0 {
		score += min(float64(boostCount)*0.3, 2.0)
	}

	penaltyCount := 0
	for _, kw := range r.penalty {
		penaltyCount += counts[kw]
	}
	if penaltyCount > 0 {
		score -= min(float64(penaltyCount)*0.2, 1.0)
	}

	for _, tok := range tokenize(query) {
		if len(tok) > 2 && counts[tok] > 0 {
			score += 0.1
		}
	}

	return max(-1.0, min(score, 3.0))
}

// recencyRule scores on document age from the publish_date metadata
// field (unix seconds). Range [-1, 1]; missing or malformed dates score 0.
type recencyRule struct {
	weight       float64
	recentDays   float64
	olderPenalty float64
	now          func() time.Time
}

func (r *recencyRule) Name() string    { return "recency" }
func (r *recencyRule) Weight() float64 { return r.weight }

func (r *recencyRule) Score(doc domain.Document, _ string) float64 {
	raw, ok := doc.Metadata["publish_date"]
	if !ok {
		return 0
	}
	ts, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}

	daysOld := r.now().Sub(time.Unix(int64(ts), 0)).Hours() / 24

	var score float64
	switch {
	case daysOld < r.recentDays:
		score = 1.0 - (daysOld/r.recentDays)*0.5
	case daysOld < 30:
		score = 0.5
	case daysOld < 365:
		score = 0.2
	default:
		score = -r.olderPenalty
	}
	return max(-1.0, min(1.0, score))
}

// authorityRule scores on the source metadata field with verification
// and citation multipliers. Range [0, 2].
type authorityRule struct {
	weight float64
}

var sourceWeights = map[string]float64{
	"wikipedia":      1.0,
	"textbook":       0.9,
	"research_paper": 0.8,
	"news":           0.6,
	"blog":           0.3,
	"forum":          0.2,
	"unknown":        0.1,
}

func (r *authorityRule) Name() string    { return "authority" }
func (r *authorityRule) Weight() float64 { return r.weight }

func (r *authorityRule) Score(doc domain.Document, _ string) float64 {
	source := doc.Metadata["source"]
	w, ok := sourceWeights[source]
	if !ok {
		w = sourceWeights["unknown"]
	}

	if doc.Metadata["is_verified"] == "true" {
		w *= 1.2
	}

	if raw, ok := doc.Metadata["citation_count"]; ok {
		if citations, err := strconv.Atoi(raw); err == nil {
			switch {
			case citations > 100:
				w *= 1.3
			case citations > 10:
				w *= 1.1
			}
		}
	}

	return min(max(w, 0.0), 2.0)
}

// lengthRule favors documents inside the ideal length band, decaying
// toward the band edges and penalizing outliers. Range [0, 1].
type lengthRule struct {
	weight          float64
	idealMin        int
	idealMax        int
	tooShortPenalty float64
	tooLongPenalty  float64
}

func (r *lengthRule) Name() string    { return "length" }
func (r *lengthRule) Weight() float64 { return r.weight }

func (r *lengthRule) Score(doc domain.Document, _ string) float64 {
	length := len(doc.Content)

	switch {
	case length >= r.idealMin && length <= r.idealMax:
		mid := float64(r.idealMin+r.idealMax) / 2
		maxDistance := float64(r.idealMax-r.idealMin) / 2
		if maxDistance <= 0 {
			return 1.0
		}
		distance := math.Abs(float64(length) - mid)
		return 1.0 - (distance/maxDistance)*0.5

	case length < r.idealMin:
		shortRatio := float64(length) / float64(r.idealMin)
		return max(0.0, shortRatio-r.tooShortPenalty)

	case length < r.idealMax*2:
		excessRatio := float64(length-r.idealMax) / float64(r.idealMax)
		return max(0.0, 1.0-excessRatio*r.tooLongPenalty)

	default:
		return 0.0
	}
}
