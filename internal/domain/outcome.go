package domain

import "time"

// StageStatus describes how a stage completed.
type StageStatus string

// Stage completion statuses.
const (
	StatusSuccess  StageStatus = "success"
	StatusCacheHit StageStatus = "cache_hit"
	StatusDegraded StageStatus = "degraded"
	StatusSkipped  StageStatus = "skipped" // short-circuited on empty input
)

// StageOutcome records one stage execution for diagnostics.
type StageOutcome struct {
	Stage       string        `json:"stage"`
	Status      StageStatus   `json:"status"`
	Latency     time.Duration `json:"-"`
	LatencyMS   float64       `json:"latency_ms"`
	InputCount  int           `json:"input_count"`
	OutputCount int           `json:"output_count"`
	Error       string        `json:"error,omitempty"` // identity of the failure behind a degradation
}

// Diagnostics aggregates per-stage outcomes for one query.
type Diagnostics struct {
	Latency   time.Duration  `json:"-"`
	LatencyMS float64        `json:"latency_ms"`
	Stages    []StageOutcome `json:"stages"`
}

// Degraded reports whether any executed stage fell back to its
// degradation policy.
func (d Diagnostics) Degraded() bool {
	for _, s := range d.Stages {
		if s.Status == StatusDegraded {
			return true
		}
	}
	return false
}

// Result is the final retrieval output: ranked documents plus diagnostics.
// A fully degraded query yields empty Documents and populated Diagnostics,
// never an error.
type Result struct {
	Documents   CandidateSet `json:"documents"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}
