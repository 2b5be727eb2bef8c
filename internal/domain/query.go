package domain

// Query is the immutable retrieval input. Per-stage top-K overrides are
// keyed by stage name and bounded by the configured per-stage maxima.
type Query struct {
	Text string
	TopK map[string]int
}

// StageTopK returns the effective top-K for a stage: the override when
// present and smaller than the configured maximum, the maximum otherwise.
func (q Query) StageTopK(stage string, configured int) int {
	if k, ok := q.TopK[stage]; ok && k > 0 && k < configured {
		return k
	}
	return configured
}
