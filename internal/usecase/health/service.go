// Package health aggregates component health for the readiness endpoint.
package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status represents the aggregated health status.
type Status string

// Aggregated statuses.
const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the embedding provider is down; cached and
	// rule-based stages still serve.
	Degraded Status = "degraded"
	// Unhealthy indicates the database is unreachable.
	Unhealthy Status = "error"
)

// Report aggregates health check results per component.
type Report struct {
	Status Status
	Checks map[string]string
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, embedding EmbeddingChecker) *Service {
	return &Service{db: db, embedding: embedding}
}

// Check runs health checks. The database is load-bearing: its failure
// makes the whole service unhealthy, while an embedding failure only
// degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]string)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = "error"
		status = Unhealthy
	} else {
		checks["database"] = "ok"
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = "error"
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["embedding"] = "ok"
		}
	}

	return Report{Status: status, Checks: checks}
}
