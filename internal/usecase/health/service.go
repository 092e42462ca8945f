package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the cache is down; queries still read the store.
	Degraded Status = "degraded"
	// Unhealthy indicates the document store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db    DBPinger
	cache CachePinger
}

// New creates a Service. cache can be nil.
func New(db DBPinger, cache CachePinger) *Service {
	return &Service{db: db, cache: cache}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["cache"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
