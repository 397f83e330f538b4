package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates the backend is reachable.
	Healthy Status = "ok"
	// Unhealthy indicates the backend probe failed.
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

// Service coordinates health checks. The probe covers only the inference
// backend: the proxy stays usable when the index or embedder is down, so
// those do not gate readiness.
type Service struct {
	backend BackendPinger
}

// New creates a Service.
func New(backend BackendPinger) *Service {
	return &Service{backend: backend}
}

// Check probes the backend.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	status := Healthy
	if err := s.backend.Ping(ctx); err != nil {
		checks["backend"] = CheckError
		status = Unhealthy
	} else {
		checks["backend"] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
