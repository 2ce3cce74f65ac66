package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
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
	checks map[string]Pinger
}

// New creates a Service that pings the account store as "database".
func New(store Pinger) *Service {
	return &Service{checks: map[string]Pinger{"database": store}}
}

// WithCheck adds a named dependency, e.g. the spend ledger connection.
func (s *Service) WithCheck(name string, p Pinger) *Service {
	if p != nil {
		s.checks[name] = p
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := Healthy
	checks := make(map[string]CheckResult, len(names))
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			checks[name] = CheckError
			status = Degraded
			continue
		}
		checks[name] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
