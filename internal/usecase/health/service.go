package health

import (
	"context"
	"errors"
	"time"
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
	// CheckNotReady indicates the index has not been built or loaded yet.
	CheckNotReady CheckResult = "not_ready"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Deps are the components to check. Nil fields are skipped.
type Deps struct {
	LLM       ProviderChecker
	Embedding ProviderChecker
	Database  Pinger
	Index     IndexReporter
}

const checkTimeout = 3 * time.Second

var errIndexNotReady = errors.New("index not installed")

// Service coordinates health checks.
type Service struct {
	deps Deps
}

// New creates a Service.
func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := make(map[string]CheckResult)
	if s.deps.LLM != nil {
		checks["llm"] = result(s.deps.LLM.HealthCheck(ctx))
	}
	if s.deps.Embedding != nil {
		checks["embedding"] = result(s.deps.Embedding.HealthCheck(ctx))
	}
	if s.deps.Database != nil {
		checks["database"] = result(s.deps.Database.Ping(ctx))
	}
	if s.deps.Index != nil {
		var err error
		if !s.deps.Index.Ready() {
			err = errIndexNotReady
		}
		checks["index"] = result(err)
	}

	status := Healthy
	for _, v := range checks {
		if v != CheckOK {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	switch {
	case err == nil:
		return CheckOK
	case errors.Is(err, errIndexNotReady):
		return CheckNotReady
	default:
		return CheckError
	}
}
