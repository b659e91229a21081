package health

import "context"

// Pinger checks database availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks a model provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexReporter reports whether a vector index is installed.
type IndexReporter interface {
	Ready() bool
}
