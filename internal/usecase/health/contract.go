package health

import "context"

// StoragePinger checks artifact storage availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks language-model provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
