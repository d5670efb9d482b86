package patentscope

import (
	"context"

	healthuc "github.com/kailas-cloud/patentscope/internal/usecase/health"
)

// HealthStatus reports reachability of the client's collaborators and which pipeline stages it can run.
type HealthStatus struct {
	Status string            // "ok", "degraded" or "error"
	Checks map[string]string // "storage", "llm" (OpenAI only) -> "ok" or "error"

	// Warehouse is false when neither WithBigQuery nor WithExecutor was given; Search then fails.
	Warehouse bool
	// Embeddings is false without WithOpenAI or WithEmbedder; Index and Similar then fail.
	Embeddings bool
}

// Healthy reports whether every probed collaborator answered.
func (h HealthStatus) Healthy() bool { return h.Status == string(healthuc.Healthy) }

// Health pings artifact storage and, when WithOpenAI is used, the model provider.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	h := HealthStatus{
		Status:     string(report.Status),
		Checks:     make(map[string]string, len(report.Checks)),
		Warehouse:  c.hasWarehouse,
		Embeddings: c.hasEmbeddings,
	}
	for name, res := range report.Checks {
		h.Checks[name] = string(res)
	}
	return h
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
