package patentscope

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/patentscope/internal/domain"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	tokens     *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patentscope",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "Total SDK operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "patentscope",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "patentscope",
			Subsystem: "sdk",
			Name:      "tokens_total",
			Help:      "Model tokens consumed by SDK operations.",
		}, []string{"operation", "kind"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.tokens); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("patentscope: metric already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("patentscope: register metric: %w", err)
	}
	return nil
}

// observer logs and counts SDK operations together with the tokens they consumed.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	var m *sdkMetrics
	if reg != nil {
		var err error
		m, err = newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
	}
	return &observer{logger: logger, metrics: m}, nil
}

// observe records one operation. usage may be nil for operations that never call a model.
func (o *observer) observe(op string, start time.Time, usage *domain.Usage, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	var embedTokens, completionTokens int
	if usage != nil {
		embedTokens, completionTokens = usage.EmbeddingTokens, usage.CompletionTokens
	}

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
		if embedTokens > 0 {
			o.metrics.tokens.WithLabelValues(op, "embedding").Add(float64(embedTokens))
		}
		if completionTokens > 0 {
			o.metrics.tokens.WithLabelValues(op, "completion").Add(float64(completionTokens))
		}
	}

	if o.logger == nil {
		return
	}
	attrs := []any{"op", op, "duration", dur}
	if embedTokens > 0 {
		attrs = append(attrs, "embedding_tokens", embedTokens)
	}
	if completionTokens > 0 {
		attrs = append(attrs, "completion_tokens", completionTokens)
	}
	if err != nil {
		if c := domain.CollaboratorOf(err); c != "" {
			attrs = append(attrs, "collaborator", c)
		}
		o.logger.Warn("operation failed", append(attrs, "error", err)...)
		return
	}
	o.logger.Debug("operation completed", attrs...)
}
