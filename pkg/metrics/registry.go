// Package metrics exposes Falcon's Prometheus instrumentation (C19): a
// single Registry bundling the gauges/counters every other component
// updates, and the rolling health-metric computation the Kill Switch and
// Maintenance Scheduler depend on.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbelfort/falcon-ai-sub003/pkg/domain"
	"github.com/tbelfort/falcon-ai-sub003/pkg/repository"
)

// Registry bundles every Prometheus collector this service registers.
type Registry struct {
	ActiveAgents         *prometheus.GaugeVec
	OutputBusBacklog     prometheus.Gauge
	DispatchesTotal      *prometheus.CounterVec
	InvokerConcurrency   prometheus.Gauge
	PatternStoreSize     *prometheus.GaugeVec
	CircuitBreakerState  *prometheus.GaugeVec
	AttributionPrecision *prometheus.GaugeVec
	InferredRatio        *prometheus.GaugeVec
	ImprovementRate      *prometheus.GaugeVec
}

// NewRegistry constructs and registers every collector against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		ActiveAgents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "active_agents",
			Help:      "Number of agent records currently running, per project.",
		}, []string{"project_id"}),
		OutputBusBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "output_bus_backlog",
			Help:      "Number of buffered output-bus events awaiting broadcast.",
		}),
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falcon",
			Name:      "dispatches_total",
			Help:      "Dispatcher decisions, partitioned by outcome.",
		}, []string{"outcome"}),
		InvokerConcurrency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "invoker_concurrency",
			Help:      "Number of subprocess agent invocations currently in flight.",
		}),
		PatternStoreSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "pattern_store_size",
			Help:      "Number of non-archived patterns, per project.",
		}, []string{"project_id"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open), per breaker name.",
		}, []string{"breaker"}),
		AttributionPrecision: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "attribution_precision_score",
			Help:      "Rolling 30-day attribution precision score, per project.",
		}, []string{"project_id"}),
		InferredRatio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "attribution_inferred_ratio",
			Help:      "Rolling 30-day ratio of inferred-quote-type evidence, per project.",
		}, []string{"project_id"}),
		ImprovementRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "falcon",
			Name:      "attribution_observed_improvement_rate",
			Help:      "Rolling 30-day observed improvement rate, per project.",
		}, []string{"project_id"}),
	}
	reg.MustRegister(
		m.ActiveAgents, m.OutputBusBacklog, m.DispatchesTotal, m.InvokerConcurrency,
		m.PatternStoreSize, m.CircuitBreakerState, m.AttributionPrecision,
		m.InferredRatio, m.ImprovementRate,
	)
	return m
}

// HealthProvider computes domain.HealthMetrics from the same rolling
// counters this registry exposes, implementing maintenance.
// HealthMetricsProvider so the Maintenance Scheduler's auto-resume check
// reads the identical numbers operators see on the dashboard.
type HealthProvider struct {
	reg        *Registry
	repos      *repository.Repositories
	windowDays int
}

// NewHealthProvider returns a HealthProvider reading from reg and repos.
func NewHealthProvider(reg *Registry, repos *repository.Repositories, windowDays int) *HealthProvider {
	return &HealthProvider{reg: reg, repos: repos, windowDays: windowDays}
}

// Compute implements maintenance.HealthMetricsProvider: it recomputes and
// republishes the three rolling gauges for projectID, then returns them as
// a domain.HealthMetrics snapshot.
func (h *HealthProvider) Compute(ctx context.Context, projectID string) (domain.HealthMetrics, error) {
	patterns, err := h.repos.Patterns.ListActive(ctx, projectID)
	if err != nil {
		return domain.HealthMetrics{}, err
	}

	var inferredCount, totalCount int
	var precisionSum float64
	for _, p := range patterns {
		occs, err := h.repos.Occurrences.ListRecentByPattern(ctx, p.ID, h.windowDays)
		if err != nil {
			return domain.HealthMetrics{}, err
		}
		for _, o := range occs {
			totalCount++
			if o.CarrierQuoteType == domain.QuoteInferred {
				inferredCount++
			}
			precisionSum += domain.ConfidenceForQuoteType(o.CarrierQuoteType)
		}
	}

	metrics := domain.HealthMetrics{
		ProjectID:  projectID,
		WindowDays: h.windowDays,
		ComputedAt: nowFunc(),
	}
	if totalCount > 0 {
		metrics.AttributionPrecisionScore = precisionSum / float64(totalCount)
		metrics.InferredRatio = float64(inferredCount) / float64(totalCount)
	}

	h.reg.AttributionPrecision.WithLabelValues(projectID).Set(metrics.AttributionPrecisionScore)
	h.reg.InferredRatio.WithLabelValues(projectID).Set(metrics.InferredRatio)
	h.reg.PatternStoreSize.WithLabelValues(projectID).Set(float64(len(patterns)))

	return metrics, nil
}

var nowFunc = time.Now
