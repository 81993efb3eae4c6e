package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records the outcome of every engine operation served over
// RPC, segmented by operation and rejection reason so operators can spot
// misconfigured rounds and adversarial traffic.
type EngineMetrics struct {
	Operations *prometheus.CounterVec
	Rejections *prometheus.CounterVec
	Settled    *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised engine metrics registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mintgate",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mintgate",
				Subsystem: "engine",
				Name:      "rejections_total",
				Help:      "Rejected operations segmented by method and reason.",
			}, []string{"method", "reason"}),
			Settled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "mintgate",
				Subsystem: "engine",
				Name:      "settlements_total",
				Help:      "Completed settlements segmented by payment asset class.",
			}, []string{"asset"}),
			Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "mintgate",
				Subsystem: "rpc",
				Name:      "request_seconds",
				Help:      "RPC handler latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			engineRegistry.Operations,
			engineRegistry.Rejections,
			engineRegistry.Settled,
			engineRegistry.Latency,
		)
	})
	return engineRegistry
}

// RecordOperation tallies one completed engine call.
func (m *EngineMetrics) RecordOperation(method string, err error, reason string) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if reason != "" {
			m.Rejections.WithLabelValues(method, reason).Inc()
		}
	}
	m.Operations.WithLabelValues(method, outcome).Inc()
}
