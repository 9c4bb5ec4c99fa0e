package sink

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	stabilityAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coherence",
			Subsystem: "stability",
			Name:      "alerts_total",
			Help:      "Stability alerts by risk level.",
		},
		[]string{"construct", "risk"},
	)
	stabilityMeasure = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "coherence",
			Subsystem: "stability",
			Name:      "instability_measure",
			Help:      "Combined instability measure at the last alert.",
		},
		[]string{"construct"},
	)
	syncIssues = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coherence",
			Subsystem: "synchro",
			Name:      "issues_total",
			Help:      "Synchronization issues by kind.",
		},
		[]string{"kind"},
	)
	driftMagnitude = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coherence",
			Subsystem: "synchro",
			Name:      "drift_magnitude",
			Help:      "Observed drift magnitude between construct pairs.",
			Buckets:   prometheus.LinearBuckets(0.05, 0.05, 6),
		},
		[]string{"kind"},
	)
)

// RegisterMetrics registers the sink's collectors with the default
// registry. Safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(stabilityAlerts, stabilityMeasure, syncIssues, driftMagnitude)
	})
}

// Prometheus records events as metrics on the default registry.
type Prometheus struct{}

// NewPrometheus returns a metrics sink, registering its collectors on
// first use.
func NewPrometheus() *Prometheus {
	RegisterMetrics()
	return &Prometheus{}
}

// Publish implements Sink.
func (*Prometheus) Publish(_ context.Context, ev Event) {
	RegisterMetrics()
	switch e := ev.(type) {
	case StabilityAlert:
		stabilityAlerts.WithLabelValues(e.ConstructID, string(e.Risk)).Inc()
		stabilityMeasure.WithLabelValues(e.ConstructID).Set(e.Overall)
	case SyncIssue:
		syncIssues.WithLabelValues(e.Kind).Inc()
		if e.Magnitude > 0 {
			driftMagnitude.WithLabelValues(e.Kind).Observe(e.Magnitude)
		}
	}
}
