package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Component build metrics.
var (
	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowkit",
			Name:      "component_builds_total",
			Help:      "Total number of component builds",
		},
		[]string{"component", "status"},
	)

	BuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flowkit",
			Name:      "component_build_duration_seconds",
			Help:      "Component build duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"component"},
	)

	DocumentsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flowkit",
			Name:      "documents_indexed_total",
			Help:      "Documents written to vector stores",
		},
		[]string{"store"},
	)

	MessagesStoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "flowkit",
			Name:      "chat_messages_stored_total",
			Help:      "Chat messages persisted for sessions",
		},
	)
)

// Register adds all flowkit collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		BuildsTotal,
		BuildDuration,
		DocumentsIndexedTotal,
		MessagesStoredTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
