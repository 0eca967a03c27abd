package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Detection counters and histograms, partitioned by network and detector kind.

var (
	PassesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenscout",
		Subsystem: "detection",
		Name:      "passes_started_total",
		Help:      "Detection passes accepted by the single-flight gate",
	}, []string{"network", "kind"})

	PassesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenscout",
		Subsystem: "detection",
		Name:      "passes_skipped_total",
		Help:      "Detection passes dropped (gate held, disabled, test harness)",
	}, []string{"network", "kind", "reason"})

	Candidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenscout",
		Subsystem: "detection",
		Name:      "candidates_total",
		Help:      "Contracts surviving known-set filtering",
	}, []string{"network", "kind"})

	GatesInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tokenscout",
		Subsystem: "detection",
		Name:      "gates_in_flight",
		Help:      "Detection gates currently held",
	}, []string{"network", "kind"})

	FetchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenscout",
		Subsystem: "fetcher",
		Name:      "outcomes_total",
		Help:      "Contract data fetch outcomes",
	}, []string{"network", "outcome"})

	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tokenscout",
		Subsystem: "fetcher",
		Name:      "fetch_duration_seconds",
		Help:      "Time from fetch start to outcome for one contract",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"network"})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenscout",
		Subsystem: "classifier",
		Name:      "classifications_total",
		Help:      "Contract standards determined, by source",
	}, []string{"network", "standard", "source"})

	IngestActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tokenscout",
		Subsystem: "ingest",
		Name:      "actions_total",
		Help:      "Token store mutations decided by the ingestor",
	}, []string{"network", "action"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
