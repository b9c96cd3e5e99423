package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hooklog_events_received_total",
		Help: "Total number of webhook events appended to the log.",
	})

	EventsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hooklog_events_evicted_total",
		Help: "Total number of events dropped from the head of the full window.",
	})

	EventsCleared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hooklog_events_cleared_total",
		Help: "Total number of events removed by clear operations.",
	})

	EventsRetained = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hooklog_events_retained",
		Help: "Number of events currently held in the window.",
	})

	PersistWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hooklog_persist_writes_total",
		Help: "Snapshot writes to stable storage, labelled by status.",
	}, []string{"status"})

	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hooklog_persist_duration_ms",
		Help:    "Snapshot write latency in milliseconds.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	SnapshotsCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hooklog_snapshots_coalesced_total",
		Help: "Snapshots skipped because a newer one superseded them before writing.",
	})

	UnauthorizedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hooklog_unauthorized_requests_total",
		Help: "Requests rejected for a missing or wrong Authorization header, labelled by route.",
	}, []string{"route"})

	ProjectionFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hooklog_projection_fallbacks_total",
		Help: "Events rendered with the all-placeholder record because extraction failed.",
	})
)
