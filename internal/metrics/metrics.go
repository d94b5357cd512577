package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timecontrol"

var (
	// Captures counts capture attempts by kind (entry, exit) and result.
	Captures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "captures_total",
		Help:      "Capture attempts by kind and result.",
	}, []string{"kind", "result"})

	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_runs_total",
		Help:      "Full ledger reconciliations by result.",
	}, []string{"result"})

	// AmbiguousKeys is the number of worker days the last reconcile resolved
	// from more than two stored rows.
	AmbiguousKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ambiguous_keys",
		Help:      "Worker days resolved from more than two rows in the last reconcile.",
	})

	LedgerRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_records",
		Help:      "Reconciled records held in memory.",
	})

	UploadSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evidence_upload_seconds",
		Help:      "Evidence photo upload latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capture_events_total",
		Help:      "Capture events exchanged with other replicas.",
	}, []string{"direction", "result"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"limiter"})
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)
