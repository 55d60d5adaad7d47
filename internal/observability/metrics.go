package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for CapabilityRequests.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeBadRequest   = "bad_request"
	OutcomeFailed       = "failed"
)

var (
	// CapabilityRequests counts pipeline runs by capability and outcome.
	CapabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capability_requests_total",
			Help: "Total number of capability pipeline runs by outcome.",
		},
		[]string{"capability", "outcome"},
	)

	// CapabilityDuration records time spent in the external collaborator.
	CapabilityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capability_duration_seconds",
			Help:    "Duration of external capability invocations in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"capability"},
	)

	// PersistenceFailures counts records that could not be stored after a
	// successful capability call.
	PersistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_failures_total",
			Help: "Records dropped because the best-effort write failed.",
		},
		[]string{"capability"},
	)

	// RetentionDeleted counts rows removed by the retention job.
	RetentionDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_deleted_total",
			Help: "Rows deleted by the retention job.",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(CapabilityRequests, CapabilityDuration, PersistenceFailures, RetentionDeleted)
}

// ObserveCapability records one pipeline run.
func ObserveCapability(capability, outcome string, took time.Duration) {
	CapabilityRequests.WithLabelValues(capability, outcome).Inc()
	if took > 0 {
		CapabilityDuration.WithLabelValues(capability).Observe(took.Seconds())
	}
}
