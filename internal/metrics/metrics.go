// Package metrics holds the Prometheus collectors for reservations, upload
// finalization and background jobs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestdrop_reservations_total",
		Help: "Slot reservations by kind (participant, upload) and outcome.",
	}, []string{"kind", "outcome"})

	Finalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestdrop_finalize_total",
		Help: "Upload finalize attempts by outcome.",
	}, []string{"outcome"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestdrop_job_runs_total",
		Help: "Background job runs.",
	}, []string{"job"})

	JobItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guestdrop_job_items_total",
		Help: "Items handled by background jobs by result.",
	}, []string{"job", "result"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guestdrop_job_duration_seconds",
		Help:    "Background job run duration.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"job"})
)

// Outcome labels shared by reservation and finalize counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
