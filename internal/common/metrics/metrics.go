// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brforms_jobs_enqueued_total",
			Help: "Total number of submission jobs enqueued",
		},
	)

	JobsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brforms_jobs_completed_total",
			Help: "Total number of deferred jobs run to completion",
		},
	)

	JobsAborted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brforms_jobs_aborted_total",
			Help: "Total number of deferred jobs aborted before completion",
		},
		[]string{"reason"},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "brforms_job_duration_seconds",
			Help: "Duration of deferred job processing in seconds",
		},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brforms_api_requests_total",
			Help: "Outbound Bloomreach API requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "brforms_api_request_duration_seconds",
			Help: "Duration of outbound Bloomreach API requests in seconds",
		},
		[]string{"endpoint"},
	)

	ConsentCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brforms_consent_cache_lookups_total",
			Help: "Consent cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	SubmissionsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brforms_submissions_skipped_total",
			Help: "Inbound submissions skipped by precondition",
		},
		[]string{"reason"},
	)
)
