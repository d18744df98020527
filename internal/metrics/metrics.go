package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gifconv_jobs_total",
			Help: "Total number of finished jobs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gifconv_job_duration_seconds",
			Help:    "Job run time in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gifconv_jobs_in_flight",
			Help: "Number of jobs currently running",
		},
	)

	ConversionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gifconv_conversion_state",
			Help: "Current conversion state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)
)

// Provisioning metrics
var (
	TranscoderReady = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gifconv_transcoder_ready",
			Help: "Whether the transcoder executable is available, labelled by how it was obtained",
		},
		[]string{"source"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gifconv_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gifconv_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gifconv_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

var conversionStates = []string{"idle", "busy", "done"}

// SetTranscoderReady records the provisioning outcome. An empty source marks
// the transcoder unavailable.
func SetTranscoderReady(source string) {
	TranscoderReady.Reset()
	if source == "" {
		TranscoderReady.WithLabelValues("none").Set(0)
		return
	}
	TranscoderReady.WithLabelValues(source).Set(1)
}
