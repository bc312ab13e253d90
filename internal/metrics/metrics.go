// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// Sends counts channel attempts by outcome ("success" or "failure")
	Sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_sends_total",
			Help: "Number of channel send attempts",
		},
		[]string{"channel", "provider", "outcome"},
	)

	SendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herald_send_duration_seconds",
			Help:    "Provider call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel", "provider"},
	)

	// Recipients counts processed recipients by final status
	Recipients = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_recipients_processed_total",
			Help: "Number of recipients processed by dispatch",
		},
		[]string{"status"},
	)

	// DispatchRuns counts dispatch invocations by result
	DispatchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herald_dispatch_runs_total",
			Help: "Number of dispatch invocations",
		},
		[]string{"result"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(HTTPRequests, RequestDuration, Sends, SendDuration, Recipients, DispatchRuns)
	})
}
