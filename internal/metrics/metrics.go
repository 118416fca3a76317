// Package metrics holds the Prometheus collectors of the site.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StreamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "site_stream_subscribers",
		Help: "Current number of connected chat stream subscribers",
	})

	StreamMessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "site_stream_messages_delivered_total",
		Help: "Chat messages written to stream subscribers",
	})

	StreamPollErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "site_stream_poll_errors_total",
		Help: "Failed message store polls from stream subscribers",
	})

	// AuthAttempts is labeled by op (login, register, inline) and outcome.
	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_auth_attempts_total",
		Help: "Authentication attempts by operation and outcome",
	}, []string{"op", "outcome"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "site_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"route", "method"})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"rule"})

	TasksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "site_worker_tasks_total",
		Help: "Background tasks handled by the worker",
	}, []string{"type", "outcome"})
)

func init() {
	prometheus.MustRegister(
		StreamSubscribers,
		StreamMessagesDelivered,
		StreamPollErrors,
		AuthAttempts,
		HTTPRequests,
		HTTPDuration,
		RateLimited,
		TasksProcessed,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
