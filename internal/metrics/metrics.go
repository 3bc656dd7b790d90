// Package metrics exposes pipeline counters on the operations listener.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the pipeline's prometheus instruments. A private
// registry keeps test instances independent.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authOutcomes    *prometheus.CounterVec
	csrfRejections  prometheus.Counter
	inputRejections *prometheus.CounterVec
	rateLimited     prometheus.Counter
	activeRequests  prometheus.Gauge
}

// NewCollector creates and registers all instruments.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_requests_total",
			Help: "Requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courier_request_duration_seconds",
			Help:    "Request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_auth_outcomes_total",
			Help: "Authentication outcomes by strategy and result.",
		}, []string{"strategy", "outcome"}),
		csrfRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_csrf_rejections_total",
			Help: "Requests rejected by CSRF verification.",
		}),
		inputRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_validation_rejections_total",
			Help: "Requests rejected by the input validator, by status.",
		}, []string{"status"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courier_active_requests",
			Help: "Requests currently in flight.",
		}),
	}

	reg.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.authOutcomes,
		c.csrfRejections,
		c.inputRejections,
		c.rateLimited,
		c.activeRequests,
	)
	return c
}

// RecordRequest records a completed request.
func (c *Collector) RecordRequest(route, method string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordAuth records an authentication outcome.
func (c *Collector) RecordAuth(strategy, outcome string) {
	c.authOutcomes.WithLabelValues(strategy, outcome).Inc()
}

// RecordCSRFRejection counts a CSRF rejection.
func (c *Collector) RecordCSRFRejection() {
	c.csrfRejections.Inc()
}

// RecordValidationRejection counts an input validator rejection.
func (c *Collector) RecordValidationRejection(status int) {
	c.inputRejections.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordRateLimited counts a throttled request.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// RequestStarted marks a request in flight and returns its finisher.
func (c *Collector) RequestStarted() func() {
	c.activeRequests.Inc()
	return c.activeRequests.Dec
}

// Handler serves the metrics endpoint for the operations listener.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
