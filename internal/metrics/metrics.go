// Package metrics exposes Prometheus counters for poll cycles, provider
// calls, and chat deliveries. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder owns a private registry and the notifier's instruments.
type Recorder struct {
	registry *prometheus.Registry

	pollCycles    *prometheus.CounterVec
	pollDuration  *prometheus.HistogramVec
	newEvents     *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// NewRecorder registers all instruments plus Go runtime collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{registry: reg}
	r.pollCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_poll_cycles_total",
		Help: "Game-day poll cycles by league and result.",
	}, []string{"league", "result"})
	r.pollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alerts_poll_cycle_duration_seconds",
		Help:    "Wall time of one game-day poll cycle.",
		Buckets: prometheus.DefBuckets,
	}, []string{"league"})
	r.newEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_new_events_total",
		Help: "Timeline events seen for the first time.",
	}, []string{"league"})
	r.providerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_provider_requests_total",
		Help: "Stats provider requests by endpoint and result.",
	}, []string{"endpoint", "result"})
	r.deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_deliveries_total",
		Help: "Chat messages sent by category and result.",
	}, []string{"category", "result"})
	r.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_http_requests_total",
		Help: "API requests by method, route and status.",
	}, []string{"method", "route", "status"})
	reg.MustRegister(
		r.pollCycles, r.pollDuration, r.newEvents,
		r.providerCalls, r.deliveries, r.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordPollCycle tracks one scheduler alarm.
func (r *Recorder) RecordPollCycle(league string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.pollCycles.WithLabelValues(league, result(err)).Inc()
	r.pollDuration.WithLabelValues(league).Observe(duration.Seconds())
}

// RecordNewEvents adds the number of unseen timeline events found in a poll.
func (r *Recorder) RecordNewEvents(league string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.newEvents.WithLabelValues(league).Add(float64(n))
}

// RecordProviderCall tracks one stats provider request.
func (r *Recorder) RecordProviderCall(endpoint string, err error) {
	if r == nil {
		return
	}
	r.providerCalls.WithLabelValues(endpoint, result(err)).Inc()
}

// RecordDelivery tracks one chat message send.
func (r *Recorder) RecordDelivery(category string, err error) {
	if r == nil {
		return
	}
	r.deliveries.WithLabelValues(category, result(err)).Inc()
}

// RecordHTTPRequest tracks one API request.
func (r *Recorder) RecordHTTPRequest(method, route string, status int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
