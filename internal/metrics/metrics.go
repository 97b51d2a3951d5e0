// Package metrics defines the Prometheus collectors for the host runtime
// and the HTTP endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Call status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics groups the runtime collectors. Each Metrics registers on its own
// Registerer so several runtimes can coexist in one test binary.
type Metrics struct {
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	Engines      prometheus.Gauge
	Requests     *prometheus.CounterVec
	RequestTime  *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emdb_calls_total",
				Help: "Total number of boundary calls by operation, method and outcome.",
			},
			[]string{"op", "method", "status"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emdb_call_duration_seconds",
				Help:    "Boundary call duration from pickup by a worker to delivery, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		Engines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "emdb_engines",
				Help: "Number of connected engines.",
			},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emdb_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emdb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Calls, m.CallDuration, m.Engines, m.Requests, m.RequestTime)
	}
	return m
}

// RegisterQueue exposes the scheduler backlog through pending.
func (m *Metrics) RegisterQueue(reg prometheus.Registerer, pending func() int) {
	if reg == nil {
		return
	}
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "emdb_scheduler_pending_tasks",
			Help: "Tasks queued and not yet picked up by a worker.",
		},
		func() float64 { return float64(pending()) },
	))
}

// ObserveCall records one finished call.
func (m *Metrics) ObserveCall(op, method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.Calls.WithLabelValues(op, method, status).Inc()
	m.CallDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}
