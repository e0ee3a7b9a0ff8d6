// Package metrics counts cache traffic with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docsync"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder is what the caches report to.
type Recorder interface {
	// Observe counts one cache operation and how long its remote call took.
	Observe(cache, op string, elapsed time.Duration, err error)
	// CanvasRepaired counts one drawing content fix; kind is "synthesized" or
	// the name of the replaced field.
	CanvasRepaired(kind string)
	// PreferencePush counts one detached preference push after its retries.
	PreferencePush(err error)
}

type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	canvasRepairs  *prometheus.CounterVec
	preferencePush *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Total number of cache operations that reached the backend, by result",
			},
			[]string{"cache", "op", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_request_duration_seconds",
				Help:      "Duration of the backend call made by a cache operation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"cache", "op"},
		),
		canvasRepairs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "canvas_repairs_total",
				Help:      "Total number of drawing contents synthesized or repaired on load",
			},
			[]string{"kind"},
		),
		preferencePush: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "preference_push_total",
				Help:      "Total number of detached preference pushes, by final result",
			},
			[]string{"result"},
		),
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (m *Metrics) Observe(cache, op string, elapsed time.Duration, err error) {
	m.requests.WithLabelValues(cache, op, result(err)).Inc()
	m.duration.WithLabelValues(cache, op).Observe(elapsed.Seconds())
}

func (m *Metrics) CanvasRepaired(kind string) {
	m.canvasRepairs.WithLabelValues(kind).Inc()
}

func (m *Metrics) PreferencePush(err error) {
	m.preferencePush.WithLabelValues(result(err)).Inc()
}

// Requests returns the counter for tests and dashboards.
func (m *Metrics) Requests() *prometheus.CounterVec { return m.requests }

func (m *Metrics) CanvasRepairs() *prometheus.CounterVec { return m.canvasRepairs }

func (m *Metrics) PreferencePushes() *prometheus.CounterVec { return m.preferencePush }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type nop struct{}

func (nop) Observe(string, string, time.Duration, error) {}
func (nop) CanvasRepaired(string)                        {}
func (nop) PreferencePush(error)                         {}

// Nop discards everything.
func Nop() Recorder { return nop{} }

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop()
	}
	return r
}
