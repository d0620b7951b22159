// Package metrics exposes benchmark progress as prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the collectors of one run. A nil *Registry is valid and
// records nothing.
type Registry struct {
	registry        *prometheus.Registry
	roundTrips      *prometheus.CounterVec
	roundTripTime   prometheus.Histogram
	workersActive   prometheus.Gauge
	workerFailures  prometheus.Counter
	setupOperations *prometheus.CounterVec
}

// New creates a registry whose series carry the run id as a constant label.
func New(runID string) *Registry {
	labels := prometheus.Labels{"run_id": runID}

	roundTrips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "cashubench_round_trips_total",
		Help:        "Send and receive round trips attempted by workers",
		ConstLabels: labels,
	}, []string{"result"})

	roundTripTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "cashubench_round_trip_seconds",
		Help:        "Latency of a single send and receive round trip",
		ConstLabels: labels,
		Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "cashubench_workers_active",
		Help:        "Workers currently running their send and receive loop",
		ConstLabels: labels,
	})

	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "cashubench_worker_failures_total",
		Help:        "Workers that aborted with an error",
		ConstLabels: labels,
	})

	setup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "cashubench_setup_operations_total",
		Help:        "Setup phase mint operations by step and result",
		ConstLabels: labels,
	}, []string{"step", "result"})

	r := prometheus.NewRegistry()
	r.MustRegister(roundTrips, roundTripTime, active, failures, setup)

	return &Registry{
		registry:        r,
		roundTrips:      roundTrips,
		roundTripTime:   roundTripTime,
		workersActive:   active,
		workerFailures:  failures,
		setupOperations: setup,
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RoundTrip records one finished round trip.
func (m *Registry) RoundTrip(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.roundTrips.WithLabelValues("failed").Inc()
		return
	}
	m.roundTrips.WithLabelValues("ok").Inc()
	m.roundTripTime.Observe(elapsed.Seconds())
}

// WorkerStarted and WorkerStopped track the number of running workers.
func (m *Registry) WorkerStarted() {
	if m == nil {
		return
	}
	m.workersActive.Inc()
}

func (m *Registry) WorkerStopped(err error) {
	if m == nil {
		return
	}
	m.workersActive.Dec()
	if err != nil {
		m.workerFailures.Inc()
	}
}

// SetupStep counts a setup operation such as a quote poll or a distribution send.
func (m *Registry) SetupStep(step string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.setupOperations.WithLabelValues(step, result).Inc()
}
