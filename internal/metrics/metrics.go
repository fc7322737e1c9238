package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpipe",
			Subsystem: "pipeline",
			Name:      "launches_total",
			Help:      "Number of successful service launches.",
		}, []string{"service"},
	)
	launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpipe",
			Subsystem: "pipeline",
			Name:      "launch_failures_total",
			Help:      "Number of failed service launches.",
		}, []string{"service", "reason"},
	)
	serviceExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskpipe",
			Subsystem: "pipeline",
			Name:      "exits_total",
			Help:      "Number of observed service exits.",
		}, []string{"service"},
	)
	readinessWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deskpipe",
			Subsystem: "pipeline",
			Name:      "readiness_wait_seconds",
			Help:      "Time spent waiting for a service readiness probe.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"},
	)
	runningServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deskpipe",
			Subsystem: "pipeline",
			Name:      "running_services",
			Help:      "Current number of running pipeline services.",
		},
	)
	priorTerminated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskpipe",
			Subsystem: "reset",
			Name:      "prior_instances_terminated_total",
			Help:      "Prior service instances terminated during reset.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceLaunches, launchFailures, serviceExits, readinessWait, runningServices, priorTerminated}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the DefaultGatherer. The caller is
// responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func IncLaunch(service string) {
	if regOK.Load() {
		serviceLaunches.WithLabelValues(service).Inc()
	}
}

func IncLaunchFailure(service, reason string) {
	if regOK.Load() {
		launchFailures.WithLabelValues(service, reason).Inc()
	}
}

func IncExit(service string) {
	if regOK.Load() {
		serviceExits.WithLabelValues(service).Inc()
	}
}

func ObserveReadinessWait(service string, seconds float64) {
	if regOK.Load() {
		readinessWait.WithLabelValues(service).Observe(seconds)
	}
}

func SetRunningServices(n int) {
	if regOK.Load() {
		runningServices.Set(float64(n))
	}
}

func IncPriorTerminated() {
	if regOK.Load() {
		priorTerminated.Inc()
	}
}
