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
			Namespace: "stackd",
			Subsystem: "service",
			Name:      "launches_total",
			Help:      "Number of successful service launches (initial and restarts).",
		}, []string{"service"},
	)
	serviceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackd",
			Subsystem: "service",
			Name:      "restarts_total",
			Help:      "Number of restart attempts after an unexpected death.",
		}, []string{"service"},
	)
	serviceUnexpectedExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackd",
			Subsystem: "service",
			Name:      "unexpected_exits_total",
			Help:      "Number of deaths detected by the liveness check.",
		}, []string{"service"},
	)
	probeAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackd",
			Subsystem: "probe",
			Name:      "attempts_total",
			Help:      "Readiness probe attempts issued.",
		}, []string{"service"},
	)
	probeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stackd",
			Subsystem: "probe",
			Name:      "failures_total",
			Help:      "Readiness waits that exhausted their attempt budget.",
		}, []string{"service"},
	)
	serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stackd",
			Subsystem: "service",
			Name:      "up",
			Help:      "Whether the service is currently detected alive (1) or not (0).",
		}, []string{"service"},
	)
	supervisorState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stackd",
			Subsystem: "supervisor",
			Name:      "state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceLaunches, serviceRestarts, serviceUnexpectedExits, probeAttempts, probeFailures, serviceUp, supervisorState}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncLaunch(service string) {
	if regOK.Load() {
		serviceLaunches.WithLabelValues(service).Inc()
	}
}

func IncRestart(service string) {
	if regOK.Load() {
		serviceRestarts.WithLabelValues(service).Inc()
	}
}

func IncUnexpectedExit(service string) {
	if regOK.Load() {
		serviceUnexpectedExits.WithLabelValues(service).Inc()
	}
}

func AddProbeAttempts(service string, n int) {
	if regOK.Load() && n > 0 {
		probeAttempts.WithLabelValues(service).Add(float64(n))
	}
}

func IncProbeFailure(service string) {
	if regOK.Load() {
		probeFailures.WithLabelValues(service).Inc()
	}
}

func SetServiceUp(service string, up bool) {
	if regOK.Load() {
		var v float64
		if up {
			v = 1
		}
		serviceUp.WithLabelValues(service).Set(v)
	}
}

func SetSupervisorState(state string, active bool) {
	if regOK.Load() {
		var v float64
		if active {
			v = 1
		}
		supervisorState.WithLabelValues(state).Set(v)
	}
}
