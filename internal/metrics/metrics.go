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

	alertsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsgate",
			Subsystem: "alert",
			Name:      "dispatched_total",
			Help:      "Number of alerts handed to the sink.",
		}, []string{"kind"},
	)
	alertsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsgate",
			Subsystem: "alert",
			Name:      "suppressed_total",
			Help:      "Number of alerts skipped by cooldown or disabled category.",
		}, []string{"kind", "reason"},
	)
	monitorTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opsgate",
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Number of resource monitor ticks executed.",
		},
	)
	actionsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsgate",
			Subsystem: "router",
			Name:      "actions_total",
			Help:      "Number of routed operator actions per category.",
		}, []string{"category"},
	)
	confirmations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsgate",
			Subsystem: "confirm",
			Name:      "tickets_total",
			Help:      "Confirmation ticket outcomes (created, confirmed, cancelled, expired).",
		}, []string{"outcome"},
	)
	activeJobs = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "opsgate",
			Subsystem: "registry",
			Name:      "active_jobs",
			Help:      "Current number of queued or processing jobs.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{alertsDispatched, alertsSuppressed, monitorTicks, actionsRouted, confirmations, activeJobs}
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

func IncAlertDispatched(kind string) {
	if regOK.Load() {
		alertsDispatched.WithLabelValues(kind).Inc()
	}
}

func IncAlertSuppressed(kind, reason string) {
	if regOK.Load() {
		alertsSuppressed.WithLabelValues(kind, reason).Inc()
	}
}

func IncMonitorTick() {
	if regOK.Load() {
		monitorTicks.Inc()
	}
}

func IncActionRouted(category string) {
	if regOK.Load() {
		actionsRouted.WithLabelValues(category).Inc()
	}
}

func IncConfirmation(outcome string) {
	if regOK.Load() {
		confirmations.WithLabelValues(outcome).Inc()
	}
}

func SetActiveJobs(n int) {
	if regOK.Load() {
		activeJobs.Set(float64(n))
	}
}
