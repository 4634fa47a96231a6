// Package metrics exposes Prometheus collectors for the runtime scope model
// and the reference registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the runtime-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	applicationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "meshcall",
			Subsystem: "runtime",
			Name:      "applications_active",
			Help:      "Current number of live application models.",
		},
	)

	modulesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "meshcall",
			Subsystem: "runtime",
			Name:      "modules_active",
			Help:      "Current number of live module models.",
		},
	)

	scopeDestroys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshcall",
			Subsystem: "runtime",
			Name:      "scope_destroys_total",
			Help:      "Total number of scope model destroy cascades.",
		},
		[]string{"scope"},
	)

	teardownFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshcall",
			Subsystem: "runtime",
			Name:      "teardown_failures_total",
			Help:      "Total number of isolated failures during destroy cascades.",
		},
		[]string{"scope"},
	)

	referenceRealizations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "meshcall",
			Subsystem: "references",
			Name:      "realizations_total",
			Help:      "Total number of reference objects constructed.",
		},
	)

	referenceRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "meshcall",
			Subsystem: "references",
			Name:      "registrations_total",
			Help:      "Total number of reference declarations registered.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		applicationsActive,
		modulesActive,
		scopeDestroys,
		teardownFailures,
		referenceRealizations,
		referenceRegistrations,
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ApplicationAttached records a new live application model.
func ApplicationAttached() { applicationsActive.Inc() }

// ApplicationDetached records an application model leaving its framework.
func ApplicationDetached() { applicationsActive.Dec() }

// ModuleAttached records a new live module model.
func ModuleAttached() { modulesActive.Inc() }

// ModuleDetached records a module model leaving its application.
func ModuleDetached() { modulesActive.Dec() }

// ScopeDestroyed records a completed destroy cascade for a scope level.
func ScopeDestroyed(scope string) { scopeDestroys.WithLabelValues(scope).Inc() }

// TeardownFailure records an isolated child failure during a destroy cascade.
func TeardownFailure(scope string) { teardownFailures.WithLabelValues(scope).Inc() }

// ReferenceRealized records construction of a built reference.
func ReferenceRealized() { referenceRealizations.Inc() }

// ReferenceRegistered records a registration outcome: "new", "idempotent",
// "aliased", or "rejected".
func ReferenceRegistered(outcome string) {
	referenceRegistrations.WithLabelValues(outcome).Inc()
}
