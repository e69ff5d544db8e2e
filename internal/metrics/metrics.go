// Package metrics exposes Prometheus counters for lifecycle operations.
// Counters are registered on a private registry so importing this package
// never collides with a host application's default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set holds the lifecycle operation counters.
type Set struct {
	Registry *prometheus.Registry

	SetupTotal         *prometheus.CounterVec
	TeardownTotal      *prometheus.CounterVec
	RollbackTotal      prometheus.Counter
	ValidationFailures prometheus.Counter
}

// NewSet creates and registers the counter set.
func NewSet() *Set {
	reg := prometheus.NewRegistry()

	s := &Set{
		Registry: reg,
		SetupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "limawan",
			Name:      "setup_total",
			Help:      "Setup invocations by outcome.",
		}, []string{"outcome"}),
		TeardownTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "limawan",
			Name:      "teardown_total",
			Help:      "Teardown invocations by outcome.",
		}, []string{"outcome"}),
		RollbackTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "limawan",
			Name:      "rollback_total",
			Help:      "Automatic rollbacks performed after failed mutations.",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "limawan",
			Name:      "validation_failures_total",
			Help:      "Dry-run validation rejections.",
		}),
	}

	reg.MustRegister(s.SetupTotal, s.TeardownTotal, s.RollbackTotal, s.ValidationFailures)
	return s
}
