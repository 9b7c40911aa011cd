// Package metrics exposes Prometheus metrics for pgwire-check's periodic
// target checks: dial outcomes, handshake latency, and per-target health.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for pgwire-check.
type Collector struct {
	Registry *prometheus.Registry

	targetHealth  *prometheus.GaugeVec
	checkDuration *prometheus.HistogramVec
	checkErrors   *prometheus.CounterVec
	checksTotal   *prometheus.CounterVec

	dialDuration     *prometheus.HistogramVec
	sslDuration      *prometheus.HistogramVec
	startupDuration  *prometheus.HistogramVec
	consecutiveFails *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics using a custom
// registry. Safe to call multiple times (e.g. in tests) — each call
// creates an independent registry that doesn't conflict with others.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		targetHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pgwire_check_target_health",
				Help: "Health status of a target (1=healthy, 0=unhealthy)",
			},
			[]string{"target"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pgwire_check_duration_seconds",
				Help:    "Duration of a full check (dial + handshake) per target",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"target", "status"},
		),
		checkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgwire_check_errors_total",
				Help: "Check errors by target and failure kind",
			},
			[]string{"target", "kind"},
		),
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pgwire_checks_total",
				Help: "Total checks performed per target and outcome",
			},
			[]string{"target", "status"},
		),
		dialDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pgwire_check_dial_duration_seconds",
				Help:    "Time to establish the TCP connection",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"target"},
		),
		sslDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pgwire_check_ssl_duration_seconds",
				Help:    "Time to complete the SSLRequest pre-exchange",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
			[]string{"target"},
		),
		startupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pgwire_check_startup_duration_seconds",
				Help:    "Time to complete the startup/authentication dialogue",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"target"},
		),
		consecutiveFails: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pgwire_check_consecutive_failures",
				Help: "Consecutive failed checks for a target",
			},
			[]string{"target"},
		),
	}

	reg.MustRegister(
		c.targetHealth,
		c.checkDuration,
		c.checkErrors,
		c.checksTotal,
		c.dialDuration,
		c.sslDuration,
		c.startupDuration,
		c.consecutiveFails,
	)

	return c
}

// SetTargetHealth sets the health gauge for target.
func (c *Collector) SetTargetHealth(target string, healthy bool) {
	val := 0.0
	if healthy {
		val = 1.0
	}
	c.targetHealth.WithLabelValues(target).Set(val)
}

// CheckCompleted records a full check's duration and outcome.
func (c *Collector) CheckCompleted(target string, d time.Duration, healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	c.checkDuration.WithLabelValues(target, status).Observe(d.Seconds())
	c.checksTotal.WithLabelValues(target, status).Inc()
}

// CheckError records a check failure by kind (e.g. a pgerr.Kind string).
func (c *Collector) CheckError(target, kind string) {
	c.checkErrors.WithLabelValues(target, kind).Inc()
}

// DialDuration observes the TCP connect time for target.
func (c *Collector) DialDuration(target string, d time.Duration) {
	c.dialDuration.WithLabelValues(target).Observe(d.Seconds())
}

// SSLDuration observes the SSLRequest exchange time for target.
func (c *Collector) SSLDuration(target string, d time.Duration) {
	c.sslDuration.WithLabelValues(target).Observe(d.Seconds())
}

// StartupDuration observes the startup/auth dialogue time for target.
func (c *Collector) StartupDuration(target string, d time.Duration) {
	c.startupDuration.WithLabelValues(target).Observe(d.Seconds())
}

// SetConsecutiveFailures sets the consecutive-failure gauge for target.
func (c *Collector) SetConsecutiveFailures(target string, n int) {
	c.consecutiveFails.WithLabelValues(target).Set(float64(n))
}

// RemoveTarget removes all metrics for target, e.g. after it is deleted
// from the configuration on a hot reload.
func (c *Collector) RemoveTarget(target string) {
	c.targetHealth.DeleteLabelValues(target)
	c.checkDuration.DeletePartialMatch(prometheus.Labels{"target": target})
	c.checkErrors.DeletePartialMatch(prometheus.Labels{"target": target})
	c.checksTotal.DeletePartialMatch(prometheus.Labels{"target": target})
	c.dialDuration.DeleteLabelValues(target)
	c.sslDuration.DeleteLabelValues(target)
	c.startupDuration.DeleteLabelValues(target)
	c.consecutiveFails.DeleteLabelValues(target)
}
