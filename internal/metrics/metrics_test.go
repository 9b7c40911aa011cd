package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// newTestCollector creates a Collector registered with a fresh registry
// so tests don't conflict with each other or with the default registry.
func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	c := New()
	return c, c.Registry
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	g.Write(m)
	return m.GetGauge().GetValue()
}

func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	c.Write(m)
	return m.GetCounter().GetValue()
}

func TestSetTargetHealth(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetTargetHealth("primary", true)
	if v := getGaugeValue(c.targetHealth.WithLabelValues("primary")); v != 1 {
		t.Errorf("expected health=1, got %v", v)
	}

	c.SetTargetHealth("primary", false)
	if v := getGaugeValue(c.targetHealth.WithLabelValues("primary")); v != 0 {
		t.Errorf("expected health=0, got %v", v)
	}
}

func TestCheckCompleted(t *testing.T) {
	c, reg := newTestCollector(t)

	c.CheckCompleted("primary", 10*time.Millisecond, true)
	c.CheckCompleted("primary", 20*time.Millisecond, true)

	if v := getCounterValue(c.checksTotal.WithLabelValues("primary", "healthy")); v != 2 {
		t.Errorf("expected checksTotal=2, got %v", v)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "pgwire_check_duration_seconds" {
			found = true
			for _, m := range f.GetMetric() {
				if m.GetHistogram().GetSampleCount() != 2 {
					t.Errorf("expected 2 samples, got %d", m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	if !found {
		t.Error("check duration metric not found")
	}
}

func TestCheckError(t *testing.T) {
	c, _ := newTestCollector(t)

	c.CheckError("primary", "io")
	c.CheckError("primary", "io")
	c.CheckError("primary", "authentication failed")

	if v := getCounterValue(c.checkErrors.WithLabelValues("primary", "io")); v != 2 {
		t.Errorf("expected io errors=2, got %v", v)
	}
	if v := getCounterValue(c.checkErrors.WithLabelValues("primary", "authentication failed")); v != 1 {
		t.Errorf("expected auth errors=1, got %v", v)
	}
}

func TestDialSSLStartupDurations(t *testing.T) {
	c, reg := newTestCollector(t)

	c.DialDuration("primary", 1*time.Millisecond)
	c.SSLDuration("primary", 2*time.Millisecond)
	c.StartupDuration("primary", 3*time.Millisecond)

	families, _ := reg.Gather()
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"pgwire_check_dial_duration_seconds",
		"pgwire_check_ssl_duration_seconds",
		"pgwire_check_startup_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("metric family %s not found", want)
		}
	}
}

func TestSetConsecutiveFailures(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetConsecutiveFailures("primary", 3)
	if v := getGaugeValue(c.consecutiveFails.WithLabelValues("primary")); v != 3 {
		t.Errorf("expected consecutive failures=3, got %v", v)
	}

	c.SetConsecutiveFailures("primary", 0)
	if v := getGaugeValue(c.consecutiveFails.WithLabelValues("primary")); v != 0 {
		t.Errorf("expected consecutive failures reset to 0, got %v", v)
	}
}

func TestRemoveTarget(t *testing.T) {
	c, reg := newTestCollector(t)

	c.SetTargetHealth("primary", true)
	c.CheckCompleted("primary", 5*time.Millisecond, true)
	c.CheckError("primary", "io")

	c.RemoveTarget("primary")

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "target" && l.GetValue() == "primary" {
					t.Errorf("metric %s still has target=primary label after removal", f.GetName())
				}
			}
		}
	}
}

func TestMultipleTargetsAreIndependent(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetTargetHealth("t1", true)
	c.SetTargetHealth("t2", false)

	if v := getGaugeValue(c.targetHealth.WithLabelValues("t1")); v != 1 {
		t.Errorf("expected t1 health=1, got %v", v)
	}
	if v := getGaugeValue(c.targetHealth.WithLabelValues("t2")); v != 0 {
		t.Errorf("expected t2 health=0, got %v", v)
	}
}

func TestNewDoesNotPanicOnMultipleCalls(t *testing.T) {
	// Calling New() multiple times must not panic: each creates its own
	// registry instead of registering against the global default.
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("New() panicked on repeated calls: %v", r)
		}
	}()

	c1 := New()
	c2 := New()

	c1.SetTargetHealth("t1", true)
	c2.SetTargetHealth("t1", false)

	if v := getGaugeValue(c1.targetHealth.WithLabelValues("t1")); v != 1 {
		t.Errorf("c1 expected health=1, got %v", v)
	}
	if v := getGaugeValue(c2.targetHealth.WithLabelValues("t1")); v != 0 {
		t.Errorf("c2 expected health=0, got %v", v)
	}
}
