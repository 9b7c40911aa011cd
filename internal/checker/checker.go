// Package checker runs periodic PostgreSQL wire-protocol health checks
// against a set of configured targets: dial, optional SSLRequest
// pre-exchange, and the startup/authentication dialogue. A target counts
// as healthy once it reaches ReadyForQuery.
package checker

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pgwire/pgwire/capability/md5impl"
	"github.com/pgwire/pgwire/capability/scram"
	"github.com/pgwire/pgwire/capability/tlsimpl"
	"github.com/pgwire/pgwire/internal/config"
	"github.com/pgwire/pgwire/internal/metrics"
	"github.com/pgwire/pgwire/pgerr"
	"github.com/pgwire/pgwire/receiver"
	"github.com/pgwire/pgwire/sslrequest"
	"github.com/pgwire/pgwire/startup"
)

// Status is the health classification of a target.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// TargetHealth is the current health record for one target.
type TargetHealth struct {
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"last_check"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Checker performs periodic checks against all configured targets.
type Checker struct {
	mu       sync.RWMutex
	cfg      *config.Config
	metrics  *metrics.Collector
	statuses map[string]*TargetHealth

	cancelFuncs map[string]chan struct{}
	wg          sync.WaitGroup

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewChecker creates a Checker for the targets in cfg.
func NewChecker(cfg *config.Config, m *metrics.Collector) *Checker {
	return &Checker{
		cfg:         cfg,
		metrics:     m,
		statuses:    make(map[string]*TargetHealth),
		cancelFuncs: make(map[string]chan struct{}),
		stopCh:      make(chan struct{}),
	}
}

// Start launches one periodic loop per target, each on its own effective
// interval.
func (c *Checker) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, tc := range c.cfg.Targets {
		c.startTargetLocked(name, tc)
	}
	slog.Info("checker started", "targets", len(c.cfg.Targets))
}

func (c *Checker) startTargetLocked(name string, tc config.TargetConfig) {
	stop := make(chan struct{})
	c.cancelFuncs[name] = stop
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.checkTarget(name, tc)
		interval := tc.EffectiveInterval(c.cfg.Checks)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.checkTarget(name, tc)
			case <-stop:
				return
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop halts all per-target loops. Safe to call multiple times.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	slog.Info("checker stopped")
}

// CheckAllOnce runs a single check round across all targets, bounded by a
// worker pool, and blocks until every target has reported. Used for the
// -once command-line mode where no periodic loop is wanted.
func (c *Checker) CheckAllOnce() {
	c.mu.RLock()
	targets := make(map[string]config.TargetConfig, len(c.cfg.Targets))
	for name, tc := range c.cfg.Targets {
		targets[name] = tc
	}
	c.mu.RUnlock()

	const maxWorkers = 10
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	for name, tc := range targets {
		name, tc := name, tc
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			c.checkTarget(name, tc)
		}()
	}
	wg.Wait()
}

// CheckNow runs a single synchronous check of one target outside its
// periodic loop, e.g. for an on-demand API-triggered recheck.
func (c *Checker) CheckNow(name string, tc config.TargetConfig) {
	c.checkTarget(name, tc)
}

func (c *Checker) checkTarget(name string, tc config.TargetConfig) {
	start := time.Now()
	healthy, kind := c.runCheck(name, tc)
	elapsed := time.Since(start)

	if c.metrics != nil {
		c.metrics.CheckCompleted(name, elapsed, healthy)
		if !healthy && kind != "" {
			c.metrics.CheckError(name, kind)
		}
	}
	c.updateStatus(name, healthy)
}

// runCheck dials a target, optionally negotiates TLS, and drives the
// startup dialogue to completion. It reports the pgerr.Kind string on
// failure so callers can attribute the error in metrics.
func (c *Checker) runCheck(name string, tc config.TargetConfig) (bool, string) {
	dialTimeout := tc.EffectiveDialTimeout(c.cfg.Checks)

	dialStart := time.Now()
	conn, err := net.DialTimeout("tcp", tc.Addr(), dialTimeout)
	if c.metrics != nil {
		c.metrics.DialDuration(name, time.Since(dialStart))
	}
	if err != nil {
		c.setLastError(name, fmt.Sprintf("dial: %s", err))
		return false, "dial"
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(dialTimeout))

	var stream io.ReadWriter = conn
	if tc.RequireTLS {
		sslStart := time.Now()
		err := sslrequest.Request(conn)
		if c.metrics != nil {
			c.metrics.SSLDuration(name, time.Since(sslStart))
		}
		if err != nil {
			c.setLastError(name, fmt.Sprintf("ssl: %s", err))
			return false, kindOf(err)
		}
		upgraded, err := tlsimpl.Upgrader{Config: &tls.Config{ServerName: tc.Host}}.Upgrade(conn)
		if err != nil {
			c.setLastError(name, fmt.Sprintf("ssl: %s", err))
			return false, kindOf(err)
		}
		defer upgraded.Close()
		stream = upgraded
	}

	startupStart := time.Now()
	recv := receiver.New(nil)
	_, err = startup.Run(stream, recv, md5impl.Hasher{}, scram.NewClient(tc.Username, tc.Password), startup.Params{
		User:     []byte(tc.Username),
		Password: []byte(tc.Password),
		Database: []byte(tc.Database),
	})
	if c.metrics != nil {
		c.metrics.StartupDuration(name, time.Since(startupStart))
	}
	if err != nil {
		c.setLastError(name, fmt.Sprintf("startup: %s", err))
		return false, kindOf(err)
	}

	c.setLastError(name, "")
	return true, ""
}

func kindOf(err error) string {
	var pe *pgerr.Error
	if errors.As(err, &pe) {
		return pe.Kind.String()
	}
	return "unknown"
}

func (c *Checker) setLastError(name, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	th := c.getOrCreateLocked(name)
	if msg != "" {
		th.LastError = msg
	}
}

func (c *Checker) updateStatus(name string, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	th := c.getOrCreateLocked(name)
	th.LastCheck = time.Now()

	threshold := c.cfg.Targets[name].EffectiveFailThreshold(c.cfg.Checks)

	if healthy {
		if th.ConsecutiveFailures > 0 {
			slog.Info("target recovered", "target", name, "failures", th.ConsecutiveFailures)
		}
		th.Status = StatusHealthy
		th.ConsecutiveFailures = 0
		th.LastError = ""
	} else {
		th.ConsecutiveFailures++
		if th.ConsecutiveFailures >= threshold {
			if th.Status != StatusUnhealthy {
				slog.Warn("target marked unhealthy", "target", name, "failures", th.ConsecutiveFailures, "error", th.LastError)
			}
			th.Status = StatusUnhealthy
		}
	}

	if c.metrics != nil {
		c.metrics.SetTargetHealth(name, th.Status == StatusHealthy)
		c.metrics.SetConsecutiveFailures(name, th.ConsecutiveFailures)
	}
}

func (c *Checker) getOrCreateLocked(name string) *TargetHealth {
	th, ok := c.statuses[name]
	if !ok {
		th = &TargetHealth{Status: StatusUnknown}
		c.statuses[name] = th
	}
	return th
}

// IsHealthy reports whether a target is healthy. An unknown target (never
// checked) is treated as healthy so readiness probes don't fail before the
// first check round completes.
func (c *Checker) IsHealthy(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	th, ok := c.statuses[name]
	if !ok {
		return true
	}
	return th.Status != StatusUnhealthy
}

// GetStatus returns the health record for a target.
func (c *Checker) GetStatus(name string) TargetHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	th, ok := c.statuses[name]
	if !ok {
		return TargetHealth{Status: StatusUnknown}
	}
	return *th
}

// GetAllStatuses returns a snapshot of every known target's health.
func (c *Checker) GetAllStatuses() map[string]TargetHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]TargetHealth, len(c.statuses))
	for name, th := range c.statuses {
		result[name] = *th
	}
	return result
}

// OverallHealthy reports whether every known target is healthy.
func (c *Checker) OverallHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, th := range c.statuses {
		if th.Status == StatusUnhealthy {
			return false
		}
	}
	return true
}

// RemoveTarget drops health state for a target removed on config reload.
func (c *Checker) RemoveTarget(name string) {
	c.mu.Lock()
	delete(c.statuses, name)
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.RemoveTarget(name)
	}
}

// Reload replaces the target set: new targets start their own loop,
// removed targets are stopped and their health state dropped, and targets
// present in both configs keep running uninterrupted.
func (c *Checker) Reload(cfg *config.Config) {
	c.mu.Lock()
	old := c.cfg
	c.cfg = cfg

	for name, stop := range c.cancelFuncs {
		if _, ok := cfg.Targets[name]; !ok {
			close(stop)
			delete(c.cancelFuncs, name)
			delete(c.statuses, name)
		}
	}
	for name, tc := range cfg.Targets {
		if _, ok := old.Targets[name]; !ok {
			c.startTargetLocked(name, tc)
		}
	}
	c.mu.Unlock()

	slog.Info("checker reloaded", "targets", len(cfg.Targets))
}
