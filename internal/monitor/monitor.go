// Package monitor watches the health of one environment on an interval and
// optionally repairs network drift.
package monitor

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/medstack-ops/envctl/internal/audit"
	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/health"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/network"
	"github.com/medstack-ops/envctl/internal/runtime"
)

// Repairer recreates networks and reattaches containers.
type Repairer interface {
	EnsureNetworks(ctx context.Context, cfg *config.EnvironmentConfig) error
	ConnectContainers(ctx context.Context, cfg *config.EnvironmentConfig) network.Result
}

// CheckResult holds the result of a single health check.
type CheckResult struct {
	Time   time.Time
	Report *health.Report
	Status health.Status
	// Changed is set when Status differs from the previous check.
	Changed bool
	// Drift lists missing networks and "container -> network" attachments.
	Drift    []string
	Repaired bool
	Err      error
}

// Monitor periodically checks the health of an environment.
type Monitor struct {
	interval time.Duration
	rt       runtime.Runtime
	cfg      *config.EnvironmentConfig
	repairer Repairer
	auditLog *audit.Logger
	runID    string
	report   func(CheckResult)
	now      func() time.Time

	last health.Status
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRepair enables network repair when drift is found.
func WithRepair(r Repairer) Option {
	return func(m *Monitor) {
		m.repairer = r
	}
}

// WithAuditLogger sets the audit logger for recording health transitions.
func WithAuditLogger(logger *audit.Logger, runID string) Option {
	return func(m *Monitor) {
		m.auditLog = logger
		m.runID = runID
	}
}

// WithReporter receives every check result.
func WithReporter(fn func(CheckResult)) Option {
	return func(m *Monitor) {
		m.report = fn
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New creates a new Monitor.
func New(interval time.Duration, rt runtime.Runtime, cfg *config.EnvironmentConfig, opts ...Option) *Monitor {
	m := &Monitor{
		interval: interval,
		rt:       rt,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run starts the monitoring loop. It blocks until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	logging.Debug("starting health monitor", "environment", m.cfg.Slug(), "interval", m.interval, "repair", m.repairer != nil)

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debug("health monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one health check, records status transitions and repairs
// drift when enabled.
func (m *Monitor) Check(ctx context.Context) CheckResult {
	report := health.Check(ctx, m.rt, m.cfg)
	result := CheckResult{Time: m.now(), Report: report, Err: report.Err}
	if report.Err != nil {
		logging.Warn("health check failed", "environment", m.cfg.Slug(), "error", report.Err)
		m.emit(result)
		return result
	}

	result.Status = report.Overall()
	result.Changed = result.Status != m.last
	m.last = result.Status
	if result.Changed {
		m.logEvent(audit.EventHealth, string(result.Status))
	}

	result.Drift = Drift(m.cfg, report)
	if len(result.Drift) > 0 && m.repairer != nil && result.Status != health.StatusAbsent {
		result.Repaired, result.Err = m.repair(ctx, result.Drift)
	}
	m.emit(result)
	return result
}

func (m *Monitor) repair(ctx context.Context, drift []string) (bool, error) {
	logging.Info("repairing network drift", "environment", m.cfg.Slug(), "drift", len(drift))

	if err := m.repairer.EnsureNetworks(ctx, m.cfg); err != nil {
		m.logEvent(audit.EventError, "repair failed: "+err.Error())
		return false, err
	}
	res := m.repairer.ConnectContainers(ctx, m.cfg)
	if !res.OK() {
		err := res.Errors[0]
		m.logEvent(audit.EventError, "repair failed: "+err.Error())
		return false, err
	}
	m.logEvent(audit.EventRepair, strings.Join(drift, ", "))
	return true, nil
}

func (m *Monitor) logEvent(t audit.EventType, details string) {
	if m.auditLog == nil {
		return
	}
	if err := m.auditLog.LogEvent(t, m.cfg.Slug(), m.runID, details); err != nil {
		logging.Warn("failed to write audit event", "error", err)
	}
}

func (m *Monitor) emit(r CheckResult) {
	if m.report != nil {
		m.report(r)
	}
}

// Drift compares a health report against the network topology. Only
// running containers are considered.
func Drift(cfg *config.EnvironmentConfig, report *health.Report) []string {
	var drift []string
	for _, n := range report.Networks {
		if !n.Exists {
			drift = append(drift, "network "+n.Name)
		}
	}

	for _, entry := range component.Topology() {
		ctr, ok := serviceContainer(cfg, report, entry)
		if !ok {
			continue
		}
		for _, role := range entry.RequiredNetworks {
			net := cfg.Networks.Name(role)
			if !slices.Contains(ctr.Networks, net) {
				drift = append(drift, fmt.Sprintf("%s -> %s", ctr.Name, net))
			}
		}
	}
	return drift
}

func serviceContainer(cfg *config.EnvironmentConfig, report *health.Report, entry component.TopologyEntry) (runtime.Container, bool) {
	for _, ch := range report.Components {
		if ch.Component != entry.Component {
			continue
		}
		pattern := entry.NamePattern(cfg)
		for _, c := range ch.Containers {
			if !c.Running() {
				continue
			}
			if c.Labels[config.LabelService] == entry.Service || strings.HasPrefix(c.Name, pattern) {
				return c, true
			}
		}
	}
	return runtime.Container{}, false
}
