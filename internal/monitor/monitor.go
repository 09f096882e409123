// File: internal/monitor/monitor.go
package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/factory-monitor/internal/alert"
	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/health"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// Timer names
const (
	TimerHealthCheck = "health_check"
	TimerMonitoring  = "monitoring"
)

// Deps are the components a Monitor drives
type Deps struct {
	Runner  *health.Runner
	Engine  *alert.Engine
	Rules   []models.AlertRule
	Metrics *metrics.Manager
}

// Monitor schedules the health check and monitoring cycles
type Monitor struct {
	runner  *health.Runner
	engine  *alert.Engine
	rules   []models.AlertRule
	config  config.MonitorConfig
	metrics *metrics.Manager
	logger  *logrus.Entry

	mu          sync.Mutex
	initialized bool
	closed      bool
	armed       bool
	stopChan    chan struct{}
	stopOnce    *sync.Once
	loops       *sync.WaitGroup
	cycles      sync.WaitGroup

	healthTimer     *timer
	monitoringTimer *timer
	startedAt       time.Time
}

// timer tracks one scheduled cycle kind
type timer struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	inflight atomic.Int32
	runs     atomic.Uint64
	skipped  atomic.Uint64
	lastRun  atomic.Int64 // unix nanos of the last finished cycle
}

// SystemStatus is a point-in-time view of the monitor
type SystemStatus struct {
	HealthCheckArmed      bool                                `json:"health_check_armed"`
	MonitoringArmed       bool                                `json:"monitoring_armed"`
	Closed                bool                                `json:"closed"`
	LastKnownStatus       map[string]models.HealthCheckResult `json:"last_known_status"`
	Degraded              bool                                `json:"degraded"`
	LastPersistError      string                              `json:"last_persist_error,omitempty"`
	LastPersistErrorAt    *time.Time                          `json:"last_persist_error_at,omitempty"`
	CyclesRun             map[string]uint64                   `json:"cycles_run"`
	CyclesSkipped         map[string]uint64                   `json:"cycles_skipped"`
	LastHealthCycleAt     *time.Time                          `json:"last_health_cycle_at,omitempty"`
	LastMonitoringCycleAt *time.Time                          `json:"last_monitoring_cycle_at,omitempty"`
	AlertsCreated         uint64                              `json:"alerts_created"`
	AlertsSuppressed      uint64                              `json:"alerts_suppressed"`
	Uptime                time.Duration                       `json:"uptime"`
}

// New creates a monitor; nothing runs until Initialize
func New(cfg config.MonitorConfig, deps Deps) *Monitor {
	m := &Monitor{
		runner:    deps.Runner,
		engine:    deps.Engine,
		rules:     deps.Rules,
		config:    cfg,
		metrics:   deps.Metrics,
		logger:    utils.ComponentLogger("monitor"),
		startedAt: time.Now(),
	}

	m.healthTimer = &timer{
		name:     TimerHealthCheck,
		interval: cfg.HealthCheckInterval,
		run: func(ctx context.Context) error {
			_, err := m.RunHealthCheckCycle(ctx)
			return err
		},
	}
	m.monitoringTimer = &timer{
		name:     TimerMonitoring,
		interval: cfg.MonitoringInterval,
		run:      m.PerformMonitoring,
	}

	return m
}

// Initialize loads alert rules, registers the check definitions and arms
// both timers. Once it has succeeded, calling it again is a no-op.
func (m *Monitor) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return utils.NewAppError(utils.ErrCodeShutdown, "Monitor has been shut down", "")
	}
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	m.logger.Info("Initializing system monitor")

	m.engine.LoadRules(m.rules)
	if err := m.engine.RegisterDefinitions(ctx, m.runner.Definitions()); err != nil {
		// Degraded persistence is reported through status, keep going
		m.logger.WithError(err).Warn("Failed to register health check definitions")
	}

	if err := m.StartMonitoring(); err != nil {
		return err
	}

	m.mu.Lock()
	m.initialized = true
	m.mu.Unlock()
	return nil
}

// StartMonitoring arms the health check and monitoring tickers. The first
// cycle of each fires one interval after arming.
func (m *Monitor) StartMonitoring() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return utils.NewAppError(utils.ErrCodeShutdown, "Monitor has been shut down", "")
	}
	if m.armed {
		return nil
	}
	if m.config.HealthCheckInterval <= 0 || m.config.MonitoringInterval <= 0 {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Monitor intervals must be positive", "")
	}

	m.stopChan = make(chan struct{})
	m.stopOnce = &sync.Once{}
	m.loops = &sync.WaitGroup{}
	m.armed = true

	m.loops.Add(2)
	go m.timerLoop(m.healthTimer, m.stopChan, m.loops)
	go m.timerLoop(m.monitoringTimer, m.stopChan, m.loops)

	m.logger.WithFields(logrus.Fields{
		"health_check_interval": m.config.HealthCheckInterval,
		"monitoring_interval":   m.config.MonitoringInterval,
		"allow_overlap":         m.config.AllowOverlap,
	}).Info("System monitoring started")

	return nil
}

// StopMonitoring disarms both tickers. Cycles already running are left to
// finish. Safe to call any number of times.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return
	}
	m.armed = false
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	loops := m.loops
	m.mu.Unlock()

	loops.Wait()
	m.logger.Info("System monitoring stopped")
}

// Shutdown stops the tickers and closes the monitor for good
func (m *Monitor) Shutdown() error {
	m.StopMonitoring()

	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.logger.Info("System monitor shut down")
	return nil
}

// IsRunning reports whether the tickers are armed
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed
}

func (m *Monitor) timerLoop(t *timer, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			m.logger.WithField("timer", t.name).Debug("Timer loop stopped")
			return
		case <-ticker.C:
			m.tick(t)
		}
	}
}

// tick launches one cycle on its own goroutine unless the overlap guard
// finds the previous cycle of the same timer still running.
func (m *Monitor) tick(t *timer) bool {
	if m.config.AllowOverlap {
		t.inflight.Add(1)
	} else if !t.inflight.CompareAndSwap(0, 1) {
		t.skipped.Add(1)
		m.metrics.GetPrometheusMetrics().RecordCycleSkipped(t.name)
		m.logger.WithField("timer", t.name).Warn("Previous cycle still running, skipping tick")
		return false
	}

	m.cycles.Add(1)
	go func() {
		defer m.cycles.Done()
		defer t.inflight.Add(-1)
		m.runCycle(t)
	}()
	return true
}

// runCycle executes a cycle with a timeout and recovers any panic
func (m *Monitor) runCycle(t *timer) {
	start := time.Now()
	logger := m.logger.WithField("timer", t.name)

	defer func() {
		if rec := recover(); rec != nil {
			logger.WithField("panic", rec).Error("Monitoring cycle panicked")
		}
		t.runs.Add(1)
		t.lastRun.Store(time.Now().UnixNano())
		m.metrics.GetPrometheusMetrics().RecordCycle(t.name)
	}()

	ctx := context.Background()
	if m.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.CycleTimeout)
		defer cancel()
	}

	if err := t.run(ctx); err != nil {
		logger.WithError(err).Error("Monitoring cycle finished with errors")
		return
	}
	logger.WithField("duration", time.Since(start)).Debug("Monitoring cycle completed")
}

// RunHealthCheckCycle runs every probe and hands each result to the alert
// engine. It returns once all results are processed. The ctx deadline bounds
// the probes only; results are persisted and alerted on under a fresh
// deadline so a hung probe still produces its alert.
func (m *Monitor) RunHealthCheckCycle(ctx context.Context) ([]*models.HealthCheckResult, error) {
	results := m.runner.Run(ctx)

	pctx := context.WithoutCancel(ctx)
	if m.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, m.config.CycleTimeout)
		defer cancel()
	}

	var failed int
	for _, result := range results {
		if err := m.engine.ProcessHealthCheckResult(pctx, result); err != nil {
			failed++
			m.logger.WithError(err).WithField("check", result.CheckName).Error("Failed to process health check result")
		}
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d health check results failed to process", failed, len(results))
	}
	return results, nil
}

// PerformMonitoring runs one general monitoring cycle
func (m *Monitor) PerformMonitoring(ctx context.Context) error {
	return m.engine.PerformMonitoring(ctx)
}

// WaitForCycles blocks until every launched cycle has finished
func (m *Monitor) WaitForCycles() {
	m.cycles.Wait()
}

// GetSystemStatus returns a snapshot; it reads cached state only
func (m *Monitor) GetSystemStatus() *SystemStatus {
	m.mu.Lock()
	armed := m.armed
	closed := m.closed
	m.mu.Unlock()

	es := m.engine.Status()
	status := &SystemStatus{
		HealthCheckArmed:   armed,
		MonitoringArmed:    armed,
		Closed:             closed,
		LastKnownStatus:    es.LastKnownStatus,
		Degraded:           es.Degraded,
		LastPersistError:   es.LastPersistError,
		LastPersistErrorAt: es.LastPersistErrorAt,
		AlertsCreated:      es.AlertsCreated,
		AlertsSuppressed:   es.AlertsSuppressed,
		CyclesRun: map[string]uint64{
			TimerHealthCheck: m.healthTimer.runs.Load(),
			TimerMonitoring:  m.monitoringTimer.runs.Load(),
		},
		CyclesSkipped: map[string]uint64{
			TimerHealthCheck: m.healthTimer.skipped.Load(),
			TimerMonitoring:  m.monitoringTimer.skipped.Load(),
		},
		LastHealthCycleAt:     lastRunTime(m.healthTimer),
		LastMonitoringCycleAt: lastRunTime(m.monitoringTimer),
		Uptime:                time.Since(m.startedAt),
	}
	return status
}

func lastRunTime(t *timer) *time.Time {
	nanos := t.lastRun.Load()
	if nanos == 0 {
		return nil
	}
	ts := time.Unix(0, nanos)
	return &ts
}
