package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// Prober is the part of the storage layer the database probes exercise
type Prober interface {
	RunTrivialQuery(ctx context.Context) error
	GetActiveConnectionCount(ctx context.Context) (int64, error)
	GetDatabaseSizePretty(ctx context.Context) (string, error)
}

type probe struct {
	def models.HealthCheckDefinition
	run func(ctx context.Context) *models.HealthCheckResult
}

// Runner executes the health check battery
type Runner struct {
	db           Prober
	cfg          config.HealthCheckConfig
	probes       []probe
	now          func() time.Time
	sampleMemory MemorySampler
	sampleHost   HostSampler
	startedAt    time.Time
	metrics      *metrics.Manager
	logger       *logrus.Entry
}

// Option configures a Runner
type Option func(*Runner)

// WithClock replaces the time source used for probe timing
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithMemorySampler replaces the memory sampler
func WithMemorySampler(s MemorySampler) Option {
	return func(r *Runner) { r.sampleMemory = s }
}

// WithHostSampler replaces the host information sampler
func WithHostSampler(s HostSampler) Option {
	return func(r *Runner) { r.sampleHost = s }
}

// WithMetrics records probe results in Prometheus
func WithMetrics(m *metrics.Manager) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner creates a runner for the default checks
func NewRunner(db Prober, cfg config.HealthCheckConfig, opts ...Option) *Runner {
	r := &Runner{
		db:           db,
		cfg:          cfg,
		now:          time.Now,
		sampleMemory: SampleMemory,
		sampleHost:   SampleHost,
		logger:       utils.ComponentLogger("health_runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startedAt = r.now()

	runs := map[string]func(context.Context) *models.HealthCheckResult{
		models.CheckDatabaseConnection:  r.checkDatabaseConnection,
		models.CheckDatabasePerformance: r.checkDatabasePerformance,
		models.CheckMemoryUsage:         r.checkMemoryUsage,
		models.CheckSystemLiveness:      r.checkSystemLiveness,
	}
	for _, def := range DefaultDefinitions(cfg) {
		r.probes = append(r.probes, probe{def: def, run: runs[def.Name]})
	}

	return r
}

// Definitions returns the registered check definitions in execution order
func (r *Runner) Definitions() []models.HealthCheckDefinition {
	defs := make([]models.HealthCheckDefinition, len(r.probes))
	for i, p := range r.probes {
		defs[i] = p.def
	}
	return defs
}

// Run executes every probe concurrently and returns one result per
// definition, in definition order. A probe still running when ctx ends is
// reported as critical with a timeout error.
func (r *Runner) Run(ctx context.Context) []*models.HealthCheckResult {
	var (
		mu      sync.Mutex
		results = make([]*models.HealthCheckResult, len(r.probes))
		start   = r.now()
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range r.probes {
		i, p := i, p
		g.Go(func() error {
			res := r.execute(gctx, p)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.WithError(ctx.Err()).Warn("Health check cycle timed out before all probes finished")
	}

	mu.Lock()
	defer mu.Unlock()

	out := make([]*models.HealthCheckResult, len(results))
	for i, res := range results {
		if res == nil {
			res = r.timedOut(r.probes[i].def, start, ctx.Err())
			results[i] = res
		}
		out[i] = res
	}
	return out
}

// timedOut builds the result for a probe that missed the cycle deadline
func (r *Runner) timedOut(def models.HealthCheckDefinition, start time.Time, cause error) *models.HealthCheckResult {
	now := r.now()
	result := &models.HealthCheckResult{
		CheckName:   def.Name,
		CheckNameAr: def.NameAr,
		Status:      models.HealthStatusCritical,
		DurationMs:  now.Sub(start).Milliseconds(),
		Error:       fmt.Sprintf("probe did not complete before the cycle deadline: %v", cause),
		CheckedAt:   now,
	}

	r.metrics.GetPrometheusMetrics().RecordHealthCheck(def.Name, string(result.Status),
		time.Duration(result.DurationMs)*time.Millisecond)
	r.logger.WithFields(logrus.Fields{
		"check":       def.Name,
		"duration_ms": result.DurationMs,
	}).Warn("Health check timed out")
	return result
}

// execute runs one probe, turning a panic into a critical result
func (r *Runner) execute(ctx context.Context, p probe) (result *models.HealthCheckResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(logrus.Fields{
				"check": p.def.Name,
				"panic": rec,
			}).Error("Health check probe panicked")
			result = &models.HealthCheckResult{
				Status: models.HealthStatusCritical,
				Error:  fmt.Sprintf("probe panicked: %v", rec),
			}
		}
		result.CheckName = p.def.Name
		result.CheckNameAr = p.def.NameAr
		result.CheckedAt = r.now()

		r.metrics.GetPrometheusMetrics().RecordHealthCheck(p.def.Name, string(result.Status),
			time.Duration(result.DurationMs)*time.Millisecond)

		entry := r.logger.WithFields(logrus.Fields{
			"check":       p.def.Name,
			"status":      result.Status,
			"duration_ms": result.DurationMs,
		})
		if result.Error != "" {
			entry.WithField("error", result.Error).Warn("Health check failed")
		} else {
			entry.Debug("Health check completed")
		}
	}()

	return p.run(ctx)
}
