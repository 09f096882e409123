package health

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/smartdevs17/factory-monitor/internal/models"
)

// MemorySample is one reading of the process memory
type MemorySample struct {
	HeapInUse         uint64  `json:"heap_in_use"`
	HeapReserved      uint64  `json:"heap_reserved"`
	RSS               uint64  `json:"rss"`
	SystemUsedPercent float64 `json:"system_used_percent"`
}

// Percent is heap in use as a share of the heap reserved from the OS
func (s MemorySample) Percent() float64 {
	if s.HeapReserved == 0 {
		return 0
	}
	return float64(s.HeapInUse) / float64(s.HeapReserved) * 100
}

// MemorySampler reads the current memory usage
type MemorySampler func(ctx context.Context) (MemorySample, error)

// HostSample describes the machine the monitor runs on
type HostSample struct {
	Hostname        string `json:"hostname"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	HostUptime      uint64 `json:"host_uptime"`
}

// HostSampler reads host information
type HostSampler func(ctx context.Context) (HostSample, error)

// SampleMemory reads Go heap statistics from the runtime and the process RSS
// and system memory from gopsutil. Only the runtime reading is required.
func SampleMemory(ctx context.Context) (MemorySample, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := MemorySample{
		HeapInUse:    ms.HeapInuse,
		HeapReserved: ms.HeapSys,
	}

	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfoWithContext(ctx); err == nil {
			sample.RSS = info.RSS
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sample.SystemUsedPercent = vm.UsedPercent
	}

	return sample, nil
}

// SampleHost reads host information through gopsutil
func SampleHost(ctx context.Context) (HostSample, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostSample{}, err
	}
	return HostSample{
		Hostname:        info.Hostname,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		HostUptime:      info.Uptime,
	}, nil
}

// ClassifyDuration maps a probe duration to a status: above critical is
// critical, above warning is warning.
func ClassifyDuration(d, warning, critical time.Duration) models.HealthStatus {
	switch {
	case d > critical:
		return models.HealthStatusCritical
	case d > warning:
		return models.HealthStatusWarning
	default:
		return models.HealthStatusHealthy
	}
}

// ClassifyPercent maps a usage percentage to a status
func ClassifyPercent(pct, warning, critical float64) models.HealthStatus {
	switch {
	case pct > critical:
		return models.HealthStatusCritical
	case pct > warning:
		return models.HealthStatusWarning
	default:
		return models.HealthStatusHealthy
	}
}

func (r *Runner) checkDatabaseConnection(ctx context.Context) *models.HealthCheckResult {
	start := r.now()
	err := r.db.RunTrivialQuery(ctx)
	elapsed := r.now().Sub(start)

	result := &models.HealthCheckResult{
		DurationMs: elapsed.Milliseconds(),
		Details: map[string]interface{}{
			"response_time_ms": elapsed.Milliseconds(),
		},
	}
	if err != nil {
		result.Status = models.HealthStatusCritical
		result.Error = err.Error()
		return result
	}

	result.Status = ClassifyDuration(elapsed, r.cfg.DBConnectionWarning, r.cfg.DBConnectionCritical)
	return result
}

func (r *Runner) checkDatabasePerformance(ctx context.Context) *models.HealthCheckResult {
	start := r.now()
	result := &models.HealthCheckResult{Details: map[string]interface{}{}}

	active, err := r.db.GetActiveConnectionCount(ctx)
	if err == nil {
		result.Details["active_connections"] = active
		var size string
		size, err = r.db.GetDatabaseSizePretty(ctx)
		result.Details["database_size"] = size
	}

	elapsed := r.now().Sub(start)
	result.DurationMs = elapsed.Milliseconds()
	result.Details["query_time_ms"] = elapsed.Milliseconds()

	if err != nil {
		result.Status = models.HealthStatusCritical
		result.Error = err.Error()
		return result
	}

	result.Status = ClassifyDuration(elapsed, r.cfg.DBPerformanceWarning, r.cfg.DBPerformanceCritical)
	return result
}

func (r *Runner) checkMemoryUsage(ctx context.Context) *models.HealthCheckResult {
	start := r.now()
	sample, err := r.sampleMemory(ctx)
	elapsed := r.now().Sub(start)

	result := &models.HealthCheckResult{DurationMs: elapsed.Milliseconds()}
	if err != nil {
		result.Status = models.HealthStatusUnknown
		result.Error = err.Error()
		return result
	}

	pct := sample.Percent()
	result.Details = map[string]interface{}{
		"heap_in_use":         sample.HeapInUse,
		"heap_reserved":       sample.HeapReserved,
		"rss":                 sample.RSS,
		"system_used_percent": sample.SystemUsedPercent,
		"usage_percent":       pct,
	}
	result.Status = ClassifyPercent(pct, r.cfg.MemoryWarningPercent, r.cfg.MemoryCriticalPercent)
	return result
}

func (r *Runner) checkSystemLiveness(ctx context.Context) *models.HealthCheckResult {
	start := r.now()
	hostInfo, err := r.sampleHost(ctx)
	now := r.now()

	result := &models.HealthCheckResult{DurationMs: now.Sub(start).Milliseconds()}
	if err != nil {
		result.Status = models.HealthStatusCritical
		result.Error = err.Error()
		return result
	}

	result.Status = models.HealthStatusHealthy
	result.Details = map[string]interface{}{
		"uptime_seconds":  int64(now.Sub(r.startedAt).Seconds()),
		"go_version":      runtime.Version(),
		"platform":        runtime.GOOS + "/" + runtime.GOARCH,
		"pid":             os.Getpid(),
		"goroutines":      runtime.NumGoroutine(),
		"hostname":        hostInfo.Hostname,
		"os_platform":     hostInfo.Platform,
		"kernel_version":  hostInfo.KernelVersion,
		"host_uptime_sec": hostInfo.HostUptime,
	}
	return result
}
