package alert

import (
	"context"
	"runtime"
	"time"

	"github.com/smartdevs17/factory-monitor/internal/health"
	"github.com/smartdevs17/factory-monitor/internal/models"
)

// Performance metric names
const (
	MetricHeapInUse      = "heap_in_use_bytes"
	MetricHeapUsage      = "heap_usage_percent"
	MetricProcessRSS     = "process_rss_bytes"
	MetricSystemMemory   = "system_memory_used_percent"
	MetricGoroutines     = "goroutine_count"
	MetricGCPauseTotalMs = "gc_pause_total_ms"
)

// MetricSampler produces one batch of performance samples
type MetricSampler func(ctx context.Context, now time.Time) ([]*models.PerformanceMetric, error)

// SampleRuntimeMetrics is the default sampler: process memory and Go runtime counters
func SampleRuntimeMetrics(ctx context.Context, now time.Time) ([]*models.PerformanceMetric, error) {
	mem, err := health.SampleMemory(ctx)
	if err != nil {
		return nil, err
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := func(name, category string, value float64, unit string) *models.PerformanceMetric {
		return &models.PerformanceMetric{
			MetricName:     name,
			MetricCategory: category,
			Value:          value,
			Unit:           unit,
			Source:         "runtime",
			Timestamp:      now,
		}
	}

	return []*models.PerformanceMetric{
		sample(MetricHeapInUse, models.MetricCategoryMemory, float64(mem.HeapInUse), "bytes"),
		sample(MetricHeapUsage, models.MetricCategoryMemory, mem.Percent(), "percent"),
		sample(MetricProcessRSS, models.MetricCategoryMemory, float64(mem.RSS), "bytes"),
		sample(MetricSystemMemory, models.MetricCategoryMemory, mem.SystemUsedPercent, "percent"),
		sample(MetricGoroutines, models.MetricCategoryRuntime, float64(runtime.NumGoroutine()), "count"),
		sample(MetricGCPauseTotalMs, models.MetricCategoryRuntime, float64(ms.PauseTotalNs)/1e6, "ms"),
	}, nil
}
