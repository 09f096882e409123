package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the factory monitor
type PrometheusMetrics struct {
	// Health check metrics
	HealthChecksTotal   *prometheus.CounterVec
	HealthCheckDuration *prometheus.HistogramVec
	HealthCheckStatus   *prometheus.GaugeVec
	CyclesTotal         *prometheus.CounterVec
	CyclesSkippedTotal  *prometheus.CounterVec

	// Alert metrics
	AlertsCreatedTotal    *prometheus.CounterVec
	AlertsSuppressedTotal *prometheus.CounterVec
	DomainSignalCount     *prometheus.GaugeVec

	// Storage metrics
	DatabaseOperationsTotal   *prometheus.CounterVec
	DatabaseOperationDuration *prometheus.HistogramVec
	PersistenceDegraded       prometheus.Gauge
	MetricsPurgedTotal        prometheus.Counter

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	NotificationDuration      *prometheus.HistogramVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates and registers all Prometheus metrics with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		HealthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_health_checks_total",
				Help: "Total number of health check results by check and status",
			},
			[]string{"check", "status"},
		),

		HealthCheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factory_health_check_duration_seconds",
				Help:    "Duration of individual health check probes",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"check"},
		),

		HealthCheckStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "factory_health_check_status",
				Help: "Last status of each check (0=healthy, 1=warning, 2=critical, 3=unknown)",
			},
			[]string{"check"},
		),

		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_monitor_cycles_total",
				Help: "Total number of scheduler cycles run",
			},
			[]string{"timer"},
		),

		CyclesSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_monitor_cycles_skipped_total",
				Help: "Total number of ticks skipped because the previous cycle was still running",
			},
			[]string{"timer"},
		),

		AlertsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_alerts_created_total",
				Help: "Total number of alerts persisted",
			},
			[]string{"type", "severity"},
		),

		AlertsSuppressedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_alerts_suppressed_total",
				Help: "Total number of alerts suppressed by the cooldown window",
			},
			[]string{"source"},
		),

		DomainSignalCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "factory_domain_signal_count",
				Help: "Last observed count for production and inventory signals",
			},
			[]string{"signal"},
		),

		DatabaseOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_database_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "table", "status"},
		),

		DatabaseOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factory_database_operation_duration_seconds",
				Help:    "Duration of database operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),

		PersistenceDegraded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "factory_persistence_degraded",
				Help: "1 while durable writes are failing after retry",
			},
		),

		MetricsPurgedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "factory_performance_metrics_purged_total",
				Help: "Total number of performance metric rows removed by retention cleanup",
			},
		),

		NotificationsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_notifications_sent_total",
				Help: "Total number of notifications delivered",
			},
			[]string{"channel", "recipient_type"},
		),

		NotificationFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_notification_failures_total",
				Help: "Total number of failed notifications",
			},
			[]string{"channel", "recipient_type"},
		),

		NotificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factory_notification_duration_seconds",
				Help:    "Duration of notification delivery",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factory_http_requests_total",
				Help: "Total number of HTTP requests received",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factory_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "factory_application_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "factory_memory_heap_inuse_bytes",
				Help: "Current heap in use in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "factory_goroutines",
				Help: "Number of running goroutines",
			},
		),
	}
}

// statusValue maps a health status onto the gauge encoding
func statusValue(status string) float64 {
	switch status {
	case "healthy":
		return 0
	case "warning":
		return 1
	case "critical":
		return 2
	default:
		return 3
	}
}

// RecordHealthCheck records one probe result
func (m *PrometheusMetrics) RecordHealthCheck(check, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HealthChecksTotal.WithLabelValues(check, status).Inc()
	m.HealthCheckDuration.WithLabelValues(check).Observe(duration.Seconds())
	m.HealthCheckStatus.WithLabelValues(check).Set(statusValue(status))
}

// RecordCycle records a completed scheduler cycle
func (m *PrometheusMetrics) RecordCycle(timer string) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(timer).Inc()
}

// RecordCycleSkipped records a tick skipped by the overlap guard
func (m *PrometheusMetrics) RecordCycleSkipped(timer string) {
	if m == nil {
		return
	}
	m.CyclesSkippedTotal.WithLabelValues(timer).Inc()
}

// RecordAlertCreated records a persisted alert
func (m *PrometheusMetrics) RecordAlertCreated(alertType, severity string) {
	if m == nil {
		return
	}
	m.AlertsCreatedTotal.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertSuppressed records an alert dropped by the cooldown window
func (m *PrometheusMetrics) RecordAlertSuppressed(source string) {
	if m == nil {
		return
	}
	m.AlertsSuppressedTotal.WithLabelValues(source).Inc()
}

// UpdateDomainSignal records the last count of a domain signal
func (m *PrometheusMetrics) UpdateDomainSignal(signal string, count int64) {
	if m == nil {
		return
	}
	m.DomainSignalCount.WithLabelValues(signal).Set(float64(count))
}

// RecordDatabaseOperation records a database operation
func (m *PrometheusMetrics) RecordDatabaseOperation(operation, table, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DatabaseOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// SetPersistenceDegraded flips the degraded gauge
func (m *PrometheusMetrics) SetPersistenceDegraded(degraded bool) {
	if m == nil {
		return
	}
	value := 0.0
	if degraded {
		value = 1.0
	}
	m.PersistenceDegraded.Set(value)
}

// RecordMetricsPurged records rows removed by retention cleanup
func (m *PrometheusMetrics) RecordMetricsPurged(count int64) {
	if m == nil {
		return
	}
	m.MetricsPurgedTotal.Add(float64(count))
}

// RecordNotificationSent records a sent notification
func (m *PrometheusMetrics) RecordNotificationSent(channel, recipientType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.NotificationsSentTotal.WithLabelValues(channel, recipientType).Inc()
	m.NotificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordNotificationFailure records a failed notification
func (m *PrometheusMetrics) RecordNotificationFailure(channel, recipientType string) {
	if m == nil {
		return
	}
	m.NotificationFailuresTotal.WithLabelValues(channel, recipientType).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateApplicationUptime updates the application uptime metric
func (m *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	m.ApplicationUptime.Set(time.Since(startTime).Seconds())
}

// UpdateMemoryUsage updates the memory usage metric
func (m *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates the goroutine count metric
func (m *PrometheusMetrics) UpdateGoroutineCount(count int) {
	m.GoroutineCount.Set(float64(count))
}
