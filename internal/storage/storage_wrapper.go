package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
)

// StorageWithMetrics wraps a storage implementation with metrics
type StorageWithMetrics struct {
	Storage
	metricsManager *metrics.Manager
}

// NewStorageWithMetrics creates a storage wrapper with metrics
func NewStorageWithMetrics(storage Storage, metricsManager *metrics.Manager) *StorageWithMetrics {
	return &StorageWithMetrics{
		Storage:        storage,
		metricsManager: metricsManager,
	}
}

func (s *StorageWithMetrics) record(operation, table string, start time.Time, err error) {
	if s.metricsManager == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metricsManager.GetPrometheusMetrics().RecordDatabaseOperation(operation, table, status, time.Since(start))
}

// UpsertHealthCheck upserts a health check row and records metrics
func (s *StorageWithMetrics) UpsertHealthCheck(ctx context.Context, check *models.SystemHealthCheck) error {
	start := time.Now()
	err := s.Storage.UpsertHealthCheck(ctx, check)
	s.record("upsert", "system_health_checks", start, err)
	return err
}

// InsertPerformanceMetrics inserts samples and records metrics
func (s *StorageWithMetrics) InsertPerformanceMetrics(ctx context.Context, samples []*models.PerformanceMetric) error {
	start := time.Now()
	err := s.Storage.InsertPerformanceMetrics(ctx, samples)
	s.record("insert", "system_performance_metrics", start, err)
	return err
}

// DeletePerformanceMetricsOlderThan purges samples and records metrics
func (s *StorageWithMetrics) DeletePerformanceMetricsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	n, err := s.Storage.DeletePerformanceMetricsOlderThan(ctx, cutoff)
	s.record("delete", "system_performance_metrics", start, err)
	if err == nil {
		s.metricsManager.GetPrometheusMetrics().RecordMetricsPurged(n)
	}
	return n, err
}

// InsertAlert inserts an alert and records metrics
func (s *StorageWithMetrics) InsertAlert(ctx context.Context, alert *models.SystemAlert) error {
	start := time.Now()
	err := s.Storage.InsertAlert(ctx, alert)
	s.record("insert", "system_alerts", start, err)
	return err
}

// GetAlerts queries alerts and records metrics
func (s *StorageWithMetrics) GetAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.SystemAlert, error) {
	start := time.Now()
	alerts, err := s.Storage.GetAlerts(ctx, filter)
	s.record("select", "system_alerts", start, err)
	return alerts, err
}

// SaveNotification stores a notification and records metrics
func (s *StorageWithMetrics) SaveNotification(ctx context.Context, n *models.Notification) error {
	start := time.Now()
	err := s.Storage.SaveNotification(ctx, n)
	s.record("insert", "notifications", start, err)
	return err
}

// UpdateNotificationStatus updates a notification and records metrics
func (s *StorageWithMetrics) UpdateNotificationStatus(ctx context.Context, id string, status string, errMsg *string) error {
	start := time.Now()
	err := s.Storage.UpdateNotificationStatus(ctx, id, status, errMsg)
	s.record("update", "notifications", start, err)
	return err
}
