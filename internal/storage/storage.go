// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/smartdevs17/factory-monitor/internal/models"
)

// Storage defines the data access surface used by the monitor
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Probe surface
	RunTrivialQuery(ctx context.Context) error
	GetActiveConnectionCount(ctx context.Context) (int64, error)
	GetDatabaseSizePretty(ctx context.Context) (string, error)

	// Domain signals
	GetOverdueOrderCount(ctx context.Context, asOf time.Time) (int64, error)
	GetLowStockItemCount(ctx context.Context) (int64, error)

	// Health check operations
	UpsertHealthCheck(ctx context.Context, check *models.SystemHealthCheck) error
	GetHealthCheck(ctx context.Context, name string) (*models.SystemHealthCheck, error)
	GetHealthChecks(ctx context.Context) ([]*models.SystemHealthCheck, error)

	// Performance metric operations
	InsertPerformanceMetrics(ctx context.Context, metrics []*models.PerformanceMetric) error
	GetPerformanceMetrics(ctx context.Context, name string, since time.Time) ([]*models.PerformanceMetric, error)
	DeletePerformanceMetricsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Alert operations
	InsertAlert(ctx context.Context, alert *models.SystemAlert) error
	GetAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.SystemAlert, error)

	// Notification operations
	SaveNotification(ctx context.Context, notification *models.Notification) error
	UpdateNotificationStatus(ctx context.Context, id string, status string, errMsg *string) error
	GetNotifications(ctx context.Context, recipientType string, recipientID int64, limit int) ([]*models.Notification, error)

	// Statistics
	GetStorageStats(ctx context.Context) (*StorageStats, error)
}

// StorageStats provides storage statistics
type StorageStats struct {
	TotalHealthChecks  int64      `json:"total_health_checks"`
	TotalAlerts        int64      `json:"total_alerts"`
	TotalMetrics       int64      `json:"total_metrics"`
	TotalNotifications int64      `json:"total_notifications"`
	OldestMetric       *time.Time `json:"oldest_metric,omitempty"`
	LatestAlert        *time.Time `json:"latest_alert,omitempty"`
	DatabaseSize       string     `json:"database_size"`
	OpenConnections    int        `json:"open_connections"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
}

// Order statuses that are no longer expected to ship
var closedOrderStatuses = []string{"completed", "delivered", "cancelled"}
