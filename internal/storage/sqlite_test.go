package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	utils.InitLogger("info", "text", "stdout", "")

	store := NewSQLiteStorage(&StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "monitor.db"),
		MaxConnections:   4,
		MaxIdleTime:      time.Minute,
	})
	require.NoError(t, store.Connect())
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate())
	return store
}

func TestSQLiteStorage(t *testing.T) {
	store := newTestSQLite(t)

	require.NoError(t, store.Ping())
	// Migrations are idempotent
	require.NoError(t, store.Migrate())

	t.Run("Probe Surface", func(t *testing.T) { testProbeSurface(t, store) })
	t.Run("Health Check Upsert", func(t *testing.T) { testHealthCheckUpsert(t, store) })
	t.Run("Performance Metric Retention", func(t *testing.T) { testMetricRetention(t, store) })
	t.Run("Alert Operations", func(t *testing.T) { testAlertOperations(t, store) })
	t.Run("Domain Signals", func(t *testing.T) { testDomainSignals(t, store) })
	t.Run("Notification Operations", func(t *testing.T) { testNotificationOperations(t, store) })
	t.Run("Statistics", func(t *testing.T) { testStatistics(t, store) })
}

func testProbeSurface(t *testing.T, store *SQLiteStorage) {
	ctx := context.Background()

	require.NoError(t, store.RunTrivialQuery(ctx))

	count, err := store.GetActiveConnectionCount(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, int64(0))

	size, err := store.GetDatabaseSizePretty(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, size)
}

func testHealthCheckUpsert(t *testing.T, store *SQLiteStorage) {
	ctx := context.Background()
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	errMsg := "connection refused"
	check := &models.SystemHealthCheck{
		CheckName:       models.CheckDatabaseConnection,
		CheckNameAr:     "اتصال قاعدة البيانات",
		CheckType:       models.CheckTypeDatabase,
		Status:          models.HealthStatusCritical,
		LastCheckTime:   first,
		CheckDurationMs: 6000,
		CheckDetails:    map[string]interface{}{"active_connections": 3},
		LastError:       &errMsg,
		Thresholds:      models.Thresholds{Warning: 1000, Critical: 5000, Unit: "ms"},
		IsCritical:      true,
	}
	require.NoError(t, store.UpsertHealthCheck(ctx, check))

	// Second write for the same name replaces the row
	check.Status = models.HealthStatusHealthy
	check.LastCheckTime = first.Add(30 * time.Second)
	check.CheckDurationMs = 12
	check.LastError = nil
	check.CheckType = ""
	require.NoError(t, store.UpsertHealthCheck(ctx, check))

	checks, err := store.GetHealthChecks(ctx)
	require.NoError(t, err)
	require.Len(t, checks, 1)

	got := checks[0]
	assert.Equal(t, models.HealthStatusHealthy, got.Status)
	assert.Equal(t, int64(12), got.CheckDurationMs)
	assert.True(t, got.LastCheckTime.Equal(first.Add(30*time.Second)))
	assert.Nil(t, got.LastError)
	assert.Equal(t, models.CheckTypeDatabase, got.CheckType, "empty type keeps the registered one")
	assert.Equal(t, float64(3), got.CheckDetails["active_connections"])
	assert.Equal(t, 5000.0, got.Thresholds.Critical)
	assert.True(t, got.IsCritical)

	_, err = store.GetHealthCheck(ctx, "missing")
	assert.True(t, utils.HasCode(err, utils.ErrCodeNotFound))

	t.Logf("✓ Health check upsert keeps a single row")
}

func testMetricRetention(t *testing.T, store *SQLiteStorage) {
	ctx := context.Background()
	now := time.Now()

	samples := []*models.PerformanceMetric{
		{MetricName: "memory_heap_used", MetricCategory: models.MetricCategoryMemory, Value: 1, Unit: "bytes", Source: "runtime", Timestamp: now.Add(-31 * 24 * time.Hour)},
		{MetricName: "memory_heap_used", MetricCategory: models.MetricCategoryMemory, Value: 2, Unit: "bytes", Source: "runtime", Timestamp: now.Add(-29 * 24 * time.Hour)},
	}
	require.NoError(t, store.InsertPerformanceMetrics(ctx, samples))
	assert.NotZero(t, samples[0].ID)

	deleted, err := store.DeletePerformanceMetricsOlderThan(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := store.GetPerformanceMetrics(ctx, "memory_heap_used", now.Add(-60*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, 2.0, remaining[0].Value)

	require.NoError(t, store.InsertPerformanceMetrics(ctx, nil))
}

func testAlertOperations(t *testing.T, store *SQLiteStorage) {
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	critical := &models.SystemAlert{
		ID:               utils.GenerateID(),
		Title:            "Database Connection critical",
		TitleAr:          "تنبيه",
		Message:          "connection refused",
		Type:             models.AlertTypeSystem,
		Category:         models.AlertCategoryCritical,
		Severity:         models.SeverityCritical,
		Source:           "health_check",
		SourceID:         models.CheckDatabaseConnection,
		ContextData:      map[string]interface{}{"duration_ms": 6000},
		SuggestedActions: []models.SuggestedAction{{Action: "Check database server", Priority: 1}},
		TargetRoles:      []int64{models.RoleAdmin, models.RoleManager},
		RequiresAction:   true,
		CreatedAt:        base,
	}
	inventory := &models.SystemAlert{
		ID:          utils.GenerateID(),
		Title:       "Low stock",
		Type:        models.AlertTypeInventory,
		Category:    models.AlertCategoryWarning,
		Severity:    models.SeverityMedium,
		Source:      "inventory_monitor",
		SourceID:    "low_stock",
		TargetRoles: []int64{models.RoleManager, models.RoleWarehouseKeeper},
		CreatedAt:   base.Add(time.Minute),
	}
	require.NoError(t, store.InsertAlert(ctx, critical))
	require.NoError(t, store.InsertAlert(ctx, inventory))

	all, err := store.GetAlerts(ctx, models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, inventory.ID, all[0].ID, "newest first")

	sev := models.SeverityCritical
	filtered, err := store.GetAlerts(ctx, models.AlertFilter{Severity: &sev})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	got := filtered[0]
	assert.Equal(t, []int64{1, 2}, got.TargetRoles)
	assert.Empty(t, got.TargetUsers)
	assert.Equal(t, "Check database server", got.SuggestedActions[0].Action)
	assert.True(t, got.RequiresAction)
	assert.False(t, got.NotificationSent)
	assert.True(t, got.CreatedAt.Equal(base))

	limited, err := store.GetAlerts(ctx, models.AlertFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testDomainSignals(t *testing.T, store *SQLiteStorage) {
	ctx := context.Background()
	now := time.Now()

	orders := []struct {
		number string
		status string
		due    interface{}
	}{
		{"ORD-1", "in_production", formatTime(now.Add(-48 * time.Hour))},
		{"ORD-2", "pending", formatTime(now.Add(-time.Hour))},
		{"ORD-3", "delivered", formatTime(now.Add(-48 * time.Hour))},
		{"ORD-4", "pending", formatTime(now.Add(48 * time.Hour))},
		{"ORD-5", "pending", nil},
		// Seeded rows may use RFC3339
		{"ORD-6", "pending", now.Add(-time.Hour).UTC().Format(time.RFC3339)},
		{"ORD-7", "in_production", now.Add(-30 * time.Minute).In(time.FixedZone("AST", 3*3600)).Format(time.RFC3339)},
		{"ORD-8", "pending", now.Add(time.Hour).UTC().Format(time.RFC3339)},
	}
	for _, o := range orders {
		_, err := store.db.Exec(`INSERT INTO orders (order_number, status, delivery_date) VALUES (?, ?, ?)`,
			o.number, o.status, o.due)
		require.NoError(t, err)
	}

	overdue, err := store.GetOverdueOrderCount(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), overdue)

	items := []struct {
		name         string
		current, min float64
	}{
		{"steel sheet", 5, 10},
		{"bolts", 10, 10},
		{"paint", 50, 10},
		{"untracked", 0, 0},
	}
	for _, it := range items {
		_, err := store.db.Exec(`INSERT INTO inventory_items (name, current_stock, min_stock) VALUES (?, ?, ?)`,
			it.name, it.current, it.min)
		require.NoError(t, err)
	}

	low, err := store.GetLowStockItemCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), low)
}

func testNotificationOperations(t *testing.T, store *SQLiteStorage) {
	ctx := context.Background()

	n := models.NewNotification(utils.GenerateID(), &models.NotificationPayload{
		Title:         "Database Connection critical",
		Message:       "connection refused",
		Type:          "system_alert",
		Priority:      models.PriorityUrgent,
		RecipientType: models.RecipientTypeRole,
		RecipientID:   models.RoleAdmin,
		ContextType:   models.ContextTypeSystemAlert,
		ContextID:     "alert-1",
		Sound:         true,
		Icon:          "🚨",
	})
	require.NoError(t, store.SaveNotification(ctx, n))
	require.NoError(t, store.UpdateNotificationStatus(ctx, n.ID, "sent", nil))

	inbox, err := store.GetNotifications(ctx, models.RecipientTypeRole, models.RoleAdmin, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "sent", inbox[0].Status)
	assert.NotNil(t, inbox[0].SentAt)
	assert.True(t, inbox[0].Sound)
	assert.Equal(t, "🚨", inbox[0].Icon)

	other, err := store.GetNotifications(ctx, models.RecipientTypeRole, models.RoleManager, 10)
	require.NoError(t, err)
	assert.Empty(t, other)

	err = store.UpdateNotificationStatus(ctx, "missing", "failed", nil)
	assert.True(t, utils.HasCode(err, utils.ErrCodeNotFound))
}

func testStatistics(t *testing.T, store *SQLiteStorage) {
	stats, err := store.GetStorageStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), stats.TotalHealthChecks)
	assert.Equal(t, int64(2), stats.TotalAlerts)
	assert.Equal(t, int64(1), stats.TotalMetrics)
	assert.Equal(t, int64(1), stats.TotalNotifications)
	assert.NotNil(t, stats.OldestMetric)
	assert.NotNil(t, stats.LatestAlert)
	assert.NotEmpty(t, stats.DatabaseSize)
}

func TestNewStorage(t *testing.T) {
	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := NewStorage(&config.StorageConfig{Type: "mysql", ConnectionString: "x", MaxConnections: 1})
		assert.True(t, utils.HasCode(err, utils.ErrCodeConfiguration))
	})

	t.Run("requires connection string", func(t *testing.T) {
		_, err := NewStorage(&config.StorageConfig{Type: "sqlite", MaxConnections: 1})
		assert.Error(t, err)
	})

	t.Run("selects backend", func(t *testing.T) {
		s, err := NewStorage(&config.StorageConfig{Type: "postgres", ConnectionString: "postgres://localhost/db", MaxConnections: 1})
		require.NoError(t, err)
		assert.IsType(t, &PostgreSQLStorage{}, s)
	})

	t.Run("instrumented wrapper", func(t *testing.T) {
		cfg := &config.StorageConfig{
			Type:             "sqlite",
			ConnectionString: filepath.Join(t.TempDir(), "wrapped.db"),
			MaxConnections:   2,
		}
		s, err := NewInstrumentedStorage(cfg, metrics.NewManager())
		require.NoError(t, err)
		require.IsType(t, &StorageWithMetrics{}, s)

		require.NoError(t, s.Connect())
		defer s.Close()
		require.NoError(t, s.Migrate())

		ctx := context.Background()
		require.NoError(t, s.InsertPerformanceMetrics(ctx, []*models.PerformanceMetric{
			{MetricName: "goroutines", MetricCategory: models.MetricCategoryRuntime, Value: 5, Timestamp: time.Now().Add(-time.Hour)},
		}))
		deleted, err := s.DeletePerformanceMetricsOlderThan(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}

func TestTimeCodec(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 600, time.FixedZone("UTC+3", 3*3600))

	parsed, err := parseTime(formatTime(ts))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))

	parsed, err = parseTime("2026-01-02T00:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, 2026, parsed.Year())

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}
