// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.ComponentLogger("sqlite_storage"),
		migrations: GetSQLiteMigrations(),
	}
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	// Ensure directory exists
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetMaxIdleConns(s.config.MaxConnections / 2)
	db.SetConnMaxIdleTime(s.config.MaxIdleTime)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to enable WAL mode", err.Error())
	}

	// Cycles write from several goroutines at once
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to set busy timeout", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		s.logger.Info("SQLite database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStorage) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	s.logger.Info("Starting database migrations")

	for _, migration := range s.migrations {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	s.logger.Info("Database migrations completed")
	return nil
}

// RunTrivialQuery executes SELECT 1
func (s *SQLiteStorage) RunTrivialQuery(ctx context.Context) error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Trivial query failed", err.Error())
	}
	return nil
}

// GetActiveConnectionCount reports connections currently in use by the pool.
// SQLite has no server-side session view.
func (s *SQLiteStorage) GetActiveConnectionCount(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(s.db.Stats().InUse), nil
}

// GetDatabaseSizePretty returns the database file size, human readable
func (s *SQLiteStorage) GetDatabaseSizePretty(ctx context.Context) (string, error) {
	size, err := s.databaseSize(ctx)
	if err != nil {
		return "", err
	}
	return humanize.Bytes(uint64(size)), nil
}

func (s *SQLiteStorage) databaseSize(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read page count", err.Error())
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read page size", err.Error())
	}
	return pageCount * pageSize, nil
}

// GetOverdueOrderCount counts open orders whose delivery date has passed
func (s *SQLiteStorage) GetOverdueOrderCount(ctx context.Context, asOf time.Time) (int64, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(closedOrderStatuses)), ",")
	// julianday accepts both our layout and RFC3339 with any offset
	query := `SELECT COUNT(*) FROM orders
		WHERE delivery_date IS NOT NULL AND julianday(delivery_date) < julianday(?)
		AND status NOT IN (` + placeholders + `)`

	args := []interface{}{formatTime(asOf)}
	for _, st := range closedOrderStatuses {
		args = append(args, st)
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count overdue orders", err.Error())
	}
	return count, nil
}

// GetLowStockItemCount counts inventory items at or below their minimum
func (s *SQLiteStorage) GetLowStockItemCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventory_items WHERE current_stock <= min_stock AND min_stock > 0`,
	).Scan(&count)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count low stock items", err.Error())
	}
	return count, nil
}

// UpsertHealthCheck writes the single row kept per check name
func (s *SQLiteStorage) UpsertHealthCheck(ctx context.Context, check *models.SystemHealthCheck) error {
	details, err := marshalJSON(check.CheckDetails)
	if err != nil {
		return err
	}
	thresholds, err := marshalJSON(check.Thresholds)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO system_health_checks
		(check_name, check_name_ar, check_type, status, last_check_time,
		 check_duration_ms, check_details, last_error, thresholds, is_critical)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(check_name) DO UPDATE SET
			check_name_ar = excluded.check_name_ar,
			check_type = CASE WHEN excluded.check_type = '' THEN system_health_checks.check_type ELSE excluded.check_type END,
			status = excluded.status,
			last_check_time = excluded.last_check_time,
			check_duration_ms = excluded.check_duration_ms,
			check_details = excluded.check_details,
			last_error = excluded.last_error,
			thresholds = excluded.thresholds,
			is_critical = excluded.is_critical
	`

	_, err = s.db.ExecContext(ctx, query,
		check.CheckName, check.CheckNameAr, check.CheckType, string(check.Status),
		formatTime(check.LastCheckTime), check.CheckDurationMs, details,
		nullString(check.LastError), thresholds, check.IsCritical)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert health check", err.Error())
	}
	return nil
}

const sqliteHealthCheckColumns = `check_name, check_name_ar, check_type, status, last_check_time,
	check_duration_ms, check_details, last_error, thresholds, is_critical`

// GetHealthCheck retrieves a health check row by name
func (s *SQLiteStorage) GetHealthCheck(ctx context.Context, name string) (*models.SystemHealthCheck, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteHealthCheckColumns+` FROM system_health_checks WHERE check_name = ?`, name)

	check, err := scanSQLiteHealthCheck(row)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "Health check not found", name)
	}
	if err != nil {
		return nil, err
	}
	return check, nil
}

// GetHealthChecks lists every health check row
func (s *SQLiteStorage) GetHealthChecks(ctx context.Context) ([]*models.SystemHealthCheck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteHealthCheckColumns+` FROM system_health_checks ORDER BY check_name`)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query health checks", err.Error())
	}
	defer rows.Close()

	var checks []*models.SystemHealthCheck
	for rows.Next() {
		check, err := scanSQLiteHealthCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteHealthCheck(row rowScanner) (*models.SystemHealthCheck, error) {
	var (
		check      models.SystemHealthCheck
		status     string
		lastCheck  string
		details    sql.NullString
		lastError  sql.NullString
		thresholds sql.NullString
	)

	err := row.Scan(&check.CheckName, &check.CheckNameAr, &check.CheckType, &status,
		&lastCheck, &check.CheckDurationMs, &details, &lastError, &thresholds, &check.IsCritical)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan health check", err.Error())
	}

	check.Status = models.HealthStatus(status)
	if check.LastCheckTime, err = parseTime(lastCheck); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Invalid last_check_time", err.Error())
	}
	check.LastError = stringPtr(lastError)
	if err := unmarshalJSON(details, &check.CheckDetails); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(thresholds, &check.Thresholds); err != nil {
		return nil, err
	}
	return &check, nil
}

// InsertPerformanceMetrics appends samples in a single transaction
func (s *SQLiteStorage) InsertPerformanceMetrics(ctx context.Context, metrics []*models.PerformanceMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin transaction", err.Error())
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO system_performance_metrics
		(metric_name, metric_category, value, unit, source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to prepare statement", err.Error())
	}
	defer stmt.Close()

	for _, m := range metrics {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		res, err := stmt.ExecContext(ctx, m.MetricName, m.MetricCategory, m.Value, m.Unit, m.Source, formatTime(ts))
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert performance metric", err.Error())
		}
		if id, err := res.LastInsertId(); err == nil {
			m.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit transaction", err.Error())
	}
	return nil
}

// GetPerformanceMetrics returns samples newer than since; empty name means all
func (s *SQLiteStorage) GetPerformanceMetrics(ctx context.Context, name string, since time.Time) ([]*models.PerformanceMetric, error) {
	query := `SELECT id, metric_name, metric_category, value, unit, source, timestamp
		FROM system_performance_metrics WHERE timestamp >= ?`
	args := []interface{}{formatTime(since)}
	if name != "" {
		query += " AND metric_name = ?"
		args = append(args, name)
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query performance metrics", err.Error())
	}
	defer rows.Close()

	var metrics []*models.PerformanceMetric
	for rows.Next() {
		var (
			m  models.PerformanceMetric
			ts string
		)
		if err := rows.Scan(&m.ID, &m.MetricName, &m.MetricCategory, &m.Value, &m.Unit, &m.Source, &ts); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan performance metric", err.Error())
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Invalid metric timestamp", err.Error())
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

// DeletePerformanceMetricsOlderThan purges samples with timestamp < cutoff
func (s *SQLiteStorage) DeletePerformanceMetricsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM system_performance_metrics WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete old performance metrics", err.Error())
	}
	return res.RowsAffected()
}

// InsertAlert appends an alert; alerts are never updated afterwards
func (s *SQLiteStorage) InsertAlert(ctx context.Context, alert *models.SystemAlert) error {
	contextData, err := marshalJSON(alert.ContextData)
	if err != nil {
		return err
	}
	actions, err := marshalJSON(alert.SuggestedActions)
	if err != nil {
		return err
	}
	users, err := marshalJSON(nonNilIDs(alert.TargetUsers))
	if err != nil {
		return err
	}
	roles, err := marshalJSON(nonNilIDs(alert.TargetRoles))
	if err != nil {
		return err
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO system_alerts
		(id, title, title_ar, message, message_ar, type, category, severity,
		 source, source_id, context_data, suggested_actions, target_users,
		 target_roles, requires_action, notification_sent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		alert.ID, alert.Title, alert.TitleAr, alert.Message, alert.MessageAr,
		string(alert.Type), string(alert.Category), string(alert.Severity),
		alert.Source, alert.SourceID, contextData, actions, users, roles,
		alert.RequiresAction, alert.NotificationSent, formatTime(alert.CreatedAt))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert alert", err.Error())
	}
	return nil
}

// GetAlerts lists alerts newest first
func (s *SQLiteStorage) GetAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.SystemAlert, error) {
	query := `SELECT id, title, title_ar, message, message_ar, type, category, severity,
		source, source_id, context_data, suggested_actions, target_users, target_roles,
		requires_action, notification_sent, created_at
		FROM system_alerts WHERE 1=1`
	var args []interface{}

	if filter.Type != nil {
		query += " AND type = ?"
		args = append(args, string(*filter.Type))
	}
	if filter.Severity != nil {
		query += " AND severity = ?"
		args = append(args, string(*filter.Severity))
	}
	if filter.Source != nil {
		query += " AND source = ?"
		args = append(args, *filter.Source)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, formatTime(*filter.Since))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query alerts", err.Error())
	}
	defer rows.Close()

	var alerts []*models.SystemAlert
	for rows.Next() {
		var (
			a                       models.SystemAlert
			typ, category, severity string
			contextData, actions    sql.NullString
			users, roles            sql.NullString
			createdAt               string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.TitleAr, &a.Message, &a.MessageAr,
			&typ, &category, &severity, &a.Source, &a.SourceID, &contextData, &actions,
			&users, &roles, &a.RequiresAction, &a.NotificationSent, &createdAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan alert", err.Error())
		}
		a.Type = models.AlertType(typ)
		a.Category = models.AlertCategory(category)
		a.Severity = models.AlertSeverity(severity)
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Invalid alert timestamp", err.Error())
		}
		for _, col := range []struct {
			raw sql.NullString
			dst interface{}
		}{
			{contextData, &a.ContextData},
			{actions, &a.SuggestedActions},
			{users, &a.TargetUsers},
			{roles, &a.TargetRoles},
		} {
			if err := unmarshalJSON(col.raw, col.dst); err != nil {
				return nil, err
			}
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// SaveNotification stores an inbox row
func (s *SQLiteStorage) SaveNotification(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO notifications
		(id, title, message, type, priority, recipient_type, recipient_id,
		 context_type, context_id, sound, icon, status, created_at, sent_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.Title, n.Message, n.Type, n.Priority, n.RecipientType, n.RecipientID,
		n.ContextType, n.ContextID, n.Sound, n.Icon, n.Status, formatTime(n.CreatedAt),
		formatNullTime(n.SentAt), nullString(n.Error))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save notification", err.Error())
	}
	return nil
}

// UpdateNotificationStatus records the delivery outcome of an inbox row
func (s *SQLiteStorage) UpdateNotificationStatus(ctx context.Context, id string, status string, errMsg *string) error {
	var sentAt interface{}
	if status == "sent" {
		sentAt = formatTime(time.Now())
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, sent_at = COALESCE(?, sent_at), error = ? WHERE id = ?`,
		status, sentAt, nullString(errMsg), id)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to update notification", err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return utils.NewAppError(utils.ErrCodeNotFound, "Notification not found", id)
	}
	return nil
}

// GetNotifications lists a recipient's inbox, newest first
func (s *SQLiteStorage) GetNotifications(ctx context.Context, recipientType string, recipientID int64, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, message, type, priority, recipient_type, recipient_id,
		       context_type, context_id, sound, icon, status, created_at, sent_at, error
		FROM notifications
		WHERE recipient_type = ? AND recipient_id = ?
		ORDER BY created_at DESC LIMIT ?`, recipientType, recipientID, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query notifications", err.Error())
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var (
			n         models.Notification
			createdAt string
			sentAt    sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.Priority, &n.RecipientType,
			&n.RecipientID, &n.ContextType, &n.ContextID, &n.Sound, &n.Icon, &n.Status,
			&createdAt, &sentAt, &errMsg); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan notification", err.Error())
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Invalid notification timestamp", err.Error())
		}
		if n.SentAt, err = parseNullTime(sentAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Invalid notification sent_at", err.Error())
		}
		n.Error = stringPtr(errMsg)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// GetStorageStats returns row counts and sizes
func (s *SQLiteStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	counts := []struct {
		table string
		dst   *int64
	}{
		{"system_health_checks", &stats.TotalHealthChecks},
		{"system_alerts", &stats.TotalAlerts},
		{"system_performance_metrics", &stats.TotalMetrics},
		{"notifications", &stats.TotalNotifications},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count "+c.table, err.Error())
		}
	}

	var oldest, latest sql.NullString
	if err := s.db.QueryRowContext(ctx,
		"SELECT MIN(timestamp) FROM system_performance_metrics").Scan(&oldest); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read oldest metric", err.Error())
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT MAX(created_at) FROM system_alerts").Scan(&latest); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read latest alert", err.Error())
	}

	var err error
	if stats.OldestMetric, err = parseNullTime(oldest); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Invalid metric timestamp", err.Error())
	}
	if stats.LatestAlert, err = parseNullTime(latest); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Invalid alert timestamp", err.Error())
	}

	size, err := s.databaseSize(ctx)
	if err != nil {
		return nil, err
	}
	stats.DatabaseSize = humanize.Bytes(uint64(size))
	stats.OpenConnections = s.db.Stats().OpenConnections

	return stats, nil
}
