package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewPostgreSQLStorage creates a new PostgreSQL storage instance
func NewPostgreSQLStorage(config *StorageConfig) *PostgreSQLStorage {
	return &PostgreSQLStorage{
		config:     config,
		logger:     utils.ComponentLogger("postgres_storage"),
		migrations: GetPostgresMigrations(),
	}
}

// Connect establishes database connection
func (p *PostgreSQLStorage) Connect() error {
	db, err := sql.Open("postgres", p.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open PostgreSQL database", err.Error())
	}

	db.SetMaxOpenConns(p.config.MaxConnections)
	db.SetMaxIdleConns(p.config.MaxConnections / 2)
	db.SetConnMaxIdleTime(p.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping PostgreSQL database", err.Error())
	}

	p.db = db
	p.logger.Info("PostgreSQL database connected")

	return nil
}

// Close closes the database connection
func (p *PostgreSQLStorage) Close() error {
	if p.db != nil {
		err := p.db.Close()
		p.db = nil
		p.logger.Info("PostgreSQL database connection closed")
		return err
	}
	return nil
}

// Ping checks database connectivity
func (p *PostgreSQLStorage) Ping() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	return p.db.Ping()
}

// Migrate runs database migrations
func (p *PostgreSQLStorage) Migrate() error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}

	p.logger.Info("Starting database migrations")

	for _, migration := range p.migrations {
		p.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := p.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version),
				err.Error())
		}
	}

	p.logger.Info("Database migrations completed")
	return nil
}

// RunTrivialQuery executes SELECT 1
func (p *PostgreSQLStorage) RunTrivialQuery(ctx context.Context) error {
	if p.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected", "")
	}
	var one int
	if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Trivial query failed", err.Error())
	}
	return nil
}

// GetActiveConnectionCount counts active server sessions
func (p *PostgreSQLStorage) GetActiveConnectionCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pg_stat_activity WHERE state = 'active'`).Scan(&count)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count active connections", err.Error())
	}
	return count, nil
}

// GetDatabaseSizePretty returns pg_size_pretty of the current database
func (p *PostgreSQLStorage) GetDatabaseSizePretty(ctx context.Context) (string, error) {
	var size string
	err := p.db.QueryRowContext(ctx,
		`SELECT pg_size_pretty(pg_database_size(current_database()))`).Scan(&size)
	if err != nil {
		return "", utils.NewAppError(utils.ErrCodeDatabase, "Failed to read database size", err.Error())
	}
	return size, nil
}

// GetOverdueOrderCount counts open orders whose delivery date has passed
func (p *PostgreSQLStorage) GetOverdueOrderCount(ctx context.Context, asOf time.Time) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE delivery_date < $1 AND status <> ALL($2)`,
		asOf, pq.Array(closedOrderStatuses)).Scan(&count)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count overdue orders", err.Error())
	}
	return count, nil
}

// GetLowStockItemCount counts inventory items at or below their minimum
func (p *PostgreSQLStorage) GetLowStockItemCount(ctx context.Context) (int64, error) {
	var count int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventory_items WHERE current_stock <= min_stock AND min_stock > 0`,
	).Scan(&count)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to count low stock items", err.Error())
	}
	return count, nil
}

// UpsertHealthCheck writes the single row kept per check name
func (p *PostgreSQLStorage) UpsertHealthCheck(ctx context.Context, check *models.SystemHealthCheck) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (check_name) DO UPDATE SET
			check_name_ar = EXCLUDED.check_name_ar,
			check_type = COALESCE(NULLIF(EXCLUDED.check_type, ''), system_health_checks.check_type),
			status = EXCLUDED.status,
			last_check_time = EXCLUDED.last_check_time,
			check_duration_ms = EXCLUDED.check_duration_ms,
			check_details = EXCLUDED.check_details,
			last_error = EXCLUDED.last_error,
			thresholds = EXCLUDED.thresholds,
			is_critical = EXCLUDED.is_critical
	`

	_, err = p.db.ExecContext(ctx, query,
		check.CheckName, check.CheckNameAr, check.CheckType, string(check.Status),
		check.LastCheckTime, check.CheckDurationMs, details,
		nullString(check.LastError), thresholds, check.IsCritical)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to upsert health check", err.Error())
	}
	return nil
}

const postgresHealthCheckColumns = `check_name, check_name_ar, check_type, status, last_check_time,
	check_duration_ms, check_details, last_error, thresholds, is_critical`

// GetHealthCheck retrieves a health check row by name
func (p *PostgreSQLStorage) GetHealthCheck(ctx context.Context, name string) (*models.SystemHealthCheck, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+postgresHealthCheckColumns+` FROM system_health_checks WHERE check_name = $1`, name)

	check, err := scanPostgresHealthCheck(row)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeNotFound, "Health check not found", name)
	}
	if err != nil {
		return nil, err
	}
	return check, nil
}

// GetHealthChecks lists every health check row
func (p *PostgreSQLStorage) GetHealthChecks(ctx context.Context) ([]*models.SystemHealthCheck, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+postgresHealthCheckColumns+` FROM system_health_checks ORDER BY check_name`)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query health checks", err.Error())
	}
	defer rows.Close()

	var checks []*models.SystemHealthCheck
	for rows.Next() {
		check, err := scanPostgresHealthCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

func scanPostgresHealthCheck(row rowScanner) (*models.SystemHealthCheck, error) {
	var (
		check      models.SystemHealthCheck
		status     string
		details    sql.NullString
		lastError  sql.NullString
		thresholds sql.NullString
	)

	err := row.Scan(&check.CheckName, &check.CheckNameAr, &check.CheckType, &status,
		&check.LastCheckTime, &check.CheckDurationMs, &details, &lastError, &thresholds, &check.IsCritical)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan health check", err.Error())
	}

	check.Status = models.HealthStatus(status)
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
func (p *PostgreSQLStorage) InsertPerformanceMetrics(ctx context.Context, metrics []*models.PerformanceMetric) error {
	if len(metrics) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to begin transaction", err.Error())
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO system_performance_metrics
		(metric_name, metric_category, value, unit, source, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
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
		if err := stmt.QueryRowContext(ctx, m.MetricName, m.MetricCategory, m.Value,
			m.Unit, m.Source, ts).Scan(&m.ID); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert performance metric", err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to commit transaction", err.Error())
	}
	return nil
}

// GetPerformanceMetrics returns samples newer than since; empty name means all
func (p *PostgreSQLStorage) GetPerformanceMetrics(ctx context.Context, name string, since time.Time) ([]*models.PerformanceMetric, error) {
	query := `SELECT id, metric_name, metric_category, value, unit, source, timestamp
		FROM system_performance_metrics WHERE timestamp >= $1`
	args := []interface{}{since}
	if name != "" {
		query += " AND metric_name = $2"
		args = append(args, name)
	}
	query += " ORDER BY timestamp ASC"

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query performance metrics", err.Error())
	}
	defer rows.Close()

	var metrics []*models.PerformanceMetric
	for rows.Next() {
		var m models.PerformanceMetric
		if err := rows.Scan(&m.ID, &m.MetricName, &m.MetricCategory, &m.Value, &m.Unit, &m.Source, &m.Timestamp); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan performance metric", err.Error())
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

// DeletePerformanceMetricsOlderThan purges samples with timestamp < cutoff
func (p *PostgreSQLStorage) DeletePerformanceMetricsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM system_performance_metrics WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrCodeDatabase, "Failed to delete old performance metrics", err.Error())
	}
	return res.RowsAffected()
}

// InsertAlert appends an alert; alerts are never updated afterwards
func (p *PostgreSQLStorage) InsertAlert(ctx context.Context, alert *models.SystemAlert) error {
	contextData, err := marshalJSON(alert.ContextData)
	if err != nil {
		return err
	}
	actions, err := marshalJSON(alert.SuggestedActions)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = p.db.ExecContext(ctx, query,
		alert.ID, alert.Title, alert.TitleAr, alert.Message, alert.MessageAr,
		string(alert.Type), string(alert.Category), string(alert.Severity),
		alert.Source, alert.SourceID, contextData, actions,
		pq.Array(nonNilIDs(alert.TargetUsers)), pq.Array(nonNilIDs(alert.TargetRoles)),
		alert.RequiresAction, alert.NotificationSent, alert.CreatedAt)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to insert alert", err.Error())
	}
	return nil
}

// GetAlerts lists alerts newest first
func (p *PostgreSQLStorage) GetAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.SystemAlert, error) {
	query := `SELECT id, title, title_ar, message, message_ar, type, category, severity,
		source, source_id, context_data, suggested_actions, target_users, target_roles,
		requires_action, notification_sent, created_at
		FROM system_alerts WHERE 1=1`
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Type != nil {
		query += " AND type = " + arg(string(*filter.Type))
	}
	if filter.Severity != nil {
		query += " AND severity = " + arg(string(*filter.Severity))
	}
	if filter.Source != nil {
		query += " AND source = " + arg(*filter.Source)
	}
	if filter.Since != nil {
		query += " AND created_at >= " + arg(*filter.Since)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
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
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.TitleAr, &a.Message, &a.MessageAr,
			&typ, &category, &severity, &a.Source, &a.SourceID, &contextData, &actions,
			pq.Array(&a.TargetUsers), pq.Array(&a.TargetRoles),
			&a.RequiresAction, &a.NotificationSent, &a.CreatedAt); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan alert", err.Error())
		}
		a.Type = models.AlertType(typ)
		a.Category = models.AlertCategory(category)
		a.Severity = models.AlertSeverity(severity)
		if err := unmarshalJSON(contextData, &a.ContextData); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(actions, &a.SuggestedActions); err != nil {
			return nil, err
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// SaveNotification stores an inbox row
func (p *PostgreSQLStorage) SaveNotification(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO notifications
		(id, title, message, type, priority, recipient_type, recipient_id,
		 context_type, context_id, sound, icon, status, created_at, sent_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		n.ID, n.Title, n.Message, n.Type, n.Priority, n.RecipientType, n.RecipientID,
		n.ContextType, n.ContextID, n.Sound, n.Icon, n.Status, n.CreatedAt,
		n.SentAt, nullString(n.Error))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save notification", err.Error())
	}
	return nil
}

// UpdateNotificationStatus records the delivery outcome of an inbox row
func (p *PostgreSQLStorage) UpdateNotificationStatus(ctx context.Context, id string, status string, errMsg *string) error {
	var sentAt *time.Time
	if status == "sent" {
		now := time.Now()
		sentAt = &now
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET status = $1, sent_at = COALESCE($2, sent_at), error = $3 WHERE id = $4`,
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
func (p *PostgreSQLStorage) GetNotifications(ctx context.Context, recipientType string, recipientID int64, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, message, type, priority, recipient_type, recipient_id,
		       context_type, context_id, sound, icon, status, created_at, sent_at, error
		FROM notifications
		WHERE recipient_type = $1 AND recipient_id = $2
		ORDER BY created_at DESC LIMIT $3`, recipientType, recipientID, limit)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to query notifications", err.Error())
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		var (
			n      models.Notification
			sentAt sql.NullTime
			errMsg sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.Priority, &n.RecipientType,
			&n.RecipientID, &n.ContextType, &n.ContextID, &n.Sound, &n.Icon, &n.Status,
			&n.CreatedAt, &sentAt, &errMsg); err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan notification", err.Error())
		}
		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}
		n.Error = stringPtr(errMsg)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// GetStorageStats returns row counts and sizes
func (p *PostgreSQLStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	var oldest, latest sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM system_health_checks),
			(SELECT COUNT(*) FROM system_alerts),
			(SELECT COUNT(*) FROM system_performance_metrics),
			(SELECT COUNT(*) FROM notifications),
			(SELECT MIN(timestamp) FROM system_performance_metrics),
			(SELECT MAX(created_at) FROM system_alerts)
	`).Scan(&stats.TotalHealthChecks, &stats.TotalAlerts, &stats.TotalMetrics,
		&stats.TotalNotifications, &oldest, &latest)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to read storage stats", err.Error())
	}
	if oldest.Valid {
		t := oldest.Time
		stats.OldestMetric = &t
	}
	if latest.Valid {
		t := latest.Time
		stats.LatestAlert = &t
	}

	if stats.DatabaseSize, err = p.GetDatabaseSizePretty(ctx); err != nil {
		return nil, err
	}
	stats.OpenConnections = p.db.Stats().OpenConnections

	return stats, nil
}
