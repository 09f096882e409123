package storage

// Migration represents a database migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetSQLiteMigrations returns SQLite migration scripts.
// Timestamps are stored as fixed-width UTC text so they order lexically.
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create system_health_checks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_health_checks (
					check_name TEXT PRIMARY KEY,
					check_name_ar TEXT NOT NULL DEFAULT '',
					check_type TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'unknown',
					last_check_time TEXT NOT NULL,
					check_duration_ms INTEGER NOT NULL DEFAULT 0,
					check_details TEXT, -- JSON
					last_error TEXT,
					thresholds TEXT, -- JSON
					is_critical BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE INDEX IF NOT EXISTS idx_health_checks_status ON system_health_checks(status);
			`,
		},
		{
			Version:     "002",
			Description: "Create system_performance_metrics table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_performance_metrics (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					metric_name TEXT NOT NULL,
					metric_category TEXT NOT NULL,
					value REAL NOT NULL,
					unit TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT '',
					timestamp TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_metrics_name ON system_performance_metrics(metric_name);
				CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON system_performance_metrics(timestamp);
			`,
		},
		{
			Version:     "003",
			Description: "Create system_alerts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_alerts (
					id TEXT PRIMARY KEY,
					title TEXT NOT NULL,
					title_ar TEXT NOT NULL DEFAULT '',
					message TEXT NOT NULL,
					message_ar TEXT NOT NULL DEFAULT '',
					type TEXT NOT NULL,
					category TEXT NOT NULL,
					severity TEXT NOT NULL,
					source TEXT NOT NULL DEFAULT '',
					source_id TEXT NOT NULL DEFAULT '',
					context_data TEXT, -- JSON
					suggested_actions TEXT, -- JSON
					target_users TEXT NOT NULL DEFAULT '[]', -- JSON
					target_roles TEXT NOT NULL DEFAULT '[]', -- JSON
					requires_action BOOLEAN NOT NULL DEFAULT FALSE,
					notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_alerts_type ON system_alerts(type);
				CREATE INDEX IF NOT EXISTS idx_alerts_severity ON system_alerts(severity);
				CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON system_alerts(created_at);
			`,
		},
		{
			Version:     "004",
			Description: "Create notifications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notifications (
					id TEXT PRIMARY KEY,
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					type TEXT NOT NULL,
					priority TEXT NOT NULL,
					recipient_type TEXT NOT NULL,
					recipient_id INTEGER NOT NULL,
					context_type TEXT NOT NULL DEFAULT '',
					context_id TEXT NOT NULL DEFAULT '',
					sound BOOLEAN NOT NULL DEFAULT FALSE,
					icon TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'pending',
					created_at TEXT NOT NULL,
					sent_at TEXT,
					error TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_type, recipient_id);
				CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
			`,
		},
		{
			Version:     "005",
			Description: "Create orders and inventory_items tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS orders (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					order_number TEXT NOT NULL UNIQUE,
					status TEXT NOT NULL DEFAULT 'pending',
					delivery_date TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_orders_delivery ON orders(delivery_date);

				CREATE TABLE IF NOT EXISTS inventory_items (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					current_stock REAL NOT NULL DEFAULT 0,
					min_stock REAL NOT NULL DEFAULT 0
				);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create system_health_checks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_health_checks (
					check_name TEXT PRIMARY KEY,
					check_name_ar TEXT NOT NULL DEFAULT '',
					check_type TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'unknown',
					last_check_time TIMESTAMP WITH TIME ZONE NOT NULL,
					check_duration_ms BIGINT NOT NULL DEFAULT 0,
					check_details JSONB,
					last_error TEXT,
					thresholds JSONB,
					is_critical BOOLEAN NOT NULL DEFAULT FALSE
				);

				CREATE INDEX IF NOT EXISTS idx_health_checks_status ON system_health_checks(status);
			`,
		},
		{
			Version:     "002",
			Description: "Create system_performance_metrics table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_performance_metrics (
					id BIGSERIAL PRIMARY KEY,
					metric_name TEXT NOT NULL,
					metric_category TEXT NOT NULL,
					value DOUBLE PRECISION NOT NULL,
					unit TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL DEFAULT '',
					timestamp TIMESTAMP WITH TIME ZONE NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_metrics_name ON system_performance_metrics(metric_name);
				CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON system_performance_metrics(timestamp);
			`,
		},
		{
			Version:     "003",
			Description: "Create system_alerts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS system_alerts (
					id TEXT PRIMARY KEY,
					title TEXT NOT NULL,
					title_ar TEXT NOT NULL DEFAULT '',
					message TEXT NOT NULL,
					message_ar TEXT NOT NULL DEFAULT '',
					type TEXT NOT NULL,
					category TEXT NOT NULL,
					severity TEXT NOT NULL,
					source TEXT NOT NULL DEFAULT '',
					source_id TEXT NOT NULL DEFAULT '',
					context_data JSONB,
					suggested_actions JSONB,
					target_users BIGINT[] NOT NULL DEFAULT '{}',
					target_roles BIGINT[] NOT NULL DEFAULT '{}',
					requires_action BOOLEAN NOT NULL DEFAULT FALSE,
					notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_alerts_type ON system_alerts(type);
				CREATE INDEX IF NOT EXISTS idx_alerts_severity ON system_alerts(severity);
				CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON system_alerts(created_at);
			`,
		},
		{
			Version:     "004",
			Description: "Create notifications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS notifications (
					id TEXT PRIMARY KEY,
					title TEXT NOT NULL,
					message TEXT NOT NULL,
					type TEXT NOT NULL,
					priority TEXT NOT NULL,
					recipient_type TEXT NOT NULL,
					recipient_id BIGINT NOT NULL,
					context_type TEXT NOT NULL DEFAULT '',
					context_id TEXT NOT NULL DEFAULT '',
					sound BOOLEAN NOT NULL DEFAULT FALSE,
					icon TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'pending',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					sent_at TIMESTAMP WITH TIME ZONE,
					error TEXT
				);

				CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_type, recipient_id);
				CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
			`,
		},
		{
			Version:     "005",
			Description: "Create orders and inventory_items tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS orders (
					id BIGSERIAL PRIMARY KEY,
					order_number TEXT NOT NULL UNIQUE,
					status TEXT NOT NULL DEFAULT 'pending',
					delivery_date TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_orders_delivery ON orders(delivery_date);

				CREATE TABLE IF NOT EXISTS inventory_items (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					current_stock NUMERIC NOT NULL DEFAULT 0,
					min_stock NUMERIC NOT NULL DEFAULT 0
				);
			`,
		},
	}
}
