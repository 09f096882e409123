// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/smartdevs17/factory-monitor/internal/models"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Monitor       MonitorConfig      `mapstructure:"monitor"`
	HealthChecks  HealthCheckConfig  `mapstructure:"health_checks"`
	Alerts        AlertConfig        `mapstructure:"alerts"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
}

// MonitorConfig contains scheduler configuration
type MonitorConfig struct {
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	MonitoringInterval  time.Duration `mapstructure:"monitoring_interval"`
	CycleTimeout        time.Duration `mapstructure:"cycle_timeout"`
	AllowOverlap        bool          `mapstructure:"allow_overlap"`
}

// HealthCheckConfig contains probe thresholds
type HealthCheckConfig struct {
	DBConnectionWarning   time.Duration `mapstructure:"db_connection_warning"`
	DBConnectionCritical  time.Duration `mapstructure:"db_connection_critical"`
	DBPerformanceWarning  time.Duration `mapstructure:"db_performance_warning"`
	DBPerformanceCritical time.Duration `mapstructure:"db_performance_critical"`
	MemoryWarningPercent  float64       `mapstructure:"memory_warning_percent"`
	MemoryCriticalPercent float64       `mapstructure:"memory_critical_percent"`
}

// AlertConfig contains alert engine configuration
type AlertConfig struct {
	Cooldown          time.Duration      `mapstructure:"cooldown"`
	MetricsRetention  time.Duration      `mapstructure:"metrics_retention"`
	Rules             []models.AlertRule `mapstructure:"rules"`
	NotifyConcurrency int                `mapstructure:"notify_concurrency"`
}

// MaxRetryAttempts bounds notifications.retry_attempts
const MaxRetryAttempts = 10

// NotificationConfig contains notification system configuration
type NotificationConfig struct {
	Enabled             bool                `mapstructure:"enabled"`
	NotificationTimeout time.Duration       `mapstructure:"notification_timeout"`
	RetryAttempts       int                 `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration       `mapstructure:"retry_delay"`
	RetryBackoff        string              `mapstructure:"retry_backoff"` // exponential, linear, fixed
	Webhook             WebhookConfig       `mapstructure:"webhook"`
	Email               EmailConfig         `mapstructure:"email"`
	Slack               SlackConfig         `mapstructure:"slack"`
	Directory           map[string][]string `mapstructure:"directory"` // "role:1" / "user:7" -> email addresses
}

// WebhookConfig configures the outbound webhook channel
type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// EmailConfig configures the SMTP channel
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// SlackConfig configures the Slack channel
type SlackConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	Channel string `mapstructure:"channel"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("FACTORY_MONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
		if strings.HasPrefix(dbURL, "postgres") {
			config.Storage.Type = "postgres"
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration produced by the defaults alone.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "factory-monitor")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.connection_string", "./data/factory.db")
	v.SetDefault("storage.max_connections", 10)
	v.SetDefault("storage.max_idle_time", "15m")
	v.SetDefault("storage.query_timeout", "30s")

	v.SetDefault("monitor.health_check_interval", "2m")
	v.SetDefault("monitor.monitoring_interval", "5m")
	v.SetDefault("monitor.cycle_timeout", "90s")
	v.SetDefault("monitor.allow_overlap", false)

	v.SetDefault("health_checks.db_connection_warning", "1s")
	v.SetDefault("health_checks.db_connection_critical", "5s")
	v.SetDefault("health_checks.db_performance_warning", "500ms")
	v.SetDefault("health_checks.db_performance_critical", "2s")
	v.SetDefault("health_checks.memory_warning_percent", 80.0)
	v.SetDefault("health_checks.memory_critical_percent", 95.0)

	v.SetDefault("alerts.cooldown", "0s")
	v.SetDefault("alerts.metrics_retention", "720h")
	v.SetDefault("alerts.notify_concurrency", 8)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.notification_timeout", "10s")
	v.SetDefault("notifications.retry_attempts", 3)
	v.SetDefault("notifications.retry_delay", "2s")
	v.SetDefault("notifications.retry_backoff", "exponential")
	v.SetDefault("notifications.webhook.enabled", false)
	v.SetDefault("notifications.email.enabled", false)
	v.SetDefault("notifications.email.smtp_port", 587)
	v.SetDefault("notifications.slack.enabled", false)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Monitor.HealthCheckInterval <= 0 {
		return fmt.Errorf("monitor health check interval must be positive")
	}
	if c.Monitor.MonitoringInterval <= 0 {
		return fmt.Errorf("monitor monitoring interval must be positive")
	}
	if c.HealthChecks.DBConnectionWarning >= c.HealthChecks.DBConnectionCritical {
		return fmt.Errorf("db connection warning threshold must be below the critical threshold")
	}
	if c.HealthChecks.DBPerformanceWarning >= c.HealthChecks.DBPerformanceCritical {
		return fmt.Errorf("db performance warning threshold must be below the critical threshold")
	}
	if c.HealthChecks.MemoryWarningPercent >= c.HealthChecks.MemoryCriticalPercent {
		return fmt.Errorf("memory warning percent must be below the critical percent")
	}
	if c.Alerts.Cooldown < 0 {
		return fmt.Errorf("alert cooldown must not be negative")
	}
	if c.Alerts.MetricsRetention <= 0 {
		return fmt.Errorf("metrics retention must be positive")
	}
	for _, rule := range c.Alerts.Rules {
		if rule.MetricName == "" {
			return fmt.Errorf("alert rule %q: metric_name is required", rule.Name)
		}
		switch rule.Operator {
		case "gt", "gte", "lt", "lte":
		default:
			return fmt.Errorf("alert rule %q: unsupported operator %q", rule.Name, rule.Operator)
		}
		if _, ok := models.ParseSeverity(string(rule.Severity)); !ok {
			return fmt.Errorf("alert rule %q: unsupported severity %q", rule.Name, rule.Severity)
		}
	}
	if c.Notifications.RetryAttempts < 0 || c.Notifications.RetryAttempts > MaxRetryAttempts {
		return fmt.Errorf("notification retry attempts must be between 0 and %d", MaxRetryAttempts)
	}
	switch c.Notifications.RetryBackoff {
	case "", "exponential", "linear", "fixed":
	default:
		return fmt.Errorf("unsupported notification retry backoff %q", c.Notifications.RetryBackoff)
	}
	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return fmt.Errorf("webhook notifications enabled without url")
	}
	if c.Notifications.Slack.Enabled && (c.Notifications.Slack.Token == "" || c.Notifications.Slack.Channel == "") {
		return fmt.Errorf("slack notifications require token and channel")
	}
	if c.Notifications.Email.Enabled && (c.Notifications.Email.SMTPHost == "" || c.Notifications.Email.From == "") {
		return fmt.Errorf("email notifications require smtp_host and from")
	}
	return nil
}
