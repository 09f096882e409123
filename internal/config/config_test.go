package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/factory-monitor/internal/models"
)

const testConfigYAML = `
storage:
  type: sqlite
  connection_string: /tmp/factory-test.db
monitor:
  health_check_interval: 30s
alerts:
  cooldown: 10m
  rules:
    - name: heap-too-large
      metric_name: memory_heap_used
      operator: gt
      threshold: 1073741824
      severity: high
      enabled: true
notifications:
  directory:
    "role:1": ["admin@factory.example"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 2*time.Minute, cfg.Monitor.HealthCheckInterval)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.MonitoringInterval)
	assert.Equal(t, time.Second, cfg.HealthChecks.DBConnectionWarning)
	assert.Equal(t, 5*time.Second, cfg.HealthChecks.DBConnectionCritical)
	assert.Equal(t, 95.0, cfg.HealthChecks.MemoryCriticalPercent)
	assert.Equal(t, 30*24*time.Hour, cfg.Alerts.MetricsRetention)
	assert.Zero(t, cfg.Alerts.Cooldown)
	assert.False(t, cfg.Monitor.AllowOverlap)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, testConfigYAML))
		require.NoError(t, err)

		assert.Equal(t, 30*time.Second, cfg.Monitor.HealthCheckInterval)
		assert.Equal(t, 5*time.Minute, cfg.Monitor.MonitoringInterval)
		assert.Equal(t, 10*time.Minute, cfg.Alerts.Cooldown)
		require.Len(t, cfg.Alerts.Rules, 1)
		assert.Equal(t, models.SeverityHigh, cfg.Alerts.Rules[0].Severity)
		assert.Equal(t, "gt", cfg.Alerts.Rules[0].Operator)
		assert.Equal(t, []string{"admin@factory.example"}, cfg.Notifications.Directory["role:1"])
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("FACTORY_MONITOR_MONITOR_MONITORING_INTERVAL", "1m")
		t.Setenv("DATABASE_URL", "postgres://monitor@localhost/factory")

		cfg, err := Load(writeConfig(t, testConfigYAML))
		require.NoError(t, err)

		assert.Equal(t, time.Minute, cfg.Monitor.MonitoringInterval)
		assert.Equal(t, "postgres", cfg.Storage.Type)
		assert.Equal(t, "postgres://monitor@localhost/factory", cfg.Storage.ConnectionString)
	})

	t.Run("invalid rule is rejected", func(t *testing.T) {
		body := `
alerts:
  rules:
    - name: bad
      metric_name: memory_heap_used
      operator: eq
      severity: high
`
		_, err := Load(writeConfig(t, body))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported operator")
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"non-positive interval", func(c *Config) { c.Monitor.HealthCheckInterval = 0 }},
		{"inverted db thresholds", func(c *Config) { c.HealthChecks.DBConnectionWarning = 10 * time.Second }},
		{"inverted memory thresholds", func(c *Config) { c.HealthChecks.MemoryWarningPercent = 99 }},
		{"negative cooldown", func(c *Config) { c.Alerts.Cooldown = -time.Second }},
		{"webhook without url", func(c *Config) { c.Notifications.Webhook.Enabled = true }},
		{"slack without token", func(c *Config) { c.Notifications.Slack.Enabled = true }},
		{"email without host", func(c *Config) { c.Notifications.Email.Enabled = true }},
		{"too many retries", func(c *Config) { c.Notifications.RetryAttempts = MaxRetryAttempts + 1 }},
		{"negative retries", func(c *Config) { c.Notifications.RetryAttempts = -1 }},
		{"unknown backoff", func(c *Config) { c.Notifications.RetryBackoff = "random" }},
		{"bad rule severity", func(c *Config) {
			c.Alerts.Rules = []models.AlertRule{{Name: "r", MetricName: "m", Operator: "gt", Severity: "fatal"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsBackoffs(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "exponential", cfg.Notifications.RetryBackoff)
	for _, b := range []string{"exponential", "linear", "fixed"} {
		cfg.Notifications.RetryBackoff = b
		assert.NoError(t, cfg.Validate(), b)
	}
	cfg.Notifications.RetryAttempts = MaxRetryAttempts
	assert.NoError(t, cfg.Validate())
}
