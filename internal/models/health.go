package models

import (
	"time"
)

// HealthStatus classifies the outcome of a health check
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
	HealthStatusUnknown  HealthStatus = "unknown"
)

// NeedsAttention reports whether the status should raise an alert.
func (s HealthStatus) NeedsAttention() bool {
	return s == HealthStatusCritical || s == HealthStatusWarning
}

// Check types
const (
	CheckTypeDatabase = "database"
	CheckTypeMemory   = "memory"
	CheckTypeSystem   = "system"
)

// Default check names
const (
	CheckDatabaseConnection  = "Database Connection"
	CheckDatabasePerformance = "Database Performance"
	CheckMemoryUsage         = "Memory Usage"
	CheckSystemLiveness      = "System Liveness"
)

// HealthCheckResult is produced by a probe once per cycle
type HealthCheckResult struct {
	CheckName   string                 `json:"check_name"`
	CheckNameAr string                 `json:"check_name_ar"`
	Status      HealthStatus           `json:"status"`
	DurationMs  int64                  `json:"duration_ms"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Error       string                 `json:"error,omitempty"`
	CheckedAt   time.Time              `json:"checked_at"`
}

// Thresholds are the static limits attached to a check definition
type Thresholds struct {
	Warning  float64 `json:"warning"`
	Critical float64 `json:"critical"`
	Unit     string  `json:"unit"`
}

// HealthCheckDefinition describes a check registered at startup
type HealthCheckDefinition struct {
	Name       string     `json:"name"`
	NameAr     string     `json:"name_ar"`
	Type       string     `json:"type"`
	Thresholds Thresholds `json:"thresholds"`
	IsCritical bool       `json:"is_critical"`
}

// SystemHealthCheck is the durable record for a named check, one row per name
type SystemHealthCheck struct {
	CheckName       string                 `json:"check_name" db:"check_name"`
	CheckNameAr     string                 `json:"check_name_ar" db:"check_name_ar"`
	CheckType       string                 `json:"check_type" db:"check_type"`
	Status          HealthStatus           `json:"status" db:"status"`
	LastCheckTime   time.Time              `json:"last_check_time" db:"last_check_time"`
	CheckDurationMs int64                  `json:"check_duration_ms" db:"check_duration_ms"`
	CheckDetails    map[string]interface{} `json:"check_details,omitempty" db:"check_details"`
	LastError       *string                `json:"last_error,omitempty" db:"last_error"`
	Thresholds      Thresholds             `json:"thresholds" db:"thresholds"`
	IsCritical      bool                   `json:"is_critical" db:"is_critical"`
}

// NewSystemHealthCheck builds the persisted row for a result, taking the
// static fields from def when it is non-nil.
func NewSystemHealthCheck(result *HealthCheckResult, def *HealthCheckDefinition) *SystemHealthCheck {
	row := &SystemHealthCheck{
		CheckName:       result.CheckName,
		CheckNameAr:     result.CheckNameAr,
		Status:          result.Status,
		LastCheckTime:   result.CheckedAt,
		CheckDurationMs: result.DurationMs,
		CheckDetails:    result.Details,
	}
	if row.LastCheckTime.IsZero() {
		row.LastCheckTime = time.Now()
	}
	if result.Error != "" {
		errMsg := result.Error
		row.LastError = &errMsg
	}
	if def != nil {
		row.CheckType = def.Type
		row.Thresholds = def.Thresholds
		row.IsCritical = def.IsCritical
		if row.CheckNameAr == "" {
			row.CheckNameAr = def.NameAr
		}
	}
	return row
}
