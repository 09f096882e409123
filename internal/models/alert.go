package models

import (
	"time"
)

// AlertType groups alerts by the part of the factory they concern
type AlertType string

const (
	AlertTypeSystem      AlertType = "system"
	AlertTypeProduction  AlertType = "production"
	AlertTypeQuality     AlertType = "quality"
	AlertTypeInventory   AlertType = "inventory"
	AlertTypeMaintenance AlertType = "maintenance"
	AlertTypeSecurity    AlertType = "security"
)

// AlertCategory drives iconography and grouping
type AlertCategory string

const (
	AlertCategoryWarning  AlertCategory = "warning"
	AlertCategoryError    AlertCategory = "error"
	AlertCategoryCritical AlertCategory = "critical"
	AlertCategoryInfo     AlertCategory = "info"
	AlertCategorySuccess  AlertCategory = "success"
)

// AlertSeverity drives notification priority
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// ParseSeverity converts a configuration string to a severity.
func ParseSeverity(s string) (AlertSeverity, bool) {
	switch AlertSeverity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return AlertSeverity(s), true
	}
	return "", false
}

// Role identifiers used for alert targeting
const (
	RoleAdmin                int64 = 1
	RoleManager              int64 = 2
	RoleProductionSupervisor int64 = 3
	RoleWarehouseKeeper      int64 = 4
)

// SuggestedAction is a canned remediation attached to an alert
type SuggestedAction struct {
	Action      string `json:"action"`
	Priority    int    `json:"priority"`
	Description string `json:"description,omitempty"`
}

// SystemAlert is an append-only alert record
type SystemAlert struct {
	ID               string                 `json:"id" db:"id"`
	Title            string                 `json:"title" db:"title"`
	TitleAr          string                 `json:"title_ar" db:"title_ar"`
	Message          string                 `json:"message" db:"message"`
	MessageAr        string                 `json:"message_ar" db:"message_ar"`
	Type             AlertType              `json:"type" db:"type"`
	Category         AlertCategory          `json:"category" db:"category"`
	Severity         AlertSeverity          `json:"severity" db:"severity"`
	Source           string                 `json:"source" db:"source"`
	SourceID         string                 `json:"source_id" db:"source_id"`
	ContextData      map[string]interface{} `json:"context_data,omitempty" db:"context_data"`
	SuggestedActions []SuggestedAction      `json:"suggested_actions,omitempty" db:"suggested_actions"`
	TargetUsers      []int64                `json:"target_users" db:"target_users"`
	TargetRoles      []int64                `json:"target_roles" db:"target_roles"`
	RequiresAction   bool                   `json:"requires_action" db:"requires_action"`
	NotificationSent bool                   `json:"notification_sent" db:"notification_sent"`
	CreatedAt        time.Time              `json:"created_at" db:"created_at"`
}

// AlertFilter narrows alert listings
type AlertFilter struct {
	Type     *AlertType     `json:"type,omitempty"`
	Severity *AlertSeverity `json:"severity,omitempty"`
	Source   *string        `json:"source,omitempty"`
	Since    *time.Time     `json:"since,omitempty"`
	Limit    int            `json:"limit,omitempty"`
}

// AlertRule maps a metric condition to a severity
type AlertRule struct {
	Name       string        `json:"name" mapstructure:"name"`
	MetricName string        `json:"metric_name" mapstructure:"metric_name"`
	Operator   string        `json:"operator" mapstructure:"operator"` // gt, gte, lt, lte
	Threshold  float64       `json:"threshold" mapstructure:"threshold"`
	Severity   AlertSeverity `json:"severity" mapstructure:"severity"`
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
}
