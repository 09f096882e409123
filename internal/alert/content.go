package alert

import (
	"strings"

	"github.com/smartdevs17/factory-monitor/internal/models"
)

// Alert sources
const (
	SourceHealthCheck = "health_check"
	SourcePerformance = "performance_monitor"
	SourceProduction  = "production_monitor"
	SourceInventory   = "inventory_monitor"
)

const defaultIcon = "🔔"

var typeIcons = map[models.AlertType]string{
	models.AlertTypeSystem:      "⚙️",
	models.AlertTypeProduction:  "🏭",
	models.AlertTypeQuality:     "🔍",
	models.AlertTypeInventory:   "📦",
	models.AlertTypeMaintenance: "🔧",
	models.AlertTypeSecurity:    "🔒",
}

// IconFor returns the glyph shown with notifications of the given type
func IconFor(t models.AlertType) string {
	if icon, ok := typeIcons[t]; ok {
		return icon
	}
	return defaultIcon
}

// PriorityFor maps alert severity to notification priority
func PriorityFor(s models.AlertSeverity) string {
	switch s {
	case models.SeverityCritical:
		return models.PriorityUrgent
	case models.SeverityHigh:
		return models.PriorityHigh
	default:
		return models.PriorityNormal
	}
}

// RequiresAction reports whether an alert of this severity needs a human
func RequiresAction(s models.AlertSeverity) bool {
	return s == models.SeverityCritical || s == models.SeverityHigh
}

var (
	databaseActions = []models.SuggestedAction{
		{Action: "check_database_connection", Priority: 1, Description: "Verify the database server is reachable and the connection pool is not exhausted"},
		{Action: "review_slow_queries", Priority: 2, Description: "Look for long running queries and missing indexes"},
	}
	memoryActions = []models.SuggestedAction{
		{Action: "restart_service", Priority: 1, Description: "Restart the application to release memory"},
		{Action: "investigate_memory_leak", Priority: 2, Description: "Capture a heap profile and look for growing allocations"},
	}
	genericActions = []models.SuggestedAction{
		{Action: "review_system_logs", Priority: 2, Description: "Check recent logs for errors around the alert time"},
		{Action: "contact_support", Priority: 3, Description: "Escalate to the system administrator"},
	}
)

// SuggestedActionsFor picks canned remediation steps by check name
func SuggestedActionsFor(checkName string) []models.SuggestedAction {
	var src []models.SuggestedAction
	switch {
	case strings.Contains(checkName, "Database"):
		src = databaseActions
	case strings.Contains(checkName, "Memory"):
		src = memoryActions
	default:
		src = genericActions
	}
	return append([]models.SuggestedAction(nil), src...)
}

func actionsForCategory(category string) []models.SuggestedAction {
	switch category {
	case models.MetricCategoryMemory:
		return SuggestedActionsFor("Memory")
	case models.MetricCategoryDatabase:
		return SuggestedActionsFor("Database")
	default:
		return SuggestedActionsFor("")
	}
}

func categoryForStatus(status models.HealthStatus) models.AlertCategory {
	if status == models.HealthStatusCritical {
		return models.AlertCategoryCritical
	}
	return models.AlertCategoryWarning
}

func categoryForSeverity(s models.AlertSeverity) models.AlertCategory {
	switch s {
	case models.SeverityCritical:
		return models.AlertCategoryCritical
	case models.SeverityHigh:
		return models.AlertCategoryError
	case models.SeverityLow:
		return models.AlertCategoryInfo
	default:
		return models.AlertCategoryWarning
	}
}

func statusLabelAr(status models.HealthStatus) string {
	switch status {
	case models.HealthStatusCritical:
		return "حرجة"
	case models.HealthStatusWarning:
		return "تحذير"
	default:
		return string(status)
	}
}
