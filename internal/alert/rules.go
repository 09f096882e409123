package alert

import (
	"github.com/smartdevs17/factory-monitor/internal/models"
)

// Breach is a rule that matched a sample
type Breach struct {
	Rule   models.AlertRule
	Sample *models.PerformanceMetric
}

// Matches reports whether value satisfies the rule condition
func Matches(rule models.AlertRule, value float64) bool {
	switch rule.Operator {
	case "gt":
		return value > rule.Threshold
	case "gte":
		return value >= rule.Threshold
	case "lt":
		return value < rule.Threshold
	case "lte":
		return value <= rule.Threshold
	default:
		return false
	}
}

// EvaluateRules returns every enabled rule breached by the samples
func EvaluateRules(rules []models.AlertRule, samples []*models.PerformanceMetric) []Breach {
	var breaches []Breach
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		for _, sample := range samples {
			if sample.MetricName == rule.MetricName && Matches(rule, sample.Value) {
				breaches = append(breaches, Breach{Rule: rule, Sample: sample})
			}
		}
	}
	return breaches
}
