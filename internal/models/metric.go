package models

import "time"

// Metric categories
const (
	MetricCategoryMemory   = "memory"
	MetricCategoryRuntime  = "runtime"
	MetricCategoryDatabase = "database"
)

// PerformanceMetric is an append-only performance sample
type PerformanceMetric struct {
	ID             int64     `json:"id" db:"id"`
	MetricName     string    `json:"metric_name" db:"metric_name"`
	MetricCategory string    `json:"metric_category" db:"metric_category"`
	Value          float64   `json:"value" db:"value"`
	Unit           string    `json:"unit" db:"unit"`
	Source         string    `json:"source" db:"source"`
	Timestamp      time.Time `json:"timestamp" db:"timestamp"`
}
