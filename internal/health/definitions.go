package health

import (
	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/models"
)

// Arabic display names
const (
	nameArDatabaseConnection  = "قاعدة البيانات - الاتصال"
	nameArDatabasePerformance = "قاعدة البيانات - الأداء"
	nameArMemoryUsage         = "استخدام الذاكرة"
	nameArSystemLiveness      = "حالة النظام"
)

// DefaultDefinitions returns the four built-in checks with thresholds from cfg
func DefaultDefinitions(cfg config.HealthCheckConfig) []models.HealthCheckDefinition {
	return []models.HealthCheckDefinition{
		{
			Name:   models.CheckDatabaseConnection,
			NameAr: nameArDatabaseConnection,
			Type:   models.CheckTypeDatabase,
			Thresholds: models.Thresholds{
				Warning:  float64(cfg.DBConnectionWarning.Milliseconds()),
				Critical: float64(cfg.DBConnectionCritical.Milliseconds()),
				Unit:     "ms",
			},
			IsCritical: true,
		},
		{
			Name:   models.CheckDatabasePerformance,
			NameAr: nameArDatabasePerformance,
			Type:   models.CheckTypeDatabase,
			Thresholds: models.Thresholds{
				Warning:  float64(cfg.DBPerformanceWarning.Milliseconds()),
				Critical: float64(cfg.DBPerformanceCritical.Milliseconds()),
				Unit:     "ms",
			},
			IsCritical: false,
		},
		{
			Name:   models.CheckMemoryUsage,
			NameAr: nameArMemoryUsage,
			Type:   models.CheckTypeMemory,
			Thresholds: models.Thresholds{
				Warning:  cfg.MemoryWarningPercent,
				Critical: cfg.MemoryCriticalPercent,
				Unit:     "percent",
			},
			IsCritical: true,
		},
		{
			Name:       models.CheckSystemLiveness,
			NameAr:     nameArSystemLiveness,
			Type:       models.CheckTypeSystem,
			Thresholds: models.Thresholds{Unit: "seconds"},
			IsCritical: false,
		},
	}
}
