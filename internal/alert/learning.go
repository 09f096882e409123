package alert

import (
	"context"

	"github.com/smartdevs17/factory-monitor/internal/models"
)

// LearningRecorder receives every alert the engine creates
type LearningRecorder interface {
	RecordAlert(ctx context.Context, alert *models.SystemAlert) error
}

// NopLearningRecorder discards alerts
type NopLearningRecorder struct{}

// RecordAlert implements LearningRecorder
func (NopLearningRecorder) RecordAlert(context.Context, *models.SystemAlert) error { return nil }
