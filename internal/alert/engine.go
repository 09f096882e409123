package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/internal/notification"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// Store is the persistence surface the engine writes to
type Store interface {
	UpsertHealthCheck(ctx context.Context, check *models.SystemHealthCheck) error
	InsertPerformanceMetrics(ctx context.Context, metrics []*models.PerformanceMetric) error
	DeletePerformanceMetricsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	InsertAlert(ctx context.Context, alert *models.SystemAlert) error
	GetOverdueOrderCount(ctx context.Context, asOf time.Time) (int64, error)
	GetLowStockItemCount(ctx context.Context) (int64, error)
}

// Status is a snapshot of the engine state
type Status struct {
	LastKnownStatus    map[string]models.HealthCheckResult `json:"last_known_status"`
	Degraded           bool                                `json:"degraded"`
	LastPersistError   string                              `json:"last_persist_error,omitempty"`
	LastPersistErrorAt *time.Time                          `json:"last_persist_error_at,omitempty"`
	AlertsCreated      uint64                              `json:"alerts_created"`
	AlertsSuppressed   uint64                              `json:"alerts_suppressed"`
}

// Engine turns health results and domain signals into alerts
type Engine struct {
	store         Store
	dispatcher    notification.Dispatcher
	learning      LearningRecorder
	cfg           config.AlertConfig
	now           func() time.Time
	sampleMetrics MetricSampler
	metrics       *metrics.Manager
	logger        *logrus.Entry

	mu                 sync.RWMutex
	definitions        map[string]models.HealthCheckDefinition
	rules              []models.AlertRule
	lastStatus         map[string]models.HealthCheckResult
	lastAlertAt        map[string]time.Time
	degraded           bool
	lastPersistError   string
	lastPersistErrorAt time.Time
	alertsCreated      uint64
	alertsSuppressed   uint64
}

// Option configures an Engine
type Option func(*Engine)

// WithLearningRecorder sets the recorder that receives created alerts
func WithLearningRecorder(r LearningRecorder) Option {
	return func(e *Engine) { e.learning = r }
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetricSampler replaces the performance sampler
func WithMetricSampler(s MetricSampler) Option {
	return func(e *Engine) { e.sampleMetrics = s }
}

// WithMetrics records alert activity in Prometheus
func WithMetrics(m *metrics.Manager) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an alert engine
func NewEngine(store Store, dispatcher notification.Dispatcher, cfg config.AlertConfig, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		dispatcher:    dispatcher,
		learning:      NopLearningRecorder{},
		cfg:           cfg,
		now:           time.Now,
		sampleMetrics: SampleRuntimeMetrics,
		logger:        utils.ComponentLogger("alert_engine"),
		definitions:   make(map[string]models.HealthCheckDefinition),
		lastStatus:    make(map[string]models.HealthCheckResult),
		lastAlertAt:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.NotifyConcurrency <= 0 {
		e.cfg.NotifyConcurrency = 8
	}
	return e
}

// LoadRules replaces the performance alert rules
func (e *Engine) LoadRules(rules []models.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]models.AlertRule(nil), rules...)

	enabled := 0
	for _, r := range rules {
		if r.Enabled {
			enabled++
		}
	}
	e.logger.WithFields(logrus.Fields{"rules": len(rules), "enabled": enabled}).Info("Alert rules loaded")
}

// RegisterDefinitions records the check definitions and writes one row per
// check with status unknown.
func (e *Engine) RegisterDefinitions(ctx context.Context, defs []models.HealthCheckDefinition) error {
	e.mu.Lock()
	for _, def := range defs {
		e.definitions[def.Name] = def
	}
	e.mu.Unlock()

	var errs []error
	for _, def := range defs {
		def := def
		row := models.NewSystemHealthCheck(&models.HealthCheckResult{
			CheckName:   def.Name,
			CheckNameAr: def.NameAr,
			Status:      models.HealthStatusUnknown,
			CheckedAt:   e.now(),
		}, &def)
		if err := e.persist(ctx, "upsert_health_check", func() error {
			return e.store.UpsertHealthCheck(ctx, row)
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProcessHealthCheckResult persists the result, raises an alert for warning
// and critical results, and updates the last-known-status cache. The cache
// is updated even when the durable write fails.
func (e *Engine) ProcessHealthCheckResult(ctx context.Context, result *models.HealthCheckResult) error {
	if result == nil {
		return nil
	}

	e.mu.RLock()
	def, hasDef := e.definitions[result.CheckName]
	e.mu.RUnlock()

	var defPtr *models.HealthCheckDefinition
	if hasDef {
		defPtr = &def
	}
	row := models.NewSystemHealthCheck(result, defPtr)

	var errs []error
	if err := e.persist(ctx, "upsert_health_check", func() error {
		return e.store.UpsertHealthCheck(ctx, row)
	}); err != nil {
		errs = append(errs, err)
	}

	if result.Status.NeedsAttention() {
		if err := e.CreateSystemAlert(ctx, e.buildHealthAlert(result, row.CheckNameAr)); err != nil {
			errs = append(errs, err)
		}
	}

	e.mu.Lock()
	e.lastStatus[result.CheckName] = copyResult(*result)
	e.mu.Unlock()

	return errors.Join(errs...)
}

func (e *Engine) buildHealthAlert(result *models.HealthCheckResult, nameAr string) *models.SystemAlert {
	severity := models.SeverityMedium
	if result.Status == models.HealthStatusCritical {
		severity = models.SeverityCritical
	}

	message := fmt.Sprintf("%s check reported %s status after %dms", result.CheckName, result.Status, result.DurationMs)
	messageAr := fmt.Sprintf("فحص %s أبلغ عن حالة %s خلال %d مللي ثانية", nameAr, statusLabelAr(result.Status), result.DurationMs)
	if result.Error != "" {
		message += ": " + result.Error
		messageAr += ": " + result.Error
	}

	contextData := map[string]interface{}{
		"check_name":  result.CheckName,
		"status":      string(result.Status),
		"duration_ms": result.DurationMs,
	}
	if len(result.Details) > 0 {
		contextData["details"] = result.Details
	}
	if result.Error != "" {
		contextData["error"] = result.Error
	}

	return &models.SystemAlert{
		Title:            "System Health Alert: " + result.CheckName,
		TitleAr:          "تنبيه صحة النظام: " + nameAr,
		Message:          message,
		MessageAr:        messageAr,
		Type:             models.AlertTypeSystem,
		Category:         categoryForStatus(result.Status),
		Severity:         severity,
		Source:           SourceHealthCheck,
		SourceID:         result.CheckName,
		ContextData:      contextData,
		SuggestedActions: SuggestedActionsFor(result.CheckName),
		TargetRoles:      []int64{models.RoleAdmin, models.RoleManager},
		RequiresAction:   severity == models.SeverityCritical,
	}
}

// PerformMonitoring runs the coarse monitoring steps in order. A failing
// step is logged and does not stop the ones after it.
func (e *Engine) PerformMonitoring(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"performance_sampling", e.samplePerformance},
		{"production_check", e.checkProduction},
		{"inventory_check", e.checkInventory},
		{"retention_cleanup", e.cleanupMetrics},
	}

	var errs []error
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			e.logger.WithError(err).WithField("step", step.name).Error("Monitoring step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) samplePerformance(ctx context.Context) error {
	samples, err := e.sampleMetrics(ctx, e.now())
	if err != nil {
		return utils.NewAppError(utils.ErrCodeProbe, "Failed to sample performance metrics", err.Error())
	}

	var errs []error
	if err := e.persist(ctx, "insert_metrics", func() error {
		return e.store.InsertPerformanceMetrics(ctx, samples)
	}); err != nil {
		errs = append(errs, err)
	}

	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	for _, b := range EvaluateRules(rules, samples) {
		if err := e.CreateSystemAlert(ctx, buildRuleAlert(b)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildRuleAlert(b Breach) *models.SystemAlert {
	severity := b.Rule.Severity
	if _, ok := models.ParseSeverity(string(severity)); !ok {
		severity = models.SeverityMedium
	}
	name := b.Rule.Name
	if name == "" {
		name = b.Rule.MetricName
	}

	return &models.SystemAlert{
		Title:     "Performance Alert: " + name,
		TitleAr:   "تنبيه الأداء: " + name,
		Message:   fmt.Sprintf("%s is %.2f %s (rule: %s %.2f)", b.Sample.MetricName, b.Sample.Value, b.Sample.Unit, b.Rule.Operator, b.Rule.Threshold),
		MessageAr: fmt.Sprintf("قيمة %s هي %.2f %s", b.Sample.MetricName, b.Sample.Value, b.Sample.Unit),
		Type:      models.AlertTypeSystem,
		Category:  categoryForSeverity(severity),
		Severity:  severity,
		Source:    SourcePerformance,
		SourceID:  name,
		ContextData: map[string]interface{}{
			"metric_name": b.Sample.MetricName,
			"value":       b.Sample.Value,
			"unit":        b.Sample.Unit,
			"operator":    b.Rule.Operator,
			"threshold":   b.Rule.Threshold,
		},
		SuggestedActions: actionsForCategory(b.Sample.MetricCategory),
		TargetRoles:      []int64{models.RoleAdmin, models.RoleManager},
		RequiresAction:   RequiresAction(severity),
	}
}

func (e *Engine) checkProduction(ctx context.Context) error {
	count, err := e.store.GetOverdueOrderCount(ctx, e.now())
	if err != nil {
		return err
	}
	e.metrics.GetPrometheusMetrics().UpdateDomainSignal("overdue_orders", count)
	if count == 0 {
		return nil
	}

	return e.CreateSystemAlert(ctx, &models.SystemAlert{
		Title:       "Overdue Orders",
		TitleAr:     "طلبات متأخرة",
		Message:     fmt.Sprintf("%d orders are past their delivery date", count),
		MessageAr:   fmt.Sprintf("%d طلبات تجاوزت تاريخ التسليم", count),
		Type:        models.AlertTypeProduction,
		Category:    models.AlertCategoryWarning,
		Severity:    models.SeverityMedium,
		Source:      SourceProduction,
		SourceID:    "overdue_orders",
		ContextData: map[string]interface{}{"overdue_count": count},
		SuggestedActions: []models.SuggestedAction{
			{Action: "review_production_schedule", Priority: 1, Description: "Reprioritize the production schedule for late orders"},
			{Action: "notify_customers", Priority: 2, Description: "Inform affected customers about new delivery dates"},
		},
		TargetRoles:    []int64{models.RoleManager, models.RoleProductionSupervisor},
		RequiresAction: RequiresAction(models.SeverityMedium),
	})
}

func (e *Engine) checkInventory(ctx context.Context) error {
	count, err := e.store.GetLowStockItemCount(ctx)
	if err != nil {
		return err
	}
	e.metrics.GetPrometheusMetrics().UpdateDomainSignal("low_stock_items", count)
	if count == 0 {
		return nil
	}

	return e.CreateSystemAlert(ctx, &models.SystemAlert{
		Title:       "Low Stock Items",
		TitleAr:     "مخزون منخفض",
		Message:     fmt.Sprintf("%d inventory items are at or below their minimum stock", count),
		MessageAr:   fmt.Sprintf("%d أصناف وصلت إلى الحد الأدنى للمخزون أو أقل", count),
		Type:        models.AlertTypeInventory,
		Category:    models.AlertCategoryWarning,
		Severity:    models.SeverityMedium,
		Source:      SourceInventory,
		SourceID:    "low_stock",
		ContextData: map[string]interface{}{"low_stock_count": count},
		SuggestedActions: []models.SuggestedAction{
			{Action: "create_purchase_order", Priority: 1, Description: "Reorder the affected materials"},
			{Action: "review_min_stock_levels", Priority: 3, Description: "Check that minimum stock levels are still accurate"},
		},
		TargetRoles:    []int64{models.RoleManager, models.RoleWarehouseKeeper},
		RequiresAction: RequiresAction(models.SeverityMedium),
	})
}

func (e *Engine) cleanupMetrics(ctx context.Context) error {
	cutoff := e.now().Add(-e.cfg.MetricsRetention)
	deleted, err := e.store.DeletePerformanceMetricsOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		e.logger.WithFields(logrus.Fields{
			"deleted": deleted,
			"cutoff":  cutoff,
		}).Info("Purged old performance metrics")
	}
	return nil
}

// CreateSystemAlert inserts the alert and dispatches its notifications.
// Delivery failures are logged and never undo the insert.
func (e *Engine) CreateSystemAlert(ctx context.Context, alert *models.SystemAlert) error {
	if e.suppressed(alert) {
		e.logger.WithFields(logrus.Fields{
			"source":    alert.Source,
			"source_id": alert.SourceID,
			"severity":  alert.Severity,
		}).Info("Alert suppressed by cooldown")
		e.metrics.GetPrometheusMetrics().RecordAlertSuppressed(alert.Source)
		return nil
	}

	if alert.ID == "" {
		alert.ID = utils.GenerateID()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = e.now()
	}
	alert.NotificationSent = false

	insertErr := e.persist(ctx, "insert_alert", func() error {
		return e.store.InsertAlert(ctx, alert)
	})

	if insertErr == nil {
		e.mu.Lock()
		e.alertsCreated++
		e.mu.Unlock()
		e.metrics.GetPrometheusMetrics().RecordAlertCreated(string(alert.Type), string(alert.Severity))
	}

	e.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"type":     alert.Type,
		"severity": alert.Severity,
		"source":   alert.Source,
	}).Info("System alert created")

	if err := e.learning.RecordAlert(ctx, alert); err != nil {
		e.logger.WithError(err).WithField("alert_id", alert.ID).Warn("Learning recorder failed")
	}

	if err := e.SendAlertNotification(ctx, alert); err != nil {
		e.logger.WithError(err).WithField("alert_id", alert.ID).Warn("Some alert notifications failed")
	}

	return insertErr
}

// suppressed applies the cooldown window; a zero cooldown never suppresses
func (e *Engine) suppressed(alert *models.SystemAlert) bool {
	if e.cfg.Cooldown <= 0 {
		return false
	}
	key := alert.Source + "|" + alert.SourceID + "|" + string(alert.Severity)
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.lastAlertAt[key]; ok && now.Sub(last) < e.cfg.Cooldown {
		e.alertsSuppressed++
		return true
	}
	e.lastAlertAt[key] = now
	return false
}

// SendAlertNotification dispatches one notification per target role and
// per target user concurrently. Every dispatch runs even if others fail.
func (e *Engine) SendAlertNotification(ctx context.Context, alert *models.SystemAlert) error {
	if e.dispatcher == nil {
		return nil
	}

	payload := &models.NotificationPayload{
		Title:       alert.Title,
		Message:     alert.Message,
		Type:        string(alert.Type),
		Priority:    PriorityFor(alert.Severity),
		ContextType: models.ContextTypeSystemAlert,
		ContextID:   alert.ID,
		Sound:       alert.Severity == models.SeverityCritical,
		Icon:        IconFor(alert.Type),
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(recipientType string, id int64, err error) {
		if err == nil {
			return
		}
		e.logger.WithError(err).WithFields(logrus.Fields{
			"alert_id":       alert.ID,
			"recipient_type": recipientType,
			"recipient_id":   id,
		}).Error("Failed to dispatch alert notification")
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s %d: %w", recipientType, id, err))
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.NotifyConcurrency)

	for _, roleID := range alert.TargetRoles {
		roleID := roleID
		g.Go(func() error {
			record(models.RecipientTypeRole, roleID, e.dispatcher.SendToRole(ctx, roleID, payload))
			return nil
		})
	}
	for _, userID := range alert.TargetUsers {
		userID := userID
		g.Go(func() error {
			record(models.RecipientTypeUser, userID, e.dispatcher.SendToUser(ctx, userID, payload))
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// persist runs op, retrying once. A second failure puts the engine into
// degraded mode until the next successful write.
func (e *Engine) persist(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err != nil && ctx.Err() == nil {
		e.logger.WithError(err).WithField("operation", op).Warn("Persistence failed, retrying once")
		err = fn()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		if !e.degraded {
			e.logger.WithError(err).WithField("operation", op).Error("Persistence failed twice, entering degraded mode")
		}
		e.degraded = true
		e.lastPersistError = fmt.Sprintf("%s: %v", op, err)
		e.lastPersistErrorAt = e.now()
		e.metrics.GetPrometheusMetrics().SetPersistenceDegraded(true)
		return err
	}

	if e.degraded {
		e.logger.WithField("operation", op).Info("Persistence recovered, leaving degraded mode")
		e.degraded = false
		e.metrics.GetPrometheusMetrics().SetPersistenceDegraded(false)
	}
	return nil
}

// Status returns a copy of the engine state; safe to call mid-cycle
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Status{
		LastKnownStatus:  make(map[string]models.HealthCheckResult, len(e.lastStatus)),
		Degraded:         e.degraded,
		LastPersistError: e.lastPersistError,
		AlertsCreated:    e.alertsCreated,
		AlertsSuppressed: e.alertsSuppressed,
	}
	for name, r := range e.lastStatus {
		s.LastKnownStatus[name] = copyResult(r)
	}
	if !e.lastPersistErrorAt.IsZero() {
		t := e.lastPersistErrorAt
		s.LastPersistErrorAt = &t
	}
	return s
}

func copyResult(r models.HealthCheckResult) models.HealthCheckResult {
	if r.Details != nil {
		details := make(map[string]interface{}, len(r.Details))
		for k, v := range r.Details {
			details[k] = v
		}
		r.Details = details
	}
	return r
}
