// File: internal/notification/notification.go
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// Dispatcher delivers a notification payload to a role or a single user
type Dispatcher interface {
	SendToRole(ctx context.Context, roleID int64, payload *models.NotificationPayload) error
	SendToUser(ctx context.Context, userID int64, payload *models.NotificationPayload) error
}

// Sender is an external delivery channel
type Sender interface {
	Name() string
	Send(ctx context.Context, n *models.Notification) error
}

// Inbox persists in-app notifications
type Inbox interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
	UpdateNotificationStatus(ctx context.Context, id string, status string, errMsg *string) error
}

// Manager implements Dispatcher on top of the inbox and the enabled senders
type Manager struct {
	config  *config.NotificationConfig
	inbox   Inbox
	logger  *NotificationLogger
	metrics *metrics.Manager

	mu      sync.RWMutex
	running bool
	senders []Sender
	stats   *NotificationStats
}

// NotificationStats provides notification statistics
type NotificationStats struct {
	TotalNotificationsSent   uint64            `json:"total_notifications_sent"`
	TotalNotificationsFailed uint64            `json:"total_notifications_failed"`
	SentByChannel            map[string]uint64 `json:"sent_by_channel"`
	FailedByChannel          map[string]uint64 `json:"failed_by_channel"`
	AverageResponseTime      time.Duration     `json:"average_response_time"`
	ActiveChannels           []string          `json:"active_channels"`
	LastError                *string           `json:"last_error,omitempty"`
	LastErrorTime            *time.Time        `json:"last_error_time,omitempty"`
}

// NotificationHealth summarizes dispatcher health for the status endpoint
type NotificationHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

const inboxChannel = "inbox"

// NewManager creates a notification manager with the senders enabled in cfg.
// inbox may be nil, in which case notifications are only sent externally.
func NewManager(cfg *config.NotificationConfig, inbox Inbox, metricsManager *metrics.Manager) *Manager {
	m := &Manager{
		config:  cfg,
		inbox:   inbox,
		logger:  NewNotificationLogger(),
		metrics: metricsManager,
		stats: &NotificationStats{
			SentByChannel:   make(map[string]uint64),
			FailedByChannel: make(map[string]uint64),
		},
	}

	if cfg.Enabled {
		if cfg.Webhook.Enabled {
			m.senders = append(m.senders, NewWebhookSender(cfg, m.logger))
		}
		if cfg.Email.Enabled {
			m.senders = append(m.senders, NewEmailSender(cfg, m.logger))
		}
		if cfg.Slack.Enabled {
			m.senders = append(m.senders, NewSlackSender(cfg, m.logger))
		}
	}

	return m
}

// AddSender registers an additional delivery channel
func (m *Manager) AddSender(s Sender) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders = append(m.senders, s)
	m.logger.Info("Notification channel added", map[string]interface{}{"channel": s.Name()})
}

// Start marks the manager as accepting notifications
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Notification manager already running", "")
	}
	m.running = true

	names := make([]string, 0, len(m.senders))
	for _, s := range m.senders {
		names = append(names, s.Name())
	}
	m.logger.Info("Notification manager started", map[string]interface{}{"channels": names})
	return nil
}

// Stop stops the notification manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	m.logger.Info("Notification manager stopped")
	return nil
}

// SendToRole implements Dispatcher
func (m *Manager) SendToRole(ctx context.Context, roleID int64, payload *models.NotificationPayload) error {
	return m.deliver(ctx, models.RecipientTypeRole, roleID, payload)
}

// SendToUser implements Dispatcher
func (m *Manager) SendToUser(ctx context.Context, userID int64, payload *models.NotificationPayload) error {
	return m.deliver(ctx, models.RecipientTypeUser, userID, payload)
}

// deliver stores the inbox row and then tries every sender. A failing channel
// does not stop the others; all failures are joined into the returned error.
// Nothing is delivered unless the manager has been started.
func (m *Manager) deliver(ctx context.Context, recipientType string, recipientID int64, payload *models.NotificationPayload) error {
	if payload == nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Notification payload is required", "")
	}

	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if !running {
		return utils.NewAppError(utils.ErrCodeShutdown, "Notification manager is not running", "")
	}
	if m.config.NotificationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.NotificationTimeout)
		defer cancel()
	}

	p := *payload
	p.RecipientType = recipientType
	p.RecipientID = recipientID
	n := models.NewNotification(utils.GenerateID(), &p)

	m.logger.LogDeliveryAttempt(n.ID, recipientType, recipientID)

	var errs []error
	inboxSaved := false
	if m.inbox != nil {
		start := time.Now()
		err := m.inbox.SaveNotification(ctx, n)
		m.recordChannel(inboxChannel, recipientType, n.ID, start, err)
		if err != nil {
			errs = append(errs, err)
		} else {
			inboxSaved = true
		}
	}

	m.mu.RLock()
	senders := append([]Sender(nil), m.senders...)
	m.mu.RUnlock()

	var externalErrs []error
	for _, s := range senders {
		start := time.Now()
		err := s.Send(ctx, n)
		m.recordChannel(s.Name(), recipientType, n.ID, start, err)
		if err != nil {
			externalErrs = append(externalErrs, err)
		}
	}
	errs = append(errs, externalErrs...)

	if inboxSaved && len(senders) > 0 {
		status := "sent"
		var errMsg *string
		if len(externalErrs) > 0 {
			status = "failed"
			msg := errors.Join(externalErrs...).Error()
			errMsg = &msg
		}
		if err := m.inbox.UpdateNotificationStatus(ctx, n.ID, status, errMsg); err != nil {
			m.logger.Warn("Failed to update notification status", map[string]interface{}{
				"notification_id": n.ID,
				"error":           err.Error(),
			})
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) recordChannel(channel, recipientType, notificationID string, start time.Time, err error) {
	duration := time.Since(start)
	m.logger.LogDeliveryResult(notificationID, channel, duration, err)

	prom := m.metrics.GetPrometheusMetrics()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.stats.TotalNotificationsFailed++
		m.stats.FailedByChannel[channel]++
		errorStr := err.Error()
		m.stats.LastError = &errorStr
		now := time.Now()
		m.stats.LastErrorTime = &now
		prom.RecordNotificationFailure(channel, recipientType)
		return
	}

	m.stats.TotalNotificationsSent++
	m.stats.SentByChannel[channel]++
	if m.stats.TotalNotificationsSent == 1 {
		m.stats.AverageResponseTime = duration
	} else {
		m.stats.AverageResponseTime = (m.stats.AverageResponseTime + duration) / 2
	}
	prom.RecordNotificationSent(channel, recipientType, duration)
}

// GetStats returns a copy of the notification statistics
func (m *Manager) GetStats() *NotificationStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := *m.stats
	stats.SentByChannel = make(map[string]uint64, len(m.stats.SentByChannel))
	for k, v := range m.stats.SentByChannel {
		stats.SentByChannel[k] = v
	}
	stats.FailedByChannel = make(map[string]uint64, len(m.stats.FailedByChannel))
	for k, v := range m.stats.FailedByChannel {
		stats.FailedByChannel[k] = v
	}
	stats.ActiveChannels = make([]string, 0, len(m.senders)+1)
	if m.inbox != nil {
		stats.ActiveChannels = append(stats.ActiveChannels, inboxChannel)
	}
	for _, s := range m.senders {
		stats.ActiveChannels = append(stats.ActiveChannels, s.Name())
	}
	return &stats
}

// GetHealth reports whether the manager is running and its last error
func (m *Manager) GetHealth() *NotificationHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := &NotificationHealth{Healthy: m.running}
	if m.stats.LastError != nil {
		health.Error = *m.stats.LastError
	}
	return health
}
