// File: internal/notification/logger.go
package notification

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// NotificationLogger handles logging for notification operations
type NotificationLogger struct {
	entry   *logrus.Entry
	context map[string]interface{}
}

// NewNotificationLogger creates a new notification logger
func NewNotificationLogger() *NotificationLogger {
	return &NotificationLogger{
		entry:   utils.ComponentLogger("notification"),
		context: make(map[string]interface{}),
	}
}

// WithContext adds context to the logger
func (nl *NotificationLogger) WithContext(context map[string]interface{}) *NotificationLogger {
	newLogger := &NotificationLogger{
		entry:   nl.entry,
		context: make(map[string]interface{}, len(nl.context)+len(context)),
	}

	for k, v := range nl.context {
		newLogger.context[k] = v
	}
	for k, v := range context {
		newLogger.context[k] = v
	}

	return newLogger
}

// WithField adds a single field to the logger context
func (nl *NotificationLogger) WithField(key string, value interface{}) *NotificationLogger {
	return nl.WithContext(map[string]interface{}{key: value})
}

// Debug logs a debug message
func (nl *NotificationLogger) Debug(message string, context ...map[string]interface{}) {
	nl.log(logrus.DebugLevel, message, context...)
}

// Info logs an info message
func (nl *NotificationLogger) Info(message string, context ...map[string]interface{}) {
	nl.log(logrus.InfoLevel, message, context...)
}

// Warn logs a warning message
func (nl *NotificationLogger) Warn(message string, context ...map[string]interface{}) {
	nl.log(logrus.WarnLevel, message, context...)
}

// Error logs an error message
func (nl *NotificationLogger) Error(message string, context ...map[string]interface{}) {
	nl.log(logrus.ErrorLevel, message, context...)
}

func (nl *NotificationLogger) log(level logrus.Level, message string, context ...map[string]interface{}) {
	merged := make(logrus.Fields, len(nl.context))
	for k, v := range nl.context {
		merged[k] = v
	}
	for _, ctx := range context {
		for k, v := range ctx {
			merged[k] = v
		}
	}

	nl.entry.WithFields(merged).Log(level, message)
}

// LogDeliveryAttempt logs the start of a delivery to one recipient
func (nl *NotificationLogger) LogDeliveryAttempt(notificationID, recipientType string, recipientID int64) {
	nl.Debug("Notification delivery started", map[string]interface{}{
		"notification_id": notificationID,
		"recipient_type":  recipientType,
		"recipient_id":    recipientID,
	})
}

// LogDeliveryResult logs the outcome of a delivery on one channel
func (nl *NotificationLogger) LogDeliveryResult(notificationID, channel string, duration time.Duration, err error) {
	context := map[string]interface{}{
		"notification_id": notificationID,
		"channel":         channel,
		"duration_ms":     duration.Milliseconds(),
	}

	if err != nil {
		context["error"] = err.Error()
		nl.Error("Notification delivery failed", context)
	} else {
		nl.Debug("Notification delivered", context)
	}
}

// LogWebhookResponse logs a webhook response
func (nl *NotificationLogger) LogWebhookResponse(url string, statusCode int, duration time.Duration, err error) {
	context := map[string]interface{}{
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		context["error"] = err.Error()
		nl.Error("Webhook failed", context)
	} else {
		nl.Info("Webhook completed", context)
	}
}

// LogEmailResult logs an email result
func (nl *NotificationLogger) LogEmailResult(to []string, subject string, duration time.Duration, err error) {
	context := map[string]interface{}{
		"to":          strings.Join(to, ", "),
		"subject":     subject,
		"duration_ms": duration.Milliseconds(),
	}

	if err != nil {
		context["error"] = err.Error()
		nl.Error("Email failed", context)
	} else {
		nl.Info("Email sent successfully", context)
	}
}

// LogRetryAttempt logs a retry attempt
func (nl *NotificationLogger) LogRetryAttempt(operation string, attempt int, maxAttempts int, delay time.Duration) {
	nl.Warn("Retrying operation", map[string]interface{}{
		"operation":    operation,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
		"retry_delay":  delay.String(),
	})
}
