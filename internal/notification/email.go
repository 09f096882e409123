// File: internal/notification/email.go
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

const defaultEmailTemplate = `{{.title}}

{{.message}}

Priority: {{.priority}}
Type: {{.type}}
Reference: {{.context_type}}/{{.context_id}}
Time: {{.created_at}}
`

// mailDialer is satisfied by *gomail.Dialer
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers notifications over SMTP to addresses from the directory
type EmailSender struct {
	from      string
	directory map[string][]string
	dialer    mailDialer
	logger    *NotificationLogger
}

// NewEmailSender creates a new email sender
func NewEmailSender(cfg *config.NotificationConfig, logger *NotificationLogger) *EmailSender {
	return &EmailSender{
		from:      cfg.Email.From,
		directory: cfg.Directory,
		dialer:    gomail.NewDialer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Username, cfg.Email.Password),
		logger:    logger.WithField("sender", "email"),
	}
}

// Name implements Sender
func (es *EmailSender) Name() string { return "email" }

// Send emails the notification to every address registered for its recipient
func (es *EmailSender) Send(ctx context.Context, n *models.Notification) error {
	to := es.recipients(n.RecipientType, n.RecipientID)
	if len(to) == 0 {
		es.logger.Debug("No email recipients for notification", map[string]interface{}{
			"recipient": directoryKey(n.RecipientType, n.RecipientID),
		})
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(n.Priority), n.Title)

	m := gomail.NewMessage()
	m.SetHeader("From", es.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", renderTemplate(defaultEmailTemplate, map[string]interface{}{
		"title":        n.Title,
		"message":      n.Message,
		"priority":     n.Priority,
		"type":         n.Type,
		"context_type": n.ContextType,
		"context_id":   n.ContextID,
		"created_at":   n.CreatedAt.Format(time.RFC3339),
	}))

	start := time.Now()
	err := es.dialer.DialAndSend(m)
	es.logger.LogEmailResult(to, subject, time.Since(start), err)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeExternal, "Failed to send email", err.Error())
	}
	return nil
}

func (es *EmailSender) recipients(recipientType string, recipientID int64) []string {
	return es.directory[directoryKey(recipientType, recipientID)]
}

// directoryKey formats the lookup key used by the recipient directory, e.g. "role:1"
func directoryKey(recipientType string, recipientID int64) string {
	return fmt.Sprintf("%s:%d", recipientType, recipientID)
}

// renderTemplate replaces {{.key}} placeholders with values from data
func renderTemplate(templateStr string, data map[string]interface{}) string {
	content := templateStr
	for key, value := range data {
		content = strings.ReplaceAll(content, "{{."+key+"}}", fmt.Sprintf("%v", value))
	}
	return content
}
