// File: internal/notification/slack.go
package notification

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

// slackPoster is satisfied by *slack.Client
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackSender posts notifications to a Slack channel
type SlackSender struct {
	channel string
	client  slackPoster
	logger  *NotificationLogger
}

// NewSlackSender creates a new Slack sender
func NewSlackSender(cfg *config.NotificationConfig, logger *NotificationLogger) *SlackSender {
	return &SlackSender{
		channel: cfg.Slack.Channel,
		client:  slack.New(cfg.Slack.Token),
		logger:  logger.WithField("sender", "slack"),
	}
}

// Name implements Sender
func (ss *SlackSender) Name() string { return "slack" }

// Send posts the notification as a colored attachment
func (ss *SlackSender) Send(ctx context.Context, n *models.Notification) error {
	attachment := slack.Attachment{
		Color:   priorityColor(n.Priority),
		Pretext: n.Icon + " " + n.Title,
		Text:    n.Message,
		Fields: []slack.AttachmentField{
			{Title: "Priority", Value: n.Priority, Short: true},
			{Title: "Recipient", Value: directoryKey(n.RecipientType, n.RecipientID), Short: true},
			{Title: "Type", Value: n.Type, Short: true},
			{Title: "Reference", Value: n.ContextID, Short: true},
		},
		Footer: "Factory Monitor",
		Ts:     json.Number(strconv.FormatInt(n.CreatedAt.Unix(), 10)),
	}

	start := time.Now()
	_, _, err := ss.client.PostMessageContext(ctx, ss.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		ss.logger.Error("Slack post failed", map[string]interface{}{
			"channel":     ss.channel,
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return utils.NewAppError(utils.ErrCodeExternal, "Failed to post Slack message", err.Error())
	}
	return nil
}

func priorityColor(priority string) string {
	switch priority {
	case models.PriorityUrgent:
		return "danger"
	case models.PriorityHigh:
		return "warning"
	default:
		return "good"
	}
}
