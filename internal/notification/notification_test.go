package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

func testPayload() *models.NotificationPayload {
	return &models.NotificationPayload{
		Title:       "System Health Alert: Database Connection",
		Message:     "Database Connection check reported critical status after 7000ms",
		Type:        "system",
		Priority:    models.PriorityUrgent,
		ContextType: models.ContextTypeSystemAlert,
		ContextID:   "alert-1",
		Sound:       true,
		Icon:        "⚙️",
	}
}

func testNotification() *models.Notification {
	p := testPayload()
	p.RecipientType = models.RecipientTypeRole
	p.RecipientID = models.RoleAdmin
	return models.NewNotification(utils.GenerateID(), p)
}

type fakeInbox struct {
	mu       sync.Mutex
	saved    []*models.Notification
	statuses map[string]string
	errors   map[string]string
	saveErr  error
}

func newFakeInbox() *fakeInbox {
	return &fakeInbox{statuses: map[string]string{}, errors: map[string]string{}}
}

func (f *fakeInbox) SaveNotification(ctx context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, n)
	f.statuses[n.ID] = n.Status
	return nil
}

func (f *fakeInbox) UpdateNotificationStatus(ctx context.Context, id string, status string, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	if errMsg != nil {
		f.errors[id] = *errMsg
	}
	return nil
}

type fakeSender struct {
	name string
	err  error
	sent atomic.Int32
	last *models.Notification
}

func (s *fakeSender) Name() string { return s.name }

func (s *fakeSender) Send(ctx context.Context, n *models.Notification) error {
	s.sent.Add(1)
	s.last = n
	return s.err
}

type fakeDialer struct {
	messages []*gomail.Message
	err      error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.messages = append(d.messages, m...)
	return d.err
}

type fakePoster struct {
	channel string
	calls   int
	err     error
}

func (p *fakePoster) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	p.channel = channelID
	p.calls++
	return channelID, "1700000000.000100", p.err
}

func newTestManager(inbox Inbox, senders ...Sender) *Manager {
	utils.InitLogger("info", "text", "stdout", "")
	cfg := config.Default().Notifications
	m := NewManager(&cfg, inbox, metrics.NewManager())
	for _, s := range senders {
		m.AddSender(s)
	}
	m.Start(context.Background())
	return m
}

func TestManagerDelivery(t *testing.T) {
	t.Run("stores inbox row and calls every sender", func(t *testing.T) {
		inbox := newFakeInbox()
		ok := &fakeSender{name: "ok"}
		m := newTestManager(inbox, ok)

		require.NoError(t, m.SendToRole(context.Background(), models.RoleManager, testPayload()))

		require.Len(t, inbox.saved, 1)
		n := inbox.saved[0]
		assert.Equal(t, models.RecipientTypeRole, n.RecipientType)
		assert.Equal(t, models.RoleManager, n.RecipientID)
		assert.Equal(t, "alert-1", n.ContextID)
		assert.True(t, n.Sound)
		assert.Equal(t, "sent", inbox.statuses[n.ID])
		assert.Equal(t, int32(1), ok.sent.Load())
		assert.Equal(t, n.ID, ok.last.ID)

		stats := m.GetStats()
		assert.Equal(t, uint64(2), stats.TotalNotificationsSent)
		assert.Equal(t, uint64(1), stats.SentByChannel["inbox"])
		assert.Equal(t, []string{"inbox", "ok"}, stats.ActiveChannels)
	})

	t.Run("failing channel does not stop the others", func(t *testing.T) {
		inbox := newFakeInbox()
		broken := &fakeSender{name: "broken", err: errors.New("connection reset")}
		ok := &fakeSender{name: "ok"}
		m := newTestManager(inbox, broken, ok)

		err := m.SendToUser(context.Background(), 7, testPayload())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection reset")

		assert.Equal(t, int32(1), ok.sent.Load())
		require.Len(t, inbox.saved, 1)
		id := inbox.saved[0].ID
		assert.Equal(t, models.RecipientTypeUser, inbox.saved[0].RecipientType)
		assert.Equal(t, "failed", inbox.statuses[id])
		assert.Contains(t, inbox.errors[id], "connection reset")

		stats := m.GetStats()
		assert.Equal(t, uint64(1), stats.FailedByChannel["broken"])
		require.NotNil(t, stats.LastError)
		assert.Equal(t, "connection reset", m.GetHealth().Error)
	})

	t.Run("inbox failure still reaches external channels", func(t *testing.T) {
		inbox := newFakeInbox()
		inbox.saveErr = errors.New("database is locked")
		ok := &fakeSender{name: "ok"}
		m := newTestManager(inbox, ok)

		err := m.SendToRole(context.Background(), models.RoleAdmin, testPayload())
		require.Error(t, err)
		assert.Equal(t, int32(1), ok.sent.Load())
	})

	t.Run("inbox only leaves status pending", func(t *testing.T) {
		inbox := newFakeInbox()
		m := newTestManager(inbox)

		require.NoError(t, m.SendToRole(context.Background(), models.RoleAdmin, testPayload()))
		require.Len(t, inbox.saved, 1)
		assert.Equal(t, "pending", inbox.statuses[inbox.saved[0].ID])
	})

	t.Run("payload is not mutated", func(t *testing.T) {
		m := newTestManager(newFakeInbox())
		p := testPayload()

		require.NoError(t, m.SendToRole(context.Background(), models.RoleAdmin, p))
		assert.Empty(t, p.RecipientType)
		assert.Zero(t, p.RecipientID)
	})

	t.Run("nil payload is rejected", func(t *testing.T) {
		m := newTestManager(newFakeInbox())
		err := m.SendToRole(context.Background(), models.RoleAdmin, nil)
		assert.True(t, utils.HasCode(err, utils.ErrCodeValidation))
	})
}

func TestManagerLifecycle(t *testing.T) {
	utils.InitLogger("info", "text", "stdout", "")
	cfg := config.Default().Notifications
	inbox := newFakeInbox()
	ok := &fakeSender{name: "ok"}
	m := NewManager(&cfg, inbox, nil)
	m.AddSender(ok)

	assert.False(t, m.GetHealth().Healthy)
	err := m.SendToRole(context.Background(), models.RoleAdmin, testPayload())
	assert.True(t, utils.HasCode(err, utils.ErrCodeShutdown))

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.GetHealth().Healthy)
	assert.Error(t, m.Start(context.Background()))
	require.NoError(t, m.SendToRole(context.Background(), models.RoleAdmin, testPayload()))

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	assert.False(t, m.GetHealth().Healthy)

	err = m.SendToUser(context.Background(), 7, testPayload())
	assert.True(t, utils.HasCode(err, utils.ErrCodeShutdown))
	assert.Len(t, inbox.saved, 1)
	assert.Equal(t, int32(1), ok.sent.Load())
}

func TestNewManagerChannels(t *testing.T) {
	utils.InitLogger("info", "text", "stdout", "")
	cfg := config.Default().Notifications
	cfg.Webhook = config.WebhookConfig{Enabled: true, URL: "http://localhost:9/hook"}
	cfg.Email = config.EmailConfig{Enabled: true, SMTPHost: "localhost", SMTPPort: 25, From: "monitor@factory.example"}
	cfg.Slack = config.SlackConfig{Enabled: true, Token: "xoxb-test", Channel: "#alerts"}

	m := NewManager(&cfg, nil, nil)
	assert.Equal(t, []string{"webhook", "email", "slack"}, m.GetStats().ActiveChannels)

	cfg.Enabled = false
	m = NewManager(&cfg, nil, nil)
	assert.Empty(t, m.GetStats().ActiveChannels)
}

func TestWebhookSender(t *testing.T) {
	utils.InitLogger("info", "text", "stdout", "")

	t.Run("retries until success", func(t *testing.T) {
		var hits atomic.Int32
		var received WebhookPayload
		var mu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
			mu.Lock()
			json.NewDecoder(r.Body).Decode(&received)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cfg := config.Default().Notifications
		cfg.Webhook = config.WebhookConfig{Enabled: true, URL: srv.URL, Headers: map[string]string{"X-Api-Key": "secret"}}
		cfg.RetryAttempts = 3
		cfg.RetryDelay = time.Millisecond

		ws := NewWebhookSender(&cfg, NewNotificationLogger())
		n := testNotification()
		require.NoError(t, ws.Send(context.Background(), n))
		assert.Equal(t, int32(2), hits.Load())

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, n.ID, received.ID)
		assert.Equal(t, "factory-monitor", received.Source)
		require.NotNil(t, received.Data)
		assert.Equal(t, n.Title, received.Data.Title)
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		cfg := config.Default().Notifications
		cfg.Webhook = config.WebhookConfig{Enabled: true, URL: srv.URL}
		cfg.RetryAttempts = 2
		cfg.RetryDelay = time.Millisecond

		err := NewWebhookSender(&cfg, NewNotificationLogger()).Send(context.Background(), testNotification())
		require.Error(t, err)
		assert.True(t, utils.HasCode(err, utils.ErrCodeExternal))
		assert.Equal(t, int32(2), hits.Load())
	})

	t.Run("zero retry attempts still sends once", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		}))
		defer srv.Close()

		cfg := config.Default().Notifications
		cfg.Webhook = config.WebhookConfig{Enabled: true, URL: srv.URL}
		cfg.RetryAttempts = 0

		require.NoError(t, NewWebhookSender(&cfg, NewNotificationLogger()).Send(context.Background(), testNotification()))
		assert.Equal(t, int32(1), hits.Load())
	})
}

func TestCalculateRetryDelay(t *testing.T) {
	exp := &WebhookRetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second, Backoff: "exponential"}
	assert.Equal(t, time.Second, calculateRetryDelay(exp, 2))
	assert.Equal(t, 2*time.Second, calculateRetryDelay(exp, 3))
	assert.Equal(t, 4*time.Second, calculateRetryDelay(exp, 4))
	assert.Equal(t, 5*time.Second, calculateRetryDelay(exp, 5))

	lin := &WebhookRetryConfig{BaseDelay: time.Second, MaxDelay: time.Minute, Backoff: "linear"}
	assert.Equal(t, 3*time.Second, calculateRetryDelay(lin, 4))

	fixed := &WebhookRetryConfig{BaseDelay: time.Second, MaxDelay: time.Minute}
	assert.Equal(t, time.Second, calculateRetryDelay(fixed, 6))

	// Large attempt numbers saturate instead of wrapping negative
	long := &WebhookRetryConfig{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Backoff: "exponential"}
	assert.Equal(t, 30*time.Second, calculateRetryDelay(long, 70))
	assert.Equal(t, 30*time.Second, calculateRetryDelay(long, 1000))
}

func TestWebhookBackoffFromConfig(t *testing.T) {
	cfg := config.Default().Notifications
	cfg.RetryDelay = time.Second

	rc := NewWebhookSender(&cfg, NewNotificationLogger()).retryConfig()
	assert.Equal(t, "exponential", rc.Backoff)
	assert.Equal(t, 4*time.Second, calculateRetryDelay(rc, 4))

	cfg.RetryBackoff = "linear"
	rc = NewWebhookSender(&cfg, NewNotificationLogger()).retryConfig()
	assert.Equal(t, 3*time.Second, calculateRetryDelay(rc, 4))

	cfg.RetryBackoff = "fixed"
	rc = NewWebhookSender(&cfg, NewNotificationLogger()).retryConfig()
	assert.Equal(t, time.Second, calculateRetryDelay(rc, 4))

	cfg.RetryBackoff = ""
	cfg.RetryAttempts = 0
	rc = NewWebhookSender(&cfg, NewNotificationLogger()).retryConfig()
	assert.Equal(t, "exponential", rc.Backoff)
	assert.Equal(t, 1, rc.MaxAttempts)
}

func TestEmailSender(t *testing.T) {
	utils.InitLogger("info", "text", "stdout", "")
	dialer := &fakeDialer{}
	es := &EmailSender{
		from: "monitor@factory.example",
		directory: map[string][]string{
			"role:1": {"admin@factory.example", "ops@factory.example"},
		},
		dialer: dialer,
		logger: NewNotificationLogger(),
	}

	require.NoError(t, es.Send(context.Background(), testNotification()))
	require.Len(t, dialer.messages, 1)
	msg := dialer.messages[0]
	assert.Equal(t, []string{"admin@factory.example", "ops@factory.example"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"[URGENT] System Health Alert: Database Connection"}, msg.GetHeader("Subject"))

	// No directory entry means nothing to send
	other := testNotification()
	other.RecipientID = models.RoleWarehouseKeeper
	require.NoError(t, es.Send(context.Background(), other))
	assert.Len(t, dialer.messages, 1)

	dialer.err = errors.New("535 authentication failed")
	err := es.Send(context.Background(), testNotification())
	assert.True(t, utils.HasCode(err, utils.ErrCodeExternal))
}

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate(defaultEmailTemplate, map[string]interface{}{
		"title":        "Low Stock Items",
		"message":      "2 items",
		"priority":     "normal",
		"type":         "inventory",
		"context_type": "system_alert",
		"context_id":   "a-1",
		"created_at":   "2026-06-01T09:00:00Z",
	})
	assert.Contains(t, out, "Low Stock Items\n\n2 items")
	assert.Contains(t, out, "Reference: system_alert/a-1")
	assert.NotContains(t, out, "{{")
}

func TestSlackSender(t *testing.T) {
	utils.InitLogger("info", "text", "stdout", "")
	poster := &fakePoster{}
	ss := &SlackSender{channel: "#factory-alerts", client: poster, logger: NewNotificationLogger()}

	require.NoError(t, ss.Send(context.Background(), testNotification()))
	assert.Equal(t, 1, poster.calls)
	assert.Equal(t, "#factory-alerts", poster.channel)

	poster.err = errors.New("channel_not_found")
	err := ss.Send(context.Background(), testNotification())
	assert.True(t, utils.HasCode(err, utils.ErrCodeExternal))

	assert.Equal(t, "danger", priorityColor(models.PriorityUrgent))
	assert.Equal(t, "warning", priorityColor(models.PriorityHigh))
	assert.Equal(t, "good", priorityColor(models.PriorityNormal))
}
