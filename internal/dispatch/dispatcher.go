package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/repository"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/template"
	"github.com/sirupsen/logrus"
)

// InAppBroadcaster pushes a payload to all of a user's live connections.
// Returns false when the user has no open connection.
type InAppBroadcaster interface {
	BroadcastToUser(tenantID, userID string, payload interface{}) bool
}

// Dispatcher fans a fired reminder out to the owner's channels. Delivery is
// best-effort: the interval is already committed before Dispatch is called,
// so failures are logged and audited but never retried.
type Dispatcher struct {
	emailProvider Provider
	smsProvider   Provider
	pushProvider  Provider
	broadcaster   InAppBroadcaster

	prefRepo     repository.PreferenceRepository
	deliveryRepo repository.DeliveryLogRepository
	rateLimiter  *RateLimiter
	templates    *template.Engine

	appBaseURL  string
	sendTimeout time.Duration
	logger      *logrus.Entry
}

// DispatcherConfig wires the dispatcher's collaborators. Email, SMS, push
// and the broadcaster are each optional.
type DispatcherConfig struct {
	EmailProvider Provider
	SMSProvider   Provider
	PushProvider  Provider
	Broadcaster   InAppBroadcaster
	RateLimiter   *RateLimiter
	AppBaseURL    string
	SendTimeout   time.Duration
}

// NewDispatcher creates a reminder dispatcher
func NewDispatcher(cfg DispatcherConfig, prefRepo repository.PreferenceRepository, deliveryRepo repository.DeliveryLogRepository, templates *template.Engine, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		emailProvider: cfg.EmailProvider,
		smsProvider:   cfg.SMSProvider,
		pushProvider:  cfg.PushProvider,
		broadcaster:   cfg.Broadcaster,
		prefRepo:      prefRepo,
		deliveryRepo:  deliveryRepo,
		rateLimiter:   cfg.RateLimiter,
		templates:     templates,
		appBaseURL:    cfg.AppBaseURL,
		sendTimeout:   timeout,
		logger:        logger.WithField("component", "reminder_dispatcher"),
	}
}

// Dispatch delivers one committed firing. suppressExternal is set when the
// owner is live on the leads page; they get the in-app toast only.
func (d *Dispatcher) Dispatch(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, tenantCfg *models.TimelineConfig, suppressExternal bool) {
	leadURL := fmt.Sprintf("%s/leads/%s", d.appBaseURL, reminder.LeadID)
	rendered, err := d.templates.RenderReminder(reminder.LeadName, reminder.Note, leadURL, reminder.DueAt, interval.Label)
	if err != nil {
		d.logger.WithError(err).WithField("reminder_id", reminder.ID).Error("Failed to render reminder content")
		return
	}

	d.deliverInApp(ctx, reminder, interval, rendered)

	if suppressExternal {
		d.record(ctx, reminder, interval, models.ChannelEmail, models.DeliverySuppressed, "", "", "owner on leads page")
		return
	}

	pref, err := d.prefRepo.GetByUserID(ctx, reminder.TenantID, reminder.OwnerUserID)
	if err != nil {
		d.logger.WithError(err).WithField("owner_user_id", reminder.OwnerUserID).Error("Failed to load agent preferences")
		return
	}

	d.deliverEmail(ctx, reminder, interval, tenantCfg, pref, rendered)
	d.deliverSMS(ctx, reminder, interval, pref, rendered)
	d.deliverPush(ctx, reminder, interval, pref, rendered)
}

// SendTest sends a test reminder email to the given address, bypassing
// preferences and rate limits. Used by the timeline settings page.
func (d *Dispatcher) SendTest(ctx context.Context, tenantID, email string) error {
	if d.emailProvider == nil {
		return fmt.Errorf("no email provider configured")
	}

	rendered, err := d.templates.RenderReminder("Test Lead", "This is a test notification.", d.appBaseURL, time.Now().Add(24*time.Hour), "in 24 hours")
	if err != nil {
		return fmt.Errorf("failed to render test reminder: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	_, err = d.emailProvider.Send(sendCtx, &Message{
		To:       email,
		Subject:  rendered.Subject,
		Body:     rendered.Body,
		BodyHTML: rendered.BodyHTML,
		Metadata: map[string]interface{}{"tenant_id": tenantID, "test": true},
	})
	return err
}

func (d *Dispatcher) deliverInApp(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, rendered *template.RenderedReminder) {
	if d.broadcaster == nil {
		return
	}

	payload := map[string]interface{}{
		"type":        "lead_reminder",
		"reminderId":  reminder.ID.String(),
		"leadId":      reminder.LeadID.String(),
		"leadName":    reminder.LeadName,
		"dueAt":       reminder.DueAt,
		"intervalKey": interval.Key(),
		"message":     rendered.Push,
		"deliveredAt": time.Now(),
	}

	delivered := d.broadcaster.BroadcastToUser(reminder.TenantID, reminder.OwnerUserID.String(), payload)
	status := models.DeliverySent
	if !delivered {
		status = models.DeliverySkipped
	}
	d.record(ctx, reminder, interval, models.ChannelInApp, status, "websocket", "", "")
}

func (d *Dispatcher) deliverEmail(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, tenantCfg *models.TimelineConfig, pref *models.AgentPreference, rendered *template.RenderedReminder) {
	if d.emailProvider == nil || !pref.EmailEnabled {
		return
	}

	recipient := pref.Email
	if recipient == "" && tenantCfg != nil {
		recipient = tenantCfg.NotificationEmail
	}
	if recipient == "" {
		d.record(ctx, reminder, interval, models.ChannelEmail, models.DeliverySkipped, "", "", "no recipient address")
		return
	}

	if d.rateLimiter != nil {
		res, err := d.rateLimiter.Allow(ctx, reminder.TenantID, recipient)
		if err == nil && !res.Allowed {
			d.record(ctx, reminder, interval, models.ChannelEmail, models.DeliverySkipped, "", "", "rate limited: "+res.LimitType)
			return
		}
	}

	d.send(ctx, reminder, interval, models.ChannelEmail, d.emailProvider, &Message{
		To:       recipient,
		Subject:  rendered.Subject,
		Body:     rendered.Body,
		BodyHTML: rendered.BodyHTML,
		Metadata: d.metadata(reminder, interval),
	})
}

func (d *Dispatcher) deliverSMS(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, pref *models.AgentPreference, rendered *template.RenderedReminder) {
	if d.smsProvider == nil || !pref.SMSEnabled || pref.Phone == "" {
		return
	}

	d.send(ctx, reminder, interval, models.ChannelSMS, d.smsProvider, &Message{
		To:       pref.Phone,
		Body:     rendered.Push,
		Metadata: d.metadata(reminder, interval),
	})
}

func (d *Dispatcher) deliverPush(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, pref *models.AgentPreference, rendered *template.RenderedReminder) {
	if d.pushProvider == nil || !pref.PushEnabled {
		return
	}
	tokens := pref.Tokens()
	if len(tokens) == 0 {
		return
	}

	// One log entry per channel; individual stale tokens are not tracked here.
	var lastResult *SendResult
	var lastErr error
	for _, token := range tokens {
		result, err := d.sendOnce(ctx, d.pushProvider, &Message{
			To:       token,
			Subject:  "Follow-up reminder",
			Body:     rendered.Push,
			Metadata: d.metadata(reminder, interval),
		})
		if err == nil && result.Success {
			lastResult = result
			lastErr = nil
			break
		}
		lastResult = result
		lastErr = err
	}

	d.recordResult(ctx, reminder, interval, models.ChannelPush, lastResult, lastErr)
}

func (d *Dispatcher) send(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, channel models.NotificationChannel, provider Provider, msg *Message) {
	result, err := d.sendOnce(ctx, provider, msg)
	d.recordResult(ctx, reminder, interval, channel, result, err)
}

func (d *Dispatcher) sendOnce(ctx context.Context, provider Provider, msg *Message) (*SendResult, error) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return provider.Send(sendCtx, msg)
}

func (d *Dispatcher) recordResult(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, channel models.NotificationChannel, result *SendResult, err error) {
	providerName := ""
	providerID := ""
	if result != nil {
		providerName = result.ProviderName
		providerID = result.ProviderID
	}

	if err != nil || (result != nil && !result.Success) {
		errMsg := "send failed"
		if err != nil {
			errMsg = err.Error()
		} else if result.Error != nil {
			errMsg = result.Error.Error()
		}
		d.logger.WithFields(logrus.Fields{
			"reminder_id":  reminder.ID,
			"interval_key": interval.Key(),
			"channel":      channel,
			"provider":     providerName,
		}).WithError(err).Warn("Reminder delivery failed")
		d.record(ctx, reminder, interval, channel, models.DeliveryFailed, providerName, providerID, errMsg)
		return
	}

	d.logger.WithFields(logrus.Fields{
		"reminder_id":  reminder.ID,
		"interval_key": interval.Key(),
		"channel":      channel,
		"provider":     providerName,
	}).Info("Reminder delivered")
	d.record(ctx, reminder, interval, channel, models.DeliverySent, providerName, providerID, "")
}

func (d *Dispatcher) record(ctx context.Context, reminder *models.LeadReminder, interval models.ReminderInterval, channel models.NotificationChannel, status models.DeliveryStatus, provider, providerID, errMsg string) {
	if d.deliveryRepo == nil {
		return
	}
	entry := &models.DeliveryLog{
		TenantID:     reminder.TenantID,
		ReminderID:   reminder.ID,
		LeadID:       reminder.LeadID,
		OwnerUserID:  reminder.OwnerUserID,
		IntervalKey:  interval.Key(),
		Channel:      channel,
		Status:       status,
		Provider:     provider,
		ProviderID:   providerID,
		ErrorMessage: errMsg,
	}
	if err := d.deliveryRepo.Create(ctx, entry); err != nil {
		d.logger.WithError(err).Warn("Failed to write delivery log")
	}
}

func (d *Dispatcher) metadata(reminder *models.LeadReminder, interval models.ReminderInterval) map[string]interface{} {
	return map[string]interface{}{
		"tenant_id":    reminder.TenantID,
		"reminder_id":  reminder.ID.String(),
		"lead_id":      reminder.LeadID.String(),
		"interval_key": interval.Key(),
	}
}
