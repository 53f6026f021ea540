package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/template"
)

type fakePrefRepo struct {
	pref *models.AgentPreference
}

func (f *fakePrefRepo) GetByUserID(ctx context.Context, tenantID string, userID uuid.UUID) (*models.AgentPreference, error) {
	if f.pref != nil {
		return f.pref, nil
	}
	return &models.AgentPreference{TenantID: tenantID, UserID: userID, EmailEnabled: true, PushEnabled: true}, nil
}

func (f *fakePrefRepo) Upsert(ctx context.Context, pref *models.AgentPreference) error {
	return nil
}

func (f *fakePrefRepo) UpdatePushTokens(ctx context.Context, tenantID string, userID uuid.UUID, tokens []string) error {
	return nil
}

type fakeDeliveryRepo struct {
	mu   sync.Mutex
	logs []models.DeliveryLog
}

func (f *fakeDeliveryRepo) Create(ctx context.Context, log *models.DeliveryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeDeliveryRepo) ListByReminder(ctx context.Context, tenantID string, reminderID uuid.UUID) ([]models.DeliveryLog, error) {
	return f.logs, nil
}

func (f *fakeDeliveryRepo) byChannel(channel models.NotificationChannel) []models.DeliveryLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.DeliveryLog
	for _, l := range f.logs {
		if l.Channel == channel {
			out = append(out, l)
		}
	}
	return out
}

type fakeBroadcaster struct {
	connected bool
	payloads  []interface{}
}

func (f *fakeBroadcaster) BroadcastToUser(tenantID, userID string, payload interface{}) bool {
	f.payloads = append(f.payloads, payload)
	return f.connected
}

func testReminder() *models.LeadReminder {
	return &models.LeadReminder{
		ID:          uuid.New(),
		TenantID:    "tenant-1",
		LeadID:      uuid.New(),
		LeadName:    "Acme Corp",
		OwnerUserID: uuid.New(),
		DueAt:       time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Status:      models.ReminderPending,
	}
}

func newTestDispatcher(email Provider, broadcaster InAppBroadcaster, prefs *fakePrefRepo, deliveries *fakeDeliveryRepo) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		EmailProvider: email,
		Broadcaster:   broadcaster,
		AppBaseURL:    "https://app.example.com",
		SendTimeout:   time.Second,
	}, prefs, deliveries, template.NewEngine(), nil)
}

func TestDispatchSendsEmailAndInApp(t *testing.T) {
	email := &stubProvider{name: "AWS SES", channel: "EMAIL"}
	broadcaster := &fakeBroadcaster{connected: true}
	prefs := &fakePrefRepo{pref: &models.AgentPreference{EmailEnabled: true, Email: "agent@example.com"}}
	deliveries := &fakeDeliveryRepo{}

	d := newTestDispatcher(email, broadcaster, prefs, deliveries)
	d.Dispatch(context.Background(), testReminder(), models.ReminderInterval{Hours: 24, Label: "1 day before"}, nil, false)

	if email.calls != 1 {
		t.Fatalf("email provider called %d times, want 1", email.calls)
	}
	if len(broadcaster.payloads) != 1 {
		t.Fatalf("broadcast called %d times, want 1", len(broadcaster.payloads))
	}

	sent := deliveries.byChannel(models.ChannelEmail)
	if len(sent) != 1 || sent[0].Status != models.DeliverySent {
		t.Errorf("email delivery log = %+v, want one SENT entry", sent)
	}
	inApp := deliveries.byChannel(models.ChannelInApp)
	if len(inApp) != 1 || inApp[0].Status != models.DeliverySent {
		t.Errorf("in-app delivery log = %+v, want one SENT entry", inApp)
	}
}

func TestDispatchSuppressedSkipsExternal(t *testing.T) {
	email := &stubProvider{name: "AWS SES", channel: "EMAIL"}
	broadcaster := &fakeBroadcaster{connected: true}
	deliveries := &fakeDeliveryRepo{}

	d := newTestDispatcher(email, broadcaster, &fakePrefRepo{}, deliveries)
	d.Dispatch(context.Background(), testReminder(), models.ReminderInterval{Hours: 1}, nil, true)

	if email.calls != 0 {
		t.Fatal("suppressed dispatch must not send email")
	}
	if len(broadcaster.payloads) != 1 {
		t.Fatal("suppressed dispatch still delivers in-app")
	}
	logs := deliveries.byChannel(models.ChannelEmail)
	if len(logs) != 1 || logs[0].Status != models.DeliverySuppressed {
		t.Errorf("email log = %+v, want one SUPPRESSED entry", logs)
	}
}

func TestDispatchFallsBackToTenantEmail(t *testing.T) {
	email := &stubProvider{name: "AWS SES", channel: "EMAIL"}
	deliveries := &fakeDeliveryRepo{}
	// Agent has no address on file.
	prefs := &fakePrefRepo{pref: &models.AgentPreference{EmailEnabled: true}}
	tenantCfg := &models.TimelineConfig{TenantID: "tenant-1", NotificationEmail: "sales@example.com"}

	d := newTestDispatcher(email, nil, prefs, deliveries)
	d.Dispatch(context.Background(), testReminder(), models.ReminderInterval{Hours: 2}, tenantCfg, false)

	if email.calls != 1 {
		t.Fatalf("email provider called %d times, want 1", email.calls)
	}
}

func TestDispatchNoRecipientLogsSkipped(t *testing.T) {
	email := &stubProvider{name: "AWS SES", channel: "EMAIL"}
	deliveries := &fakeDeliveryRepo{}
	prefs := &fakePrefRepo{pref: &models.AgentPreference{EmailEnabled: true}}

	d := newTestDispatcher(email, nil, prefs, deliveries)
	d.Dispatch(context.Background(), testReminder(), models.ReminderInterval{Hours: 2}, nil, false)

	if email.calls != 0 {
		t.Fatal("no email should go out without a recipient")
	}
	logs := deliveries.byChannel(models.ChannelEmail)
	if len(logs) != 1 || logs[0].Status != models.DeliverySkipped {
		t.Errorf("email log = %+v, want one SKIPPED entry", logs)
	}
}

func TestDispatchEmailDisabledByPreference(t *testing.T) {
	email := &stubProvider{name: "AWS SES", channel: "EMAIL"}
	deliveries := &fakeDeliveryRepo{}
	prefs := &fakePrefRepo{pref: &models.AgentPreference{EmailEnabled: false, Email: "agent@example.com"}}

	d := newTestDispatcher(email, nil, prefs, deliveries)
	d.Dispatch(context.Background(), testReminder(), models.ReminderInterval{Hours: 2}, nil, false)

	if email.calls != 0 {
		t.Fatal("opted-out agent must not receive email")
	}
}

func TestDispatchProviderFailureIsLoggedNotRetried(t *testing.T) {
	email := &stubProvider{name: "AWS SES", channel: "EMAIL", err: context.DeadlineExceeded}
	deliveries := &fakeDeliveryRepo{}
	prefs := &fakePrefRepo{pref: &models.AgentPreference{EmailEnabled: true, Email: "agent@example.com"}}

	d := newTestDispatcher(email, nil, prefs, deliveries)
	d.Dispatch(context.Background(), testReminder(), models.ReminderInterval{Hours: 2}, nil, false)

	if email.calls != 1 {
		t.Fatalf("email provider called %d times, want exactly 1", email.calls)
	}
	logs := deliveries.byChannel(models.ChannelEmail)
	if len(logs) != 1 || logs[0].Status != models.DeliveryFailed {
		t.Errorf("email log = %+v, want one FAILED entry", logs)
	}
}
