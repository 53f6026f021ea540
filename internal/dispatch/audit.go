package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// AuditPublisher streams fired-reminder events to GCP Pub/Sub for the
// analytics pipeline. Optional: the scheduler works without it.
type AuditPublisher struct {
	client  *pubsub.Client
	topic   *pubsub.Topic
	topicID string
	logger  *logrus.Entry
}

// FiredEvent is the audit record published for every committed firing.
type FiredEvent struct {
	TenantID    string    `json:"tenant_id"`
	ReminderID  string    `json:"reminder_id"`
	LeadID      string    `json:"lead_id"`
	OwnerUserID string    `json:"owner_user_id"`
	IntervalKey string    `json:"interval_key"`
	Channel     string    `json:"channel"`
	DueAt       time.Time `json:"due_at"`
	FiredAt     time.Time `json:"fired_at"`
}

// NewAuditPublisher creates a Pub/Sub publisher, creating the topic when it
// does not exist yet.
func NewAuditPublisher(projectID, topicID string, logger *logrus.Logger) (*AuditPublisher, error) {
	ctx := context.Background()

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic: %w", err)
		}
		logger.WithField("topic", topicID).Info("Created Pub/Sub topic")
	}
	enableOrderedPublish(topic)

	return &AuditPublisher{
		client:  client,
		topic:   topic,
		topicID: topicID,
		logger:  logger.WithField("component", "audit_publisher"),
	}, nil
}

// Publish sends one fired event. Failures are logged, never propagated;
// the audit stream is best-effort.
func (p *AuditPublisher) Publish(ctx context.Context, event *FiredEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal fired event")
		return
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"tenant_id":    event.TenantID,
			"interval_key": event.IntervalKey,
			"channel":      event.Channel,
		},
		OrderingKey: event.TenantID,
	})

	// Bounded wait: a Pub/Sub stall must not hold a scheduler worker.
	getCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := result.Get(getCtx); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"reminder_id":  event.ReminderID,
			"interval_key": event.IntervalKey,
		}).Error("Failed to publish fired event")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"reminder_id":  event.ReminderID,
		"interval_key": event.IntervalKey,
		"channel":      event.Channel,
	}).Debug("Published fired event")
}

// enableOrderedPublish turns on ordered delivery for the topic. Messages
// carry a per-tenant OrderingKey; the client rejects keyed publishes unless
// this flag is set.
func enableOrderedPublish(topic *pubsub.Topic) {
	topic.EnableMessageOrdering = true
}

// Close flushes and closes the publisher.
func (p *AuditPublisher) Close() error {
	p.topic.Stop()
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
