package nats

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/repository"
)

// LeadReminderEvent is published by the CRM core when a follow-up time is
// set or rescheduled on a lead.
type LeadReminderEvent struct {
	TenantID    string    `json:"tenant_id"`
	LeadID      string    `json:"lead_id"`
	LeadName    string    `json:"lead_name"`
	OwnerUserID string    `json:"owner_user_id"`
	DueAt       time.Time `json:"due_at"`
	Note        string    `json:"note"`
}

// LeadEvent covers reminder-cleared and lead-deleted events.
type LeadEvent struct {
	TenantID string `json:"tenant_id"`
	LeadID   string `json:"lead_id"`
}

// Subscriber consumes lead events from the CRM core and keeps the reminder
// store in sync.
type Subscriber struct {
	client       *Client
	reminderRepo repository.ReminderRepository
	subs         []*nats.Subscription
}

// NewSubscriber creates a new NATS subscriber
func NewSubscriber(client *Client, reminderRepo repository.ReminderRepository) *Subscriber {
	return &Subscriber{
		client:       client,
		reminderRepo: reminderRepo,
		subs:         make([]*nats.Subscription, 0),
	}
}

// Start begins subscribing to lead event subjects
func (s *Subscriber) Start(ctx context.Context) error {
	js := s.client.JetStream()

	subjects := []struct {
		subject string
		durable string
		handler nats.MsgHandler
	}{
		{"crm.lead.reminder.set", "reminder-service-set", s.handleReminderSet},
		{"crm.lead.reminder.cleared", "reminder-service-cleared", s.handleReminderCleared},
		{"crm.lead.deleted", "reminder-service-deleted", s.handleLeadDeleted},
	}

	for _, sub := range subjects {
		natsSub, err := js.QueueSubscribe(
			sub.subject,
			"reminder-service-workers",
			sub.handler,
			nats.BindStream("LEAD_EVENTS"),
			nats.Durable(sub.durable),
			nats.DeliverNew(),
			nats.ManualAck(),
			nats.AckWait(30*time.Second),
			nats.MaxDeliver(3),
			nats.InactiveThreshold(24*time.Hour),
		)
		if err != nil {
			log.Printf("Warning: failed to subscribe to %s: %v", sub.subject, err)
			continue
		}
		s.subs = append(s.subs, natsSub)
		log.Printf("Subscribed to %s events", sub.subject)
	}

	log.Printf("NATS subscriber started with %d subscriptions", len(s.subs))
	return nil
}

// Stop unsubscribes from all streams
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("Error draining subscription: %v", err)
		}
	}
	log.Println("NATS subscriber stopped")
}

func (s *Subscriber) handleReminderSet(msg *nats.Msg) {
	var event LeadReminderEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("Failed to unmarshal reminder set event: %v", err)
		msg.Ack() // Don't retry malformed messages
		return
	}

	leadID, err := uuid.Parse(event.LeadID)
	if err != nil {
		log.Printf("Invalid lead ID in reminder set event: %s", event.LeadID)
		msg.Ack()
		return
	}
	ownerID, err := uuid.Parse(event.OwnerUserID)
	if err != nil {
		log.Printf("Invalid owner ID in reminder set event: %s", event.OwnerUserID)
		msg.Ack()
		return
	}

	_, err = s.reminderRepo.Upsert(context.Background(), event.TenantID, leadID, event.LeadName, ownerID, event.DueAt, event.Note)
	if err != nil {
		log.Printf("Failed to upsert reminder for lead %s: %v", event.LeadID, err)
		msg.Nak()
		return
	}

	msg.Ack()
	log.Printf("Processed reminder set: tenant=%s lead=%s due=%s", event.TenantID, event.LeadID, event.DueAt.Format(time.RFC3339))
}

func (s *Subscriber) handleReminderCleared(msg *nats.Msg) {
	var event LeadEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("Failed to unmarshal reminder cleared event: %v", err)
		msg.Ack()
		return
	}

	leadID, err := uuid.Parse(event.LeadID)
	if err != nil {
		msg.Ack()
		return
	}

	reminder, err := s.reminderRepo.GetByLead(context.Background(), event.TenantID, leadID)
	if err != nil {
		log.Printf("Failed to load reminder for lead %s: %v", event.LeadID, err)
		msg.Nak()
		return
	}
	if reminder != nil {
		if err := s.reminderRepo.Cancel(context.Background(), event.TenantID, reminder.ID); err != nil {
			// Already resolved is fine; anything else gets retried.
			log.Printf("Failed to cancel reminder for lead %s: %v", event.LeadID, err)
		}
	}

	msg.Ack()
	log.Printf("Processed reminder cleared: tenant=%s lead=%s", event.TenantID, event.LeadID)
}

func (s *Subscriber) handleLeadDeleted(msg *nats.Msg) {
	var event LeadEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		log.Printf("Failed to unmarshal lead deleted event: %v", err)
		msg.Ack()
		return
	}

	leadID, err := uuid.Parse(event.LeadID)
	if err != nil {
		msg.Ack()
		return
	}

	if err := s.reminderRepo.DeleteByLead(context.Background(), event.TenantID, leadID); err != nil {
		log.Printf("Failed to delete reminder for lead %s: %v", event.LeadID, err)
		msg.Nak()
		return
	}

	msg.Ack()
	log.Printf("Processed lead deleted: tenant=%s lead=%s", event.TenantID, event.LeadID)
}
