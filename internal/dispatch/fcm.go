package dispatch

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMProvider implements push notifications via Firebase Cloud Messaging
type FCMProvider struct {
	projectID string
	client    *messaging.Client
}

// NewFCMProvider creates a new FCM push notification provider
func NewFCMProvider(cfg *ProviderConfig) (*FCMProvider, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if cfg.FCMCredentials != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.FCMCredentials)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FCMProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get FCM client: %w", err)
	}

	return &FCMProvider{
		projectID: cfg.FCMProjectID,
		client:    client,
	}, nil
}

// Send sends a push notification to a single device token
func (p *FCMProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	fcmMessage := &messaging.Message{
		Token: message.To,
		Notification: &messaging.Notification{
			Title: message.Subject,
			Body:  message.Body,
		},
		Data:    stringifyMetadata(message.Metadata),
		Android: &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: message.Subject,
						Body:  message.Body,
					},
					Sound: "default",
				},
			},
		},
	}

	response, err := p.client.Send(ctx, fcmMessage)
	if err != nil {
		return &SendResult{
			ProviderName: "FCM",
			Success:      false,
			Error:        err,
		}, err
	}

	return &SendResult{
		ProviderID:   response,
		ProviderName: "FCM",
		Success:      true,
		ProviderData: map[string]interface{}{
			"message_id": response,
			"token":      message.To,
		},
	}, nil
}

// SendMulticast sends a push notification to all of an agent's devices
func (p *FCMProvider) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (*messaging.BatchResponse, error) {
	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:    data,
		Android: &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Sound: "default",
				},
			},
		},
	}

	return p.client.SendMulticast(ctx, message)
}

// GetName returns the provider name
func (p *FCMProvider) GetName() string {
	return "FCM"
}

// SupportsChannel returns the supported channel
func (p *FCMProvider) SupportsChannel() string {
	return "PUSH"
}

func stringifyMetadata(metadata map[string]interface{}) map[string]string {
	if metadata == nil {
		return nil
	}
	data := make(map[string]string, len(metadata))
	for key, value := range metadata {
		data[key] = fmt.Sprintf("%v", value)
	}
	return data
}
