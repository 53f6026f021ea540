package dispatch

import (
	"context"
)

// Provider represents an outbound notification provider
type Provider interface {
	Send(ctx context.Context, message *Message) (*SendResult, error)
	GetName() string
	SupportsChannel() string
}

// Message represents a message to be sent
type Message struct {
	To       string
	Subject  string
	Body     string
	BodyHTML string
	From     string
	FromName string
	ReplyTo  string
	Headers  map[string]string
	Metadata map[string]interface{}
}

// SendResult represents the result of a send operation
type SendResult struct {
	ProviderID   string
	ProviderName string
	Success      bool
	Error        error
	ProviderData map[string]interface{}
}

// ProviderConfig represents provider configuration
type ProviderConfig struct {
	// AWS credentials (shared for SES and SNS)
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// AWS SES (primary email)
	SESFrom     string
	SESFromName string

	// SendGrid (fallback email)
	SendGridAPIKey string
	SendGridFrom   string

	// Generic SMTP (legacy fallback)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// AWS SNS (SMS)
	SNSFrom string // Sender ID or origination number

	// Push providers
	FCMProjectID   string
	FCMCredentials string // JSON credentials for GCP
}
