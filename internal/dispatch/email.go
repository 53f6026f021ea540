package dispatch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridProvider implements email sending via SendGrid
type SendGridProvider struct {
	from     string
	fromName string
	client   *sendgrid.Client
}

// NewSendGridProvider creates a new SendGrid email provider
func NewSendGridProvider(cfg *ProviderConfig) *SendGridProvider {
	return &SendGridProvider{
		from:     cfg.SendGridFrom,
		fromName: "LeadPulse CRM",
		client:   sendgrid.NewSendClient(cfg.SendGridAPIKey),
	}
}

// Send sends an email via SendGrid
func (p *SendGridProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	from := mail.NewEmail(p.fromName, p.from)
	if message.From != "" {
		fromName := message.FromName
		if fromName == "" {
			fromName = message.From
		}
		from = mail.NewEmail(fromName, message.From)
	}

	to := mail.NewEmail("", message.To)
	m := mail.NewSingleEmail(from, message.Subject, to, message.Body, message.BodyHTML)

	if message.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail("", message.ReplyTo))
	}
	if len(message.Headers) > 0 {
		m.Headers = message.Headers
	}

	// Disable click and open tracking: reminder emails are transactional and
	// URL rewriting breaks deep links into the CRM.
	trackingSettings := mail.NewTrackingSettings()
	clickTracking := mail.NewClickTrackingSetting()
	clickTracking.SetEnable(false)
	clickTracking.SetEnableText(false)
	trackingSettings.SetClickTracking(clickTracking)
	openTracking := mail.NewOpenTrackingSetting()
	openTracking.SetEnable(false)
	trackingSettings.SetOpenTracking(openTracking)
	m.SetTrackingSettings(trackingSettings)

	response, err := p.client.Send(m)
	if err != nil {
		return &SendResult{
			ProviderName: "SendGrid",
			Success:      false,
			Error:        err,
		}, err
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		var messageID string
		if ids, ok := response.Headers["X-Message-Id"]; ok && len(ids) > 0 {
			messageID = ids[0]
		}
		return &SendResult{
			ProviderID:   messageID,
			ProviderName: "SendGrid",
			Success:      true,
			ProviderData: map[string]interface{}{
				"status_code": response.StatusCode,
				"to":          message.To,
				"subject":     message.Subject,
			},
		}, nil
	}

	return &SendResult{
		ProviderName: "SendGrid",
		Success:      false,
		Error:        fmt.Errorf("SendGrid API error: %d - %s", response.StatusCode, response.Body),
	}, fmt.Errorf("SendGrid API error: %d", response.StatusCode)
}

// GetName returns the provider name
func (p *SendGridProvider) GetName() string {
	return "SendGrid"
}

// SupportsChannel returns the supported channel
func (p *SendGridProvider) SupportsChannel() string {
	return "EMAIL"
}

// SMTPProvider implements email sending via plain SMTP, kept as the last
// link in the failover chain.
type SMTPProvider struct {
	host     string
	port     string
	username string
	password string
	from     string
	fromName string
}

// NewSMTPProvider creates a new SMTP email provider
func NewSMTPProvider(cfg *ProviderConfig) *SMTPProvider {
	fromName := cfg.SMTPFromName
	if fromName == "" {
		fromName = "LeadPulse CRM"
	}
	return &SMTPProvider{
		host:     cfg.SMTPHost,
		port:     fmt.Sprintf("%d", cfg.SMTPPort),
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		fromName: fromName,
	}
}

// Send sends an email via SMTP
func (p *SMTPProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	from := p.from
	if p.fromName != "" {
		from = fmt.Sprintf("%s <%s>", p.fromName, p.from)
	}
	if message.From != "" {
		from = message.From
		if message.FromName != "" {
			from = fmt.Sprintf("%s <%s>", message.FromName, message.From)
		}
	}

	headers := make(map[string]string)
	headers["From"] = from
	headers["To"] = message.To
	headers["Subject"] = message.Subject
	headers["MIME-Version"] = "1.0"
	if message.ReplyTo != "" {
		headers["Reply-To"] = message.ReplyTo
	}
	for key, value := range message.Headers {
		headers[key] = value
	}

	var body string
	if message.BodyHTML != "" {
		headers["Content-Type"] = "text/html; charset=utf-8"
		body = message.BodyHTML
	} else {
		headers["Content-Type"] = "text/plain; charset=utf-8"
		body = message.Body
	}

	var emailBuilder strings.Builder
	for k, v := range headers {
		emailBuilder.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	emailBuilder.WriteString("\r\n")
	emailBuilder.WriteString(body)

	auth := smtp.PlainAuth("", p.username, p.password, p.host)
	addr := net.JoinHostPort(p.host, p.port)

	tlsConfig := &tls.Config{
		ServerName:         p.host,
		InsecureSkipVerify: false,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		// Fall back to opportunistic TLS via SendMail
		if err := smtp.SendMail(addr, auth, p.from, []string{message.To}, []byte(emailBuilder.String())); err != nil {
			return &SendResult{ProviderName: "SMTP", Success: false, Error: err}, err
		}
	} else {
		defer conn.Close()

		client, err := smtp.NewClient(conn, p.host)
		if err != nil {
			return &SendResult{ProviderName: "SMTP", Success: false, Error: err}, err
		}
		defer client.Quit()

		if err = client.Auth(auth); err != nil {
			return &SendResult{ProviderName: "SMTP", Success: false, Error: err}, err
		}
		if err = client.Mail(p.from); err != nil {
			return &SendResult{ProviderName: "SMTP", Success: false, Error: err}, err
		}
		if err = client.Rcpt(message.To); err != nil {
			return &SendResult{ProviderName: "SMTP", Success: false, Error: err}, err
		}

		w, err := client.Data()
		if err != nil {
			return &SendResult{ProviderName: "SMTP", Success: false, Error: err}, err
		}
		if _, err = w.Write([]byte(emailBuilder.String())); err != nil {
			return &SendResult{ProviderName: "SMTP", Success: false, Error: err}, err
		}
		if err = w.Close(); err != nil {
			return &SendResult{ProviderName: "SMTP", Success: false, Error: err}, err
		}
	}

	return &SendResult{
		ProviderName: "SMTP",
		Success:      true,
		ProviderData: map[string]interface{}{
			"to":      message.To,
			"subject": message.Subject,
		},
	}, nil
}

// GetName returns the provider name
func (p *SMTPProvider) GetName() string {
	return "SMTP"
}

// SupportsChannel returns the supported channel
func (p *SMTPProvider) SupportsChannel() string {
	return "EMAIL"
}
