package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubProvider struct {
	name    string
	channel string
	err     error
	calls   int
}

func (p *stubProvider) Send(ctx context.Context, message *Message) (*SendResult, error) {
	p.calls++
	if p.err != nil {
		return &SendResult{ProviderName: p.name, Success: false, Error: p.err}, p.err
	}
	return &SendResult{ProviderID: "msg-1", ProviderName: p.name, Success: true}, nil
}

func (p *stubProvider) GetName() string {
	return p.name
}

func (p *stubProvider) SupportsChannel() string {
	return p.channel
}

func fastFailoverConfig() *FailoverConfig {
	return &FailoverConfig{EnableFailover: true, MaxRetries: 0, RetryDelay: time.Millisecond}
}

func TestFailoverUsesPrimaryFirst(t *testing.T) {
	primary := &stubProvider{name: "AWS SES", channel: "EMAIL"}
	fallback := &stubProvider{name: "SendGrid", channel: "EMAIL"}
	f := NewFailoverProvider("EMAIL", []Provider{primary, fallback}, fastFailoverConfig())

	result, err := f.Send(context.Background(), &Message{To: "agent@example.com"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if result.ProviderName != "AWS SES" {
		t.Errorf("used %s, want AWS SES", result.ProviderName)
	}
	if fallback.calls != 0 {
		t.Error("fallback should not be called when primary succeeds")
	}
}

func TestFailoverFallsBack(t *testing.T) {
	primary := &stubProvider{name: "AWS SES", channel: "EMAIL", err: errors.New("throttled")}
	fallback := &stubProvider{name: "SendGrid", channel: "EMAIL"}
	f := NewFailoverProvider("EMAIL", []Provider{primary, fallback}, fastFailoverConfig())

	result, err := f.Send(context.Background(), &Message{To: "agent@example.com"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if result.ProviderName != "SendGrid" {
		t.Errorf("used %s, want SendGrid", result.ProviderName)
	}
}

func TestFailoverAllProvidersFail(t *testing.T) {
	a := &stubProvider{name: "AWS SES", channel: "EMAIL", err: errors.New("down")}
	b := &stubProvider{name: "SendGrid", channel: "EMAIL", err: errors.New("also down")}
	f := NewFailoverProvider("EMAIL", []Provider{a, b}, fastFailoverConfig())

	result, err := f.Send(context.Background(), &Message{To: "agent@example.com"})
	if err == nil {
		t.Fatal("Send() should fail when every provider fails")
	}
	if result.Success {
		t.Error("result should not be marked successful")
	}
}

func TestFailoverDisabledStopsAfterPrimary(t *testing.T) {
	primary := &stubProvider{name: "AWS SES", channel: "EMAIL", err: errors.New("down")}
	fallback := &stubProvider{name: "SendGrid", channel: "EMAIL"}
	f := NewFailoverProvider("EMAIL", []Provider{primary, fallback}, &FailoverConfig{
		EnableFailover: false,
		MaxRetries:     0,
		RetryDelay:     time.Millisecond,
	})

	_, err := f.Send(context.Background(), &Message{To: "agent@example.com"})
	if err == nil {
		t.Fatal("Send() should fail with failover disabled and primary down")
	}
	if fallback.calls != 0 {
		t.Error("fallback must not be tried when failover is disabled")
	}
}

func TestFailoverSkipsNilProviders(t *testing.T) {
	ok := &stubProvider{name: "SMTP", channel: "EMAIL"}
	f := NewFailoverProvider("EMAIL", []Provider{nil, ok, nil}, fastFailoverConfig())

	if _, err := f.Send(context.Background(), &Message{To: "agent@example.com"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got := f.GetName(); got != "Failover(SMTP)" {
		t.Errorf("GetName() = %s, want Failover(SMTP)", got)
	}
}

func TestFailoverNoProviders(t *testing.T) {
	f := NewFailoverProvider("EMAIL", nil, fastFailoverConfig())
	if _, err := f.Send(context.Background(), &Message{To: "agent@example.com"}); err == nil {
		t.Fatal("Send() should fail with no providers")
	}
	if got := f.GetName(); got != "Failover(none)" {
		t.Errorf("GetName() = %s, want Failover(none)", got)
	}
}

func TestFailoverDefaultDoesNotRetry(t *testing.T) {
	// A timed-out send may have gone through; retrying it would deliver
	// the same reminder twice.
	primary := &stubProvider{name: "AWS SES", channel: "EMAIL", err: errors.New("timeout")}
	fallback := &stubProvider{name: "SendGrid", channel: "EMAIL"}
	f := NewFailoverProvider("EMAIL", []Provider{primary, fallback}, nil)

	if _, err := f.Send(context.Background(), &Message{To: "agent@example.com"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if primary.calls != 1 {
		t.Errorf("primary called %d times, want exactly 1", primary.calls)
	}
}

func TestFailoverChainName(t *testing.T) {
	a := &stubProvider{name: "AWS SES", channel: "EMAIL"}
	b := &stubProvider{name: "SendGrid", channel: "EMAIL"}
	f := NewFailoverProvider("EMAIL", []Provider{a, b}, nil)
	if got := f.GetName(); got != "Failover(AWS SES -> SendGrid)" {
		t.Errorf("GetName() = %s", got)
	}
}
