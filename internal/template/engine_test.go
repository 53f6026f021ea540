package template

import (
	"strings"
	"testing"
	"time"
)

func TestRenderReminder(t *testing.T) {
	engine := NewEngine()
	dueAt := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

	rendered, err := engine.RenderReminder("Acme Corp", "Bring the Q2 proposal", "https://app.example.com/leads/abc", dueAt, "in 2 hours")
	if err != nil {
		t.Fatalf("RenderReminder() error: %v", err)
	}

	if !strings.Contains(rendered.Subject, "Acme Corp") {
		t.Errorf("subject missing lead name: %s", rendered.Subject)
	}
	if !strings.Contains(rendered.Body, "Bring the Q2 proposal") {
		t.Errorf("body missing note: %s", rendered.Body)
	}
	if !strings.Contains(rendered.BodyHTML, "https://app.example.com/leads/abc") {
		t.Errorf("HTML body missing lead link: %s", rendered.BodyHTML)
	}
	if !strings.Contains(rendered.Push, "Acme Corp") {
		t.Errorf("push text missing lead name: %s", rendered.Push)
	}
}

func TestRenderReminderWithoutNote(t *testing.T) {
	engine := NewEngine()

	rendered, err := engine.RenderReminder("Acme Corp", "", "https://app.example.com/leads/abc", time.Now(), "in 1 hour")
	if err != nil {
		t.Fatalf("RenderReminder() error: %v", err)
	}
	if strings.Contains(rendered.Body, "Note:") {
		t.Errorf("body should omit the note block when empty: %s", rendered.Body)
	}
}

func TestRenderReminderEscapesHTML(t *testing.T) {
	engine := NewEngine()

	rendered, err := engine.RenderReminder("<script>alert(1)</script>", "", "https://app.example.com", time.Now(), "soon")
	if err != nil {
		t.Fatalf("RenderReminder() error: %v", err)
	}
	if strings.Contains(rendered.BodyHTML, "<script>") {
		t.Error("HTML body must escape lead-supplied content")
	}
}

func TestRenderText(t *testing.T) {
	engine := NewEngine()

	got, err := engine.RenderText("Hello {{ upper .Name }}", map[string]interface{}{"Name": "world"})
	if err != nil {
		t.Fatalf("RenderText() error: %v", err)
	}
	if got != "Hello WORLD" {
		t.Errorf("RenderText() = %q", got)
	}
}

func TestRenderTextInvalidTemplate(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.RenderText("{{ .Broken", nil); err == nil {
		t.Fatal("expected parse error")
	}
}
