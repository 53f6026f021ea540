package template

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// Engine handles reminder template rendering
type Engine struct{}

// NewEngine creates a new template engine
func NewEngine() *Engine {
	return &Engine{}
}

// RenderText renders a text template with variables
func (e *Engine) RenderText(templateStr string, variables map[string]interface{}) (string, error) {
	tmpl, err := texttemplate.New("text").Funcs(e.funcMap()).Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// RenderHTML renders an HTML template with variables
func (e *Engine) RenderHTML(templateStr string, variables map[string]interface{}) (string, error) {
	tmpl, err := htmltemplate.New("html").Funcs(e.htmlFuncMap()).Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Built-in reminder templates. Tenants cannot customize these yet.
const (
	reminderSubjectTmpl = `Reminder: follow up with {{ .LeadName }} {{ .LeadTime }}`

	reminderBodyTmpl = `Hi,

This is a reminder that your follow-up with {{ .LeadName }} is due {{ .LeadTime }} ({{ formatDateTime .DueAt }}).
{{- if .Note }}

Note: {{ .Note }}
{{- end }}

Open the lead in LeadPulse CRM to take action.
`

	reminderHTMLTmpl = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2 style="color: #2c5282;">Follow-up reminder</h2>
  <p>Your follow-up with <strong>{{ .LeadName }}</strong> is due {{ .LeadTime }} ({{ formatDateTime .DueAt }}).</p>
  {{- if .Note }}
  <p style="background: #f7fafc; padding: 12px; border-left: 3px solid #2c5282;">{{ .Note }}</p>
  {{- end }}
  <p><a href="{{ .LeadURL }}" style="color: #2c5282;">Open lead in LeadPulse CRM</a></p>
</body>
</html>`
)

// RenderedReminder is the rendered content for one reminder notification.
type RenderedReminder struct {
	Subject  string
	Body     string
	BodyHTML string
	Push     string // short form for SMS and push
}

// RenderReminder renders the built-in reminder templates.
func (e *Engine) RenderReminder(leadName, note, leadURL string, dueAt time.Time, intervalLabel string) (*RenderedReminder, error) {
	leadTime := intervalLabel
	if leadTime == "" {
		leadTime = "soon"
	}

	vars := map[string]interface{}{
		"LeadName": leadName,
		"Note":     note,
		"LeadURL":  leadURL,
		"DueAt":    dueAt,
		"LeadTime": leadTime,
	}

	subject, err := e.RenderText(reminderSubjectTmpl, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	body, err := e.RenderText(reminderBodyTmpl, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}
	html, err := e.RenderHTML(reminderHTMLTmpl, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML body: %w", err)
	}

	return &RenderedReminder{
		Subject:  subject,
		Body:     body,
		BodyHTML: html,
		Push:     fmt.Sprintf("Follow up with %s %s", leadName, leadTime),
	}, nil
}

func (e *Engine) funcMap() texttemplate.FuncMap {
	return texttemplate.FuncMap{
		"upper":          strings.ToUpper,
		"lower":          strings.ToLower,
		"trim":           strings.TrimSpace,
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,
		"default":        defaultValue,
	}
}

func (e *Engine) htmlFuncMap() htmltemplate.FuncMap {
	return htmltemplate.FuncMap{
		"upper":          strings.ToUpper,
		"lower":          strings.ToLower,
		"trim":           strings.TrimSpace,
		"formatDate":     formatDate,
		"formatDateTime": formatDateTime,
		"default":        defaultValue,
		"safeHTML":       safeHTML,
	}
}

func formatDate(t interface{}) string {
	switch v := t.(type) {
	case time.Time:
		return v.Format("January 2, 2006")
	case *time.Time:
		if v != nil {
			return v.Format("January 2, 2006")
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed.Format("January 2, 2006")
		}
	}
	return ""
}

func formatDateTime(t interface{}) string {
	switch v := t.(type) {
	case time.Time:
		return v.Format("January 2, 2006 at 3:04 PM MST")
	case *time.Time:
		if v != nil {
			return v.Format("January 2, 2006 at 3:04 PM MST")
		}
	}
	return ""
}

func defaultValue(def, val interface{}) interface{} {
	if val == nil || val == "" {
		return def
	}
	return val
}

func safeHTML(s string) htmltemplate.HTML {
	return htmltemplate.HTML(s)
}
