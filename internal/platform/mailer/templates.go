package mailer

import (
	"fmt"
	"strings"
	"sync"
)

const (
	TemplateAppointmentAccepted = "appointment-accepted"
	TemplateAppointmentRejected = "appointment-rejected"
)

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:      TemplateAppointmentAccepted,
			Subject: "Your appointment on {{date}} is confirmed",
			Body: "Dear {{name}},\n\n" +
				"Dr. {{doctor}} has accepted your appointment on {{date}} at {{time}}.\n" +
				"Reason: {{reason}}\n\n" +
				"Please arrive a few minutes early.\n",
		},
		{
			ID:      TemplateAppointmentRejected,
			Subject: "Your appointment request for {{date}} was declined",
			Body: "Dear {{name}},\n\n" +
				"Dr. {{doctor}} is unable to see you on {{date}} at {{time}}.\n" +
				"You can request another slot from the doctor's profile.\n",
		},
	} {
		e.Register(t)
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render fills the template. Placeholders absent from data are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
