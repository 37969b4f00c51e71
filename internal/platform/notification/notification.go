// Package notification delivers appointment messages by email and SMS.
// Templates are rendered with {{key}} substitution, delivery goes through
// pluggable senders, and the Dispatcher decouples delivery from the request
// that triggered it.
package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Channel is the medium a notification is delivered over.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt and its outcome.
type Notification struct {
	ID            string            `json:"id"`
	Channel       Channel           `json:"channel"`
	Recipient     string            `json:"recipient"`
	Subject       string            `json:"subject,omitempty"`
	Body          string            `json:"body"`
	TemplateID    string            `json:"templateId,omitempty"`
	TemplateData  map[string]string `json:"templateData,omitempty"`
	AppointmentID string            `json:"appointmentId,omitempty"`
	Status        string            `json:"status"`
	Attempts      int               `json:"attempts"`
	CreatedAt     time.Time         `json:"createdAt"`
	SentAt        *time.Time        `json:"sentAt,omitempty"`
	Error         string            `json:"error,omitempty"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template IDs match the appointment event types they are sent for.
const (
	TemplateConfirmed = "appointment.confirmed"
	TemplateCancelled = "appointment.cancelled"
)

type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine renders templates by replacing {{key}} placeholders.
// Placeholders without data are left as written.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateConfirmed,
		Subject: "Appointment confirmed: {{date}} at {{time}}",
		Body: "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{time}} " +
			"is confirmed. Please arrive a few minutes early.",
	})
	e.RegisterTemplate(Template{
		ID:      TemplateCancelled,
		Subject: "Appointment cancelled: {{date}} at {{time}}",
		Body: "Dear {{patient_name}}, your appointment with {{doctor_name}} on {{date}} at {{time}} " +
			"has been cancelled. Reason: {{reason}}.",
	})
	return e
}

// RegisterTemplate adds or replaces a template.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}

// Manager sends notifications and keeps a bounded in-memory history of the
// outcomes.
type Manager struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	limit     int

	mu      sync.RWMutex
	byID    map[string]*Notification
	history []string
}

// DefaultHistory is the number of notifications a Manager remembers.
const DefaultHistory = 1000

func NewManager(email EmailSender, sms SMSSender, tpl *TemplateEngine) *Manager {
	return &Manager{
		email:     email,
		sms:       sms,
		templates: tpl,
		limit:     DefaultHistory,
		byID:      make(map[string]*Notification),
	}
}

// Send delivers n over its channel and records the outcome. The returned
// error is the sender's; n is recorded either way.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	err := m.deliver(ctx, n)
	m.store(n)
	return err
}

// SendFromTemplate renders templateID with data and sends it to recipient.
func (m *Manager) SendFromTemplate(ctx context.Context, ch Channel, templateID string, data map[string]string, recipient string) (*Notification, error) {
	return m.sendTemplate(ctx, ch, templateID, data, recipient, "")
}

func (m *Manager) sendTemplate(ctx context.Context, ch Channel, templateID string, data map[string]string, recipient, appointmentID string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	n := &Notification{
		Channel:       ch,
		Recipient:     recipient,
		Subject:       subject,
		Body:          body,
		TemplateID:    templateID,
		TemplateData:  data,
		AppointmentID: appointmentID,
	}
	return n, m.Send(ctx, n)
}

// Retry re-sends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}

	m.mu.Lock()
	if n.Status != StatusFailed {
		m.mu.Unlock()
		return nil, fmt.Errorf("notification %q is %s, not failed", id, n.Status)
	}
	retry := *n
	m.mu.Unlock()

	err := m.deliver(ctx, &retry)

	m.mu.Lock()
	*n = retry
	m.mu.Unlock()
	return &retry, err
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	var err error
	switch n.Channel {
	case ChannelEmail:
		err = m.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		err = m.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		err = fmt.Errorf("unsupported channel %q", n.Channel)
	}

	n.Attempts++
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	sentAt := time.Now().UTC()
	n.Status = StatusSent
	n.SentAt = &sentAt
	n.Error = ""
	return nil
}

func (m *Manager) store(n *Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[n.ID]; !exists {
		m.history = append(m.history, n.ID)
	}
	m.byID[n.ID] = n
	for len(m.history) > m.limit {
		delete(m.byID, m.history[0])
		m.history = m.history[1:]
	}
}

func (m *Manager) Get(id string) (*Notification, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

// List returns remembered notifications, newest first, optionally filtered by
// recipient.
func (m *Manager) List(recipient string, limit int) []Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Notification, 0)
	for i := len(m.history) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		n := m.byID[m.history[i]]
		if recipient != "" && n.Recipient != recipient {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// Stats counts remembered notifications by status.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]int)
	for _, n := range m.byID {
		stats[n.Status]++
	}
	return stats
}

// TemplateIDs lists the registered templates in order.
func (e *TemplateEngine) TemplateIDs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.templates))
	for id := range e.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
