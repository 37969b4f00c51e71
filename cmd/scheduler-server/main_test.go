package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsched/scheduler/internal/config"
	"github.com/medsched/scheduler/internal/domain/appointment"
	"github.com/medsched/scheduler/internal/domain/directory"
	"github.com/medsched/scheduler/internal/platform/auth"
	"github.com/medsched/scheduler/internal/platform/notification"
	"github.com/medsched/scheduler/internal/platform/websocket"
)

const clinicFile = "../../internal/domain/directory/testdata/clinic.yaml"

func testConfig() *config.Config {
	return &config.Config{
		Env:                "test",
		LogLevel:           "disabled",
		AuthMode:           config.AuthModeDevelopment,
		StoreDriver:        config.StoreMemory,
		ClinicFile:         clinicFile,
		BookingHorizonDays: 90,
		GraceWindow:        15 * time.Minute,
		RequestTimeout:     5 * time.Second,
		BodyLimit:          "1M",
		NotifyQueueSize:    16,
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := testConfig()
	dir, err := directory.Load(cfg.ClinicFile)
	if err != nil {
		t.Fatalf("load clinic: %v", err)
	}
	st, err := openStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.close)
	return newApp(cfg, zerolog.Nop(), st, dir)
}

// nextWeekday returns 10:00 UTC on a weekday about a week from now.
func nextWeekday() time.Time {
	d := time.Now().UTC().AddDate(0, 0, 7)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, time.UTC)
}

func TestTopicPolicy(t *testing.T) {
	staff := auth.WithIdentity(context.Background(), "u1", []string{auth.RoleStaff}, "")
	doctor := auth.WithIdentity(context.Background(), "u2", []string{auth.RoleDoctor}, "dr-1")
	nobody := auth.WithIdentity(context.Background(), "u3", nil, "")

	tests := []struct {
		name  string
		ctx   context.Context
		topic string
		want  bool
	}{
		{"staff shared", staff, websocket.TopicAppointments, true},
		{"staff other doctor", staff, websocket.DoctorTopic("dr-2"), true},
		{"doctor own", doctor, websocket.DoctorTopic("dr-1"), true},
		{"doctor other", doctor, websocket.DoctorTopic("dr-2"), false},
		{"doctor shared", doctor, websocket.TopicAppointments, false},
		{"no role", nobody, websocket.DoctorTopic("dr-1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := topicPolicy(tt.ctx, tt.topic); got != tt.want {
				t.Errorf("topicPolicy(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestNotifySink(t *testing.T) {
	dir, err := directory.Load(clinicFile)
	if err != nil {
		t.Fatalf("load clinic: %v", err)
	}
	mgr := notification.NewManager(
		notification.LogEmailSender{Logger: zerolog.Nop()},
		notification.LogSMSSender{Logger: zerolog.Nop()},
		notification.NewTemplateEngine(),
	)
	d := notification.NewDispatcher(mgr, 8, zerolog.Nop())
	d.Start(context.Background())
	sink := notifySink(d, dir, zerolog.Nop())

	reason := "doctor unwell"
	appt := &appointment.Appointment{
		PatientID:    "pat-1",
		DoctorID:     "dr-2",
		ScheduledAt:  time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC),
		Status:       appointment.StatusCancelled,
		CancelReason: &reason,
	}
	sink.Publish(appointment.Event{Type: appointment.EventCancelled, Appointment: appt})
	sink.Publish(appointment.Event{Type: appointment.EventCreated, Appointment: appt})
	d.Close()

	sent := mgr.List("", 0)
	if len(sent) != 2 {
		t.Fatalf("expected email and sms, got %d notifications", len(sent))
	}
	for _, n := range sent {
		if n.TemplateID != notification.TemplateCancelled {
			t.Errorf("unexpected template %q", n.TemplateID)
		}
		// 14:00 UTC is 09:00 in New York in early March
		if n.TemplateData["time"] != "09:00" || n.TemplateData["doctor_name"] != "Lisa Cuddy" {
			t.Errorf("unexpected template data %v", n.TemplateData)
		}
		if !strings.Contains(n.Body, "doctor unwell") {
			t.Errorf("body should carry the reason: %q", n.Body)
		}
	}
}

func TestNotifySink_NoContact(t *testing.T) {
	dir, err := directory.Load(clinicFile)
	if err != nil {
		t.Fatalf("load clinic: %v", err)
	}
	mgr := notification.NewManager(nil, nil, notification.NewTemplateEngine())
	d := notification.NewDispatcher(mgr, 8, zerolog.Nop())
	d.Start(context.Background())

	appt := &appointment.Appointment{PatientID: "pat-2", DoctorID: "dr-1", ScheduledAt: nextWeekday()}
	notifySink(d, dir, zerolog.Nop()).Publish(appointment.Event{Type: appointment.EventConfirmed, Appointment: appt})
	d.Close()

	if n := len(mgr.List("", 0)); n != 0 {
		t.Errorf("expected no notifications for a patient without contact details, got %d", n)
	}
}

func TestServer_CreateAndConfirm(t *testing.T) {
	a := newTestApp(t)
	a.dispatcher.Start(context.Background())
	e := a.routes()

	feed := &websocket.Client{ID: "watcher", Topics: []string{websocket.DoctorTopic("dr-1")}, Send: make(chan []byte, 4)}
	a.hub.Register(feed)

	at := nextWeekday()
	body := fmt.Sprintf(`{"patientId":"pat-1","doctorId":"dr-1","specialtyId":"cardio","scheduledAt":%q,"reason":"chest pain"}`,
		at.Format(time.RFC3339))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created appointment.Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/appointments/"+created.ID.String()+"/confirm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate create: expected 409, got %d", rec.Code)
	}

	a.dispatcher.Close()
	if n := len(a.notifier.List("adler@patient.example", 0)); n != 1 {
		t.Errorf("expected one confirmation email, got %d", n)
	}

	var types []string
	for len(feed.Send) > 0 {
		var ev websocket.Event
		if err := json.Unmarshal(<-feed.Send, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		types = append(types, ev.Type)
	}
	want := []string{string(appointment.EventCreated), string(appointment.EventConfirmed)}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("expected live events %v, got %v", want, types)
	}
}

func TestServer_HealthIsPublic(t *testing.T) {
	a := newTestApp(t)
	a.cfg.AuthMode = config.AuthModeJWT
	a.cfg.AuthSigningKey = "secret"
	e := a.routes()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("api without token: expected 401, got %d", rec.Code)
	}
}

func TestServer_NotificationsAdminOnly(t *testing.T) {
	a := newTestApp(t)
	e := a.routes()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/notifications/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("dev admin: expected 200, got %d", rec.Code)
	}
}
