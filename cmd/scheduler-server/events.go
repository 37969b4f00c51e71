package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsched/scheduler/internal/domain/appointment"
	"github.com/medsched/scheduler/internal/domain/directory"
	"github.com/medsched/scheduler/internal/platform/auth"
	"github.com/medsched/scheduler/internal/platform/notification"
	"github.com/medsched/scheduler/internal/platform/websocket"
)

// hubSink forwards every lifecycle event to the live feed, on the shared
// topic and on the doctor's own topic.
func hubSink(hub *websocket.Hub, logger zerolog.Logger) appointment.EventSink {
	return appointment.SinkFunc(func(e appointment.Event) {
		a := e.Appointment
		data, err := json.Marshal(a)
		if err != nil {
			logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("encode live event")
			return
		}
		ev := websocket.Event{
			Type:          string(e.Type),
			AppointmentID: a.ID.String(),
			DoctorID:      a.DoctorID,
			Status:        string(a.Status),
			Timestamp:     e.OccurredAt,
			Data:          data,
		}
		hub.Broadcast(websocket.TopicAppointments, ev)
		hub.Broadcast(websocket.DoctorTopic(a.DoctorID), ev)
	})
}

var notifyTemplates = map[appointment.EventType]string{
	appointment.EventConfirmed: notification.TemplateConfirmed,
	appointment.EventCancelled: notification.TemplateCancelled,
}

// notifySink queues a patient message for confirmations and cancellations.
// Times are rendered in the doctor's zone.
func notifySink(d *notification.Dispatcher, dir *directory.Directory, logger zerolog.Logger) appointment.EventSink {
	return appointment.SinkFunc(func(e appointment.Event) {
		tpl, ok := notifyTemplates[e.Type]
		if !ok {
			return
		}
		a := e.Appointment
		contact, ok := dir.PatientContact(a.PatientID)
		if !ok || (contact.Email == "" && contact.Phone == "") {
			logger.Debug().Str("patient_id", a.PatientID).Msg("no contact details, skipping notification")
			return
		}

		local := a.ScheduledAt
		if wh, err := dir.WorkingHours(context.Background(), a.DoctorID, a.ScheduledAt); err == nil && wh.Location != nil {
			local = a.ScheduledAt.In(wh.Location)
		}
		data := map[string]string{
			"patient_name": contact.Name,
			"doctor_name":  dir.DoctorName(a.DoctorID),
			"date":         local.Format(time.DateOnly),
			"time":         local.Format("15:04"),
		}
		if a.CancelReason != nil {
			data["reason"] = *a.CancelReason
		}

		d.Enqueue(notification.Message{
			TemplateID:    tpl,
			Data:          data,
			Email:         contact.Email,
			Phone:         contact.Phone,
			AppointmentID: a.ID.String(),
		})
	})
}

// topicPolicy lets staff follow every topic and doctors only their own.
func topicPolicy(ctx context.Context, topic string) bool {
	if auth.IsAdministrative(ctx) {
		return true
	}
	id, ok := websocket.DoctorFromTopic(topic)
	return ok && auth.IsDoctor(ctx) && id == auth.DoctorIDFromContext(ctx)
}
