package appointment

import "time"

type EventType string

const (
	EventCreated   EventType = "appointment.created"
	EventConfirmed EventType = "appointment.confirmed"
	EventCancelled EventType = "appointment.cancelled"
	EventCheckedIn EventType = "appointment.checked_in"
	EventCompleted EventType = "appointment.completed"
	EventNoShow    EventType = "appointment.no_show"
)

var actionEvents = map[Action]EventType{
	ActionCreate:     EventCreated,
	ActionConfirm:    EventConfirmed,
	ActionCancel:     EventCancelled,
	ActionCheckIn:    EventCheckedIn,
	ActionComplete:   EventCompleted,
	ActionMarkNoShow: EventNoShow,
}

// Event describes an accepted lifecycle operation.
type Event struct {
	Type        EventType    `json:"type"`
	Appointment *Appointment `json:"appointment"`
	ActorID     string       `json:"actorId,omitempty"`
	OccurredAt  time.Time    `json:"occurredAt"`
}

// EventSink receives lifecycle events. Publish must not block the caller for
// long; slow consumers queue or drop.
type EventSink interface {
	Publish(e Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(e Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// MultiSink fans an event out to every sink in order.
type MultiSink []EventSink

func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(e)
		}
	}
}
