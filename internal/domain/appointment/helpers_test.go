package appointment

import (
	"context"
	"sync"
	"time"
)

// Monday 3 March 2025, 08:00 UTC.
var testNow = time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.March, day, hour, minute, 0, 0, time.UTC)
}

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

func nineToFive() WorkingHours {
	return WorkingHours{
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		SlotMinutes: 30,
		Weekdays:    weekdays,
		Location:    time.UTC,
	}
}

type fakeCalendar struct {
	hours map[string]WorkingHours
}

func newFakeCalendar(doctorIDs ...string) *fakeCalendar {
	cal := &fakeCalendar{hours: map[string]WorkingHours{}}
	for _, id := range doctorIDs {
		cal.hours[id] = nineToFive()
	}
	return cal
}

func (f *fakeCalendar) WorkingHours(_ context.Context, doctorID string, _ time.Time) (WorkingHours, error) {
	wh, ok := f.hours[doctorID]
	if !ok {
		return WorkingHours{}, &NotFoundError{Resource: "doctor", ID: doctorID}
	}
	return wh, nil
}

var (
	staffCaller   = Caller{UserID: "desk-1", IsAdministrativeStaff: true}
	doctorCaller  = Caller{UserID: "u-dr-1", IsDoctor: true, DoctorID: "dr-1"}
	otherDoctor   = Caller{UserID: "u-dr-2", IsDoctor: true, DoctorID: "dr-2"}
	nobodyCaller  = Caller{UserID: "patient-7"}
	superCaller   = Caller{UserID: "chief", IsDoctor: true, IsAdministrativeStaff: true, DoctorID: "dr-1"}
	fixedClock    = func() time.Time { return testNow }
	defaultCreate = CreateRequest{
		PatientID:   "pat-1",
		DoctorID:    "dr-1",
		SpecialtyID: "cardio",
		ScheduledAt: at(3, 10, 0),
		Reason:      "chest pain follow-up",
	}
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newTestController(repo Repository, opts ...ControllerOption) *Controller {
	opts = append([]ControllerOption{WithClock(fixedClock)}, opts...)
	return NewController(repo, newFakeCalendar("dr-1", "dr-2"), opts...)
}

// seed stores an appointment directly with the given status, bypassing the
// controller.
func seed(repo Repository, doctorID string, start time.Time, minutes int, status Status) *Appointment {
	a := &Appointment{
		PatientID:       "pat-seed",
		DoctorID:        doctorID,
		SpecialtyID:     "cardio",
		ScheduledAt:     start,
		DurationMinutes: minutes,
		Status:          status,
		Reason:          "seeded",
		Priority:        PriorityNormal,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	if status == StatusCancelled {
		a.CancelReason = strPtr("seeded")
	}
	if err := repo.Create(context.Background(), a); err != nil {
		panic(err)
	}
	return a
}
