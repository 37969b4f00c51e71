package appointment

import (
	"context"
	"time"
)

// DefaultSlotMinutes is used when a doctor's calendar does not set a
// granularity.
const DefaultSlotMinutes = 30

// WorkingHours describes when a doctor can be booked on a given date.
// StartMinute and EndMinute are minutes after local midnight in Location.
type WorkingHours struct {
	StartMinute int
	EndMinute   int
	SlotMinutes int
	Weekdays    []time.Weekday
	Location    *time.Location
	// Closed marks the date as unavailable regardless of weekday (holidays,
	// leave).
	Closed bool
}

// Calendar supplies working hours per doctor and date. The year, month and day
// of date are read as written, whatever its location. Implementations return
// a *NotFoundError for unknown doctors.
type Calendar interface {
	WorkingHours(ctx context.Context, doctorID string, date time.Time) (WorkingHours, error)
}

func (w WorkingHours) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

func (w WorkingHours) slot() time.Duration {
	if w.SlotMinutes <= 0 {
		return DefaultSlotMinutes * time.Minute
	}
	return time.Duration(w.SlotMinutes) * time.Minute
}

// WorksOn reports whether d is one of the doctor's working weekdays.
func (w WorkingHours) WorksOn(d time.Weekday) bool {
	for _, wd := range w.Weekdays {
		if wd == d {
			return true
		}
	}
	return false
}

// Day returns local midnight of the calendar date of t, in the calendar's
// location. The year, month and day of t are taken as written.
func (w WorkingHours) Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, w.loc())
}

// Window returns the working interval on the calendar date of t. ok is false
// on non-working days.
func (w WorkingHours) Window(t time.Time) (start, end time.Time, ok bool) {
	day := w.Day(t)
	if w.Closed || !w.WorksOn(day.Weekday()) || w.EndMinute <= w.StartMinute {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := day.Date()
	start = time.Date(y, m, d, 0, w.StartMinute, 0, 0, w.loc())
	end = time.Date(y, m, d, 0, w.EndMinute, 0, 0, w.loc())
	return start, end, true
}

// Contains reports whether [start, start+minutes) lies inside the working
// window of start's local date.
func (w WorkingHours) Contains(start time.Time, minutes int) bool {
	local := start.In(w.loc())
	from, to, ok := w.Window(local)
	if !ok {
		return false
	}
	end := local.Add(time.Duration(minutes) * time.Minute)
	return !local.Before(from) && !end.After(to)
}
