package appointment

import "time"

const (
	SlotReasonBooked = "booked"
	SlotReasonPast   = "past"
)

// Slot is one bookable interval of a doctor's working day.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// ResolveSlots partitions the working window of date into slots of the
// calendar's granularity and marks each one available or not. A slot that
// would run past the end of the window is not produced. Only active
// appointments block a slot. The result is advisory: the store re-checks at
// create time.
func ResolveSlots(wh WorkingHours, date time.Time, appts []*Appointment, now time.Time) []Slot {
	start, end, ok := wh.Window(date)
	if !ok {
		return []Slot{}
	}

	step := wh.slot()
	slots := []Slot{}
	for s := start; !s.Add(step).After(end); s = s.Add(step) {
		slot := Slot{Start: s, End: s.Add(step), Available: true}
		switch {
		case bookedDuring(appts, slot.Start, slot.End):
			slot.Available = false
			slot.Reason = SlotReasonBooked
		case s.Before(now):
			slot.Available = false
			slot.Reason = SlotReasonPast
		}
		slots = append(slots, slot)
	}
	return slots
}

func bookedDuring(appts []*Appointment, start, end time.Time) bool {
	for _, a := range appts {
		if a.Status.Active() && a.Overlaps(start, end) {
			return true
		}
	}
	return false
}
