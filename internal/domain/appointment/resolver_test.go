package appointment

import (
	"testing"
	"time"
)

func TestResolveSlots_Scenario(t *testing.T) {
	booked := &Appointment{ScheduledAt: at(3, 10, 0), DurationMinutes: 30, Status: StatusConfirmed}
	slots := ResolveSlots(nineToFive(), at(3, 0, 0), []*Appointment{booked}, at(2, 12, 0))

	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(3, 9, 0)) || !slots[15].End.Equal(at(3, 17, 0)) {
		t.Errorf("unexpected bounds %v - %v", slots[0].Start, slots[15].End)
	}
	for i, s := range slots {
		if i > 0 && !s.Start.Equal(slots[i-1].End) {
			t.Errorf("slot %d not contiguous", i)
		}
		if s.Start.Equal(at(3, 10, 0)) {
			if s.Available || s.Reason != SlotReasonBooked {
				t.Errorf("10:00 should be booked, got %+v", s)
			}
			continue
		}
		if !s.Available {
			t.Errorf("slot %s should be available", s.Start.Format("15:04"))
		}
	}
}

func TestResolveSlots_PastSlots(t *testing.T) {
	slots := ResolveSlots(nineToFive(), at(3, 0, 0), nil, at(3, 12, 10))

	var past int
	for _, s := range slots {
		if s.Reason == SlotReasonPast {
			past++
			if s.Available {
				t.Errorf("past slot %s marked available", s.Start.Format("15:04"))
			}
		}
	}
	// 09:00 through 12:00 start before 12:10.
	if past != 7 {
		t.Errorf("expected 7 past slots, got %d", past)
	}
}

func TestResolveSlots_MultiSlotAppointment(t *testing.T) {
	long := &Appointment{ScheduledAt: at(3, 10, 0), DurationMinutes: 45, Status: StatusPending}
	slots := ResolveSlots(nineToFive(), at(3, 0, 0), []*Appointment{long}, at(2, 0, 0))

	blocked := map[string]bool{}
	for _, s := range slots {
		if !s.Available {
			blocked[s.Start.Format("15:04")] = true
		}
	}
	if len(blocked) != 2 || !blocked["10:00"] || !blocked["10:30"] {
		t.Errorf("expected 10:00 and 10:30 blocked, got %v", blocked)
	}
}

func TestResolveSlots_InactiveDoNotBlock(t *testing.T) {
	appts := []*Appointment{
		{ScheduledAt: at(3, 9, 0), DurationMinutes: 30, Status: StatusCancelled},
		{ScheduledAt: at(3, 9, 30), DurationMinutes: 30, Status: StatusNoShow},
		{ScheduledAt: at(3, 10, 0), DurationMinutes: 30, Status: StatusCompleted},
	}
	for _, s := range ResolveSlots(nineToFive(), at(3, 0, 0), appts, at(2, 0, 0)) {
		if !s.Available {
			t.Errorf("slot %s blocked by an inactive appointment", s.Start.Format("15:04"))
		}
	}
}

func TestResolveSlots_PartialTrailingSlot(t *testing.T) {
	wh := nineToFive()
	wh.EndMinute = 10*60 + 45

	slots := ResolveSlots(wh, at(3, 0, 0), nil, at(2, 0, 0))
	if len(slots) != 3 {
		t.Fatalf("expected 3 whole slots before 10:45, got %d", len(slots))
	}
	if !slots[2].End.Equal(at(3, 10, 30)) {
		t.Errorf("last slot should end 10:30, got %v", slots[2].End)
	}
}

func TestResolveSlots_NonWorkingDays(t *testing.T) {
	if got := ResolveSlots(nineToFive(), at(8, 0, 0), nil, at(2, 0, 0)); len(got) != 0 {
		t.Errorf("expected no slots on Saturday, got %d", len(got))
	}

	closed := nineToFive()
	closed.Closed = true
	if got := ResolveSlots(closed, at(3, 0, 0), nil, at(2, 0, 0)); len(got) != 0 {
		t.Errorf("expected no slots on a closed date, got %d", len(got))
	}
}

func TestResolveSlots_Soundness(t *testing.T) {
	appts := []*Appointment{
		{ScheduledAt: at(3, 9, 15), DurationMinutes: 20, Status: StatusConfirmed},
		{ScheduledAt: at(3, 13, 0), DurationMinutes: 90, Status: StatusInProgress},
		{ScheduledAt: at(3, 16, 50), DurationMinutes: 30, Status: StatusPending},
	}
	for _, s := range ResolveSlots(nineToFive(), at(3, 0, 0), appts, at(2, 0, 0)) {
		if !s.Available {
			continue
		}
		for _, a := range appts {
			if a.Overlaps(s.Start, s.End) {
				t.Errorf("available slot %s overlaps appointment at %s", s.Start.Format("15:04"), a.ScheduledAt.Format("15:04"))
			}
		}
	}
}

func TestWorkingHours_TimeZone(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	wh := nineToFive()
	wh.Location = loc

	start, end, ok := wh.Window(time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("expected Monday to be a working day")
	}
	if start.UTC().Hour() != 8 || end.UTC().Hour() != 16 {
		t.Errorf("expected 08:00-16:00 UTC, got %v-%v", start.UTC(), end.UTC())
	}
	if !wh.Contains(time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC), 30) {
		t.Error("08:00 UTC is 09:00 CET and should be inside working hours")
	}
	if wh.Contains(time.Date(2025, time.March, 3, 7, 30, 0, 0, time.UTC), 30) {
		t.Error("07:30 UTC is before opening")
	}
}
