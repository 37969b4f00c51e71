package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/medsched/scheduler/internal/domain/appointment"
)

// Patient is a bookable patient.
type Patient struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
	Phone string `mapstructure:"phone"`
}

type Specialty struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// Doctor carries the schedule the calendar is built from. Start and End are
// "HH:MM" in Timezone; ClosedDates are YYYY-MM-DD dates in the same zone.
type Doctor struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Email       string   `mapstructure:"email"`
	Phone       string   `mapstructure:"phone"`
	Specialties []string `mapstructure:"specialties"`
	Start       string   `mapstructure:"start"`
	End         string   `mapstructure:"end"`
	SlotMinutes int      `mapstructure:"slot_minutes"`
	Weekdays    []string `mapstructure:"weekdays"`
	Timezone    string   `mapstructure:"timezone"`
	ClosedDates []string `mapstructure:"closed_dates"`
}

// Clinic is the on-disk shape of the clinic file.
type Clinic struct {
	Timezone    string      `mapstructure:"timezone"`
	Specialties []Specialty `mapstructure:"specialties"`
	Doctors     []Doctor    `mapstructure:"doctors"`
	Patients    []Patient   `mapstructure:"patients"`
}

// Contact is where notifications for a person are delivered.
type Contact struct {
	Name  string
	Email string
	Phone string
}

type doctorEntry struct {
	Doctor
	hours  appointment.WorkingHours
	closed map[string]bool
}

// Directory is the read-only reference data of one clinic. It serves as the
// scheduling calendar, the name index for search, and the contact book for
// notifications.
type Directory struct {
	patients    map[string]Patient
	specialties map[string]Specialty
	doctors     map[string]*doctorEntry
}

// Load reads a clinic file. Any format viper understands works; YAML is the
// usual one.
func Load(path string) (*Directory, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read clinic file %s: %w", path, err)
	}
	var c Clinic
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode clinic file %s: %w", path, err)
	}
	return New(c)
}

// New indexes c, rejecting duplicate ids, unknown specialties and malformed
// schedules.
func New(c Clinic) (*Directory, error) {
	d := &Directory{
		patients:    make(map[string]Patient, len(c.Patients)),
		specialties: make(map[string]Specialty, len(c.Specialties)),
		doctors:     make(map[string]*doctorEntry, len(c.Doctors)),
	}

	for _, s := range c.Specialties {
		if s.ID == "" {
			return nil, fmt.Errorf("specialty without id")
		}
		if _, dup := d.specialties[s.ID]; dup {
			return nil, fmt.Errorf("duplicate specialty %q", s.ID)
		}
		d.specialties[s.ID] = s
	}
	for _, p := range c.Patients {
		if p.ID == "" {
			return nil, fmt.Errorf("patient without id")
		}
		if _, dup := d.patients[p.ID]; dup {
			return nil, fmt.Errorf("duplicate patient %q", p.ID)
		}
		d.patients[p.ID] = p
	}
	for _, doc := range c.Doctors {
		if doc.ID == "" {
			return nil, fmt.Errorf("doctor without id")
		}
		if _, dup := d.doctors[doc.ID]; dup {
			return nil, fmt.Errorf("duplicate doctor %q", doc.ID)
		}
		for _, sid := range doc.Specialties {
			if _, ok := d.specialties[sid]; !ok {
				return nil, fmt.Errorf("doctor %q: unknown specialty %q", doc.ID, sid)
			}
		}
		entry, err := buildDoctor(doc, c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("doctor %q: %w", doc.ID, err)
		}
		d.doctors[doc.ID] = entry
	}
	return d, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func buildDoctor(doc Doctor, clinicTZ string) (*doctorEntry, error) {
	tz := doc.Timezone
	if tz == "" {
		tz = clinicTZ
	}
	loc := time.UTC
	if tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
	}

	start, err := minuteOfDay(doc.Start, "09:00")
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := minuteOfDay(doc.End, "17:00")
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if end <= start {
		return nil, fmt.Errorf("end %s is not after start %s", doc.End, doc.Start)
	}
	if doc.SlotMinutes < 0 {
		return nil, fmt.Errorf("slot_minutes must be positive")
	}

	names := doc.Weekdays
	if len(names) == 0 {
		names = []string{"mon", "tue", "wed", "thu", "fri"}
	}
	weekdays := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		wd, ok := parseWeekday(n)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		weekdays = append(weekdays, wd)
	}

	closed := make(map[string]bool, len(doc.ClosedDates))
	for _, raw := range doc.ClosedDates {
		if _, err := time.Parse(time.DateOnly, raw); err != nil {
			return nil, fmt.Errorf("closed date %q: must be YYYY-MM-DD", raw)
		}
		closed[raw] = true
	}

	return &doctorEntry{
		Doctor: doc,
		hours: appointment.WorkingHours{
			StartMinute: start,
			EndMinute:   end,
			SlotMinutes: doc.SlotMinutes,
			Weekdays:    weekdays,
			Location:    loc,
		},
		closed: closed,
	}, nil
}

// parseWeekday accepts "mon" or "monday" in any case.
func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if len(name) < 3 {
		return 0, false
	}
	wd, ok := weekdayNames[name[:3]]
	if !ok || (len(name) > 3 && !strings.EqualFold(wd.String(), name)) {
		return 0, false
	}
	return wd, true
}

func minuteOfDay(raw, def string) (int, error) {
	if raw == "" {
		raw = def
	}
	if raw == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, fmt.Errorf("%q must be HH:MM", raw)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// WorkingHours implements appointment.Calendar.
func (d *Directory) WorkingHours(_ context.Context, doctorID string, date time.Time) (appointment.WorkingHours, error) {
	doc, ok := d.doctors[doctorID]
	if !ok {
		return appointment.WorkingHours{}, &appointment.NotFoundError{Resource: "doctor", ID: doctorID}
	}
	wh := doc.hours
	wh.Closed = doc.closed[date.Format(time.DateOnly)]
	return wh, nil
}

// MatchNames implements appointment.NameIndex with a case-insensitive
// substring match on display names.
func (d *Directory) MatchNames(_ context.Context, term string) (appointment.NameMatches, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	var m appointment.NameMatches
	if term == "" {
		return m, nil
	}
	for id, p := range d.patients {
		if strings.Contains(strings.ToLower(p.Name), term) {
			m.PatientIDs = append(m.PatientIDs, id)
		}
	}
	for id, doc := range d.doctors {
		if strings.Contains(strings.ToLower(doc.Name), term) {
			m.DoctorIDs = append(m.DoctorIDs, id)
		}
	}
	for id, s := range d.specialties {
		if strings.Contains(strings.ToLower(s.Name), term) {
			m.SpecialtyIDs = append(m.SpecialtyIDs, id)
		}
	}
	return m, nil
}

func (d *Directory) HasPatient(_ context.Context, id string) bool {
	_, ok := d.patients[id]
	return ok
}

func (d *Directory) HasSpecialty(_ context.Context, id string) bool {
	_, ok := d.specialties[id]
	return ok
}

// DoctorPractices reports whether the doctor is listed under the specialty.
func (d *Directory) DoctorPractices(_ context.Context, doctorID, specialtyID string) bool {
	doc, ok := d.doctors[doctorID]
	if !ok {
		return false
	}
	for _, s := range doc.Specialties {
		if s == specialtyID {
			return true
		}
	}
	return false
}

// PatientContact returns the contact details of a patient.
func (d *Directory) PatientContact(id string) (Contact, bool) {
	p, ok := d.patients[id]
	if !ok {
		return Contact{}, false
	}
	return Contact{Name: p.Name, Email: p.Email, Phone: p.Phone}, true
}

// DoctorContact returns the contact details of a doctor.
func (d *Directory) DoctorContact(id string) (Contact, bool) {
	doc, ok := d.doctors[id]
	if !ok {
		return Contact{}, false
	}
	return Contact{Name: doc.Name, Email: doc.Email, Phone: doc.Phone}, true
}

// DoctorName returns the display name of a doctor, or the id when unknown.
func (d *Directory) DoctorName(id string) string {
	if doc, ok := d.doctors[id]; ok && doc.Name != "" {
		return doc.Name
	}
	return id
}
