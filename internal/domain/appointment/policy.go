package appointment

// Caller is the authenticated identity behind a request, reduced to the
// capabilities the scheduler cares about.
type Caller struct {
	UserID                string
	IsDoctor              bool
	IsAdministrativeStaff bool
	// DoctorID is the directory id of the doctor the caller is, when IsDoctor.
	DoctorID string
}

// Policy decides which appointments a caller may see and act on.
type Policy interface {
	// Authorize rejects an appointment outside the caller's scope.
	Authorize(a *Appointment) error
	// AuthorizeDoctor rejects access to another doctor's schedule.
	AuthorizeDoctor(doctorID string) error
	// Scope narrows a store filter to the caller's visible appointments.
	Scope(f Filter) Filter
}

// PolicyFor selects the policy for a caller. Administrative staff see
// everything even if they are also doctors.
func PolicyFor(c Caller) (Policy, error) {
	switch {
	case c.IsAdministrativeStaff:
		return StaffPolicy{}, nil
	case c.IsDoctor:
		if c.DoctorID == "" {
			return nil, &AuthorizationError{Reason: "doctor caller has no doctor id"}
		}
		return DoctorPolicy{DoctorID: c.DoctorID}, nil
	default:
		return nil, &AuthorizationError{Reason: "caller is neither a doctor nor administrative staff"}
	}
}

// StaffPolicy grants access to all appointments.
type StaffPolicy struct{}

func (StaffPolicy) Authorize(*Appointment) error { return nil }
func (StaffPolicy) AuthorizeDoctor(string) error { return nil }
func (StaffPolicy) Scope(f Filter) Filter        { return f }

// DoctorPolicy limits a doctor to their own appointments.
type DoctorPolicy struct {
	DoctorID string
}

func (p DoctorPolicy) Authorize(a *Appointment) error {
	return p.AuthorizeDoctor(a.DoctorID)
}

func (p DoctorPolicy) AuthorizeDoctor(doctorID string) error {
	if doctorID != p.DoctorID {
		return &AuthorizationError{Reason: "appointment belongs to another doctor"}
	}
	return nil
}

// Scope intersects the filter's doctor set with the caller's own id.
func (p DoctorPolicy) Scope(f Filter) Filter {
	if f.DoctorIDs == nil {
		f.DoctorIDs = []string{p.DoctorID}
		return f
	}
	scoped := []string{}
	if contains(f.DoctorIDs, p.DoctorID) {
		scoped = append(scoped, p.DoctorID)
	}
	f.DoctorIDs = scoped
	return f
}
