package appointment

import (
	"testing"
)

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		name    string
		caller  Caller
		want    interface{}
		wantErr bool
	}{
		{"staff", staffCaller, StaffPolicy{}, false},
		{"doctor", doctorCaller, DoctorPolicy{DoctorID: "dr-1"}, false},
		{"staff and doctor", superCaller, StaffPolicy{}, false},
		{"no capability", nobodyCaller, nil, true},
		{"doctor without id", Caller{IsDoctor: true}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PolicyFor(tt.caller)
			if tt.wantErr {
				if KindOf(err) != KindAuthorization {
					t.Fatalf("expected authorization error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, p)
			}
		})
	}
}

func TestDoctorPolicy_Scope(t *testing.T) {
	p := DoctorPolicy{DoctorID: "dr-1"}

	f := p.Scope(Filter{})
	if len(f.DoctorIDs) != 1 || f.DoctorIDs[0] != "dr-1" {
		t.Errorf("expected scope to own id, got %v", f.DoctorIDs)
	}

	f = p.Scope(Filter{DoctorIDs: []string{"dr-1", "dr-2"}})
	if len(f.DoctorIDs) != 1 || f.DoctorIDs[0] != "dr-1" {
		t.Errorf("expected intersection [dr-1], got %v", f.DoctorIDs)
	}

	f = p.Scope(Filter{DoctorIDs: []string{"dr-2"}})
	if f.DoctorIDs == nil || len(f.DoctorIDs) != 0 {
		t.Errorf("expected empty non-nil set, got %#v", f.DoctorIDs)
	}
}

func TestDoctorPolicy_Authorize(t *testing.T) {
	p := DoctorPolicy{DoctorID: "dr-1"}
	if err := p.Authorize(&Appointment{DoctorID: "dr-1"}); err != nil {
		t.Errorf("own appointment: %v", err)
	}
	if err := p.Authorize(&Appointment{DoctorID: "dr-2"}); KindOf(err) != KindAuthorization {
		t.Errorf("expected authorization error, got %v", err)
	}
}

func TestStaffPolicy_Scope(t *testing.T) {
	f := StaffPolicy{}.Scope(Filter{})
	if f.DoctorIDs != nil {
		t.Errorf("staff scope should not restrict doctors, got %v", f.DoctorIDs)
	}
}
