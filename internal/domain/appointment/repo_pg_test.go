package appointment

import (
	"strings"
	"testing"
)

func TestFilterSQLWhere_Empty(t *testing.T) {
	where, args := Filter{}.sqlWhere()
	if where != ` WHERE 1=1` {
		t.Errorf("unexpected where: %q", where)
	}
	if len(args) != 0 {
		t.Errorf("expected no args, got %v", args)
	}
}

func TestFilterSQLWhere_AllFields(t *testing.T) {
	f := Filter{
		DoctorIDs:   []string{"dr-1"},
		Status:      StatusConfirmed,
		SpecialtyID: "cardio",
		From:        at(3, 0, 0),
		To:          at(4, 0, 0),
		Match:       &NameMatches{PatientIDs: []string{"pat-1"}},
	}
	where, args := f.sqlWhere()

	for _, frag := range []string{
		"doctor_id = ANY($1)",
		"status = $2",
		"specialty_id = $3",
		"scheduled_at >= $4",
		"scheduled_at < $5",
		"(patient_id = ANY($6) OR doctor_id = ANY($7) OR specialty_id = ANY($8))",
	} {
		if !strings.Contains(where, frag) {
			t.Errorf("where clause missing %q: %s", frag, where)
		}
	}
	if len(args) != 8 {
		t.Fatalf("expected 8 args, got %d", len(args))
	}
	if ids, ok := args[7].([]string); !ok || ids == nil || len(ids) != 0 {
		t.Errorf("nil match sets should bind as empty arrays, got %#v", args[7])
	}
}

func TestFilterSQLWhere_EmptyDoctorScope(t *testing.T) {
	where, args := Filter{DoctorIDs: []string{}}.sqlWhere()
	if !strings.Contains(where, "doctor_id = ANY($1)") {
		t.Errorf("empty doctor scope must still constrain: %s", where)
	}
	if len(args) != 1 {
		t.Errorf("expected 1 arg, got %d", len(args))
	}
}
