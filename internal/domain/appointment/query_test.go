package appointment

import (
	"context"
	"strings"
	"testing"
)

type fakeNames struct {
	patients map[string]string
	doctors  map[string]string
}

func (f fakeNames) MatchNames(_ context.Context, term string) (NameMatches, error) {
	term = strings.ToLower(term)
	var m NameMatches
	for id, name := range f.patients {
		if strings.Contains(strings.ToLower(name), term) {
			m.PatientIDs = append(m.PatientIDs, id)
		}
	}
	for id, name := range f.doctors {
		if strings.Contains(strings.ToLower(name), term) {
			m.DoctorIDs = append(m.DoctorIDs, id)
		}
	}
	return m, nil
}

var testNames = fakeNames{
	patients: map[string]string{"pat-seed": "Ada Lovelace", "pat-2": "Grace Hopper"},
	doctors:  map[string]string{"dr-1": "Gregory House", "dr-2": "Lisa Cuddy"},
}

func seedSchedule(repo Repository) {
	for i := 0; i < 5; i++ {
		seed(repo, "dr-1", at(4, 9+i, 0), 30, StatusPending)
		seed(repo, "dr-2", at(4, 9+i, 0), 30, StatusConfirmed)
	}
	seed(repo, "dr-2", at(5, 9, 0), 30, StatusCancelled)
}

func TestQueryService_Visibility(t *testing.T) {
	repo := NewMemoryRepository()
	seedSchedule(repo)
	svc := NewQueryService(repo, testNames)

	page, err := svc.Query(context.Background(), Criteria{Caller: doctorCaller, PageSize: 3})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("expected total of own appointments 5, got %d", page.Total)
	}
	if len(page.Items) != 3 {
		t.Errorf("expected a full page of 3, got %d", len(page.Items))
	}
	for _, a := range page.Items {
		if a.DoctorID != "dr-1" {
			t.Errorf("doctor saw appointment of %s", a.DoctorID)
		}
	}

	_, err = svc.Query(context.Background(), Criteria{Caller: doctorCaller, DoctorID: "dr-2"})
	if KindOf(err) != KindAuthorization {
		t.Errorf("expected authorization error filtering another doctor, got %v", err)
	}

	all, err := svc.Query(context.Background(), Criteria{Caller: staffCaller})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if all.Total != 11 {
		t.Errorf("staff should see all 11, got %d", all.Total)
	}
}

func TestQueryService_OrderingAndPaging(t *testing.T) {
	repo := NewMemoryRepository()
	seedSchedule(repo)
	svc := NewQueryService(repo, testNames)

	var seen []*Appointment
	for p := 1; p <= 3; p++ {
		page, err := svc.Query(context.Background(), Criteria{Caller: staffCaller, Page: p, PageSize: 4})
		if err != nil {
			t.Fatalf("page %d: %v", p, err)
		}
		if page.Page != p || page.PageSize != 4 {
			t.Errorf("unexpected page metadata %+v", page)
		}
		seen = append(seen, page.Items...)
	}
	if len(seen) != 11 {
		t.Fatalf("expected 11 across pages, got %d", len(seen))
	}
	for i := 1; i < len(seen); i++ {
		prev, cur := seen[i-1], seen[i]
		if cur.ScheduledAt.Before(prev.ScheduledAt) ||
			(cur.ScheduledAt.Equal(prev.ScheduledAt) && cur.ID.String() < prev.ID.String()) {
			t.Errorf("items %d and %d out of order", i-1, i)
		}
	}
}

func TestQueryService_Filters(t *testing.T) {
	repo := NewMemoryRepository()
	seedSchedule(repo)
	svc := NewQueryService(repo, testNames)

	tests := []struct {
		name string
		cr   Criteria
		want int
	}{
		{"status", Criteria{Status: StatusCancelled}, 1},
		{"doctor", Criteria{DoctorID: "dr-2"}, 6},
		{"range", Criteria{From: at(4, 10, 0), To: at(4, 12, 0)}, 4},
		{"search doctor name", Criteria{Search: "cuddy"}, 6},
		{"search patient name", Criteria{Search: "LOVELACE"}, 11},
		{"search no match", Criteria{Search: "nobody"}, 0},
		{"specialty", Criteria{SpecialtyID: "derm"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cr.Caller = staffCaller
			page, err := svc.Query(context.Background(), tt.cr)
			if err != nil {
				t.Fatalf("Query() error: %v", err)
			}
			if page.Total != tt.want {
				t.Errorf("expected %d, got %d", tt.want, page.Total)
			}
			if page.Items == nil {
				t.Error("items should never be nil")
			}
		})
	}
}

func TestQueryService_InvalidCriteria(t *testing.T) {
	svc := NewQueryService(NewMemoryRepository(), nil)

	if _, err := svc.Query(context.Background(), Criteria{Caller: staffCaller, Status: "lost"}); KindOf(err) != KindValidation {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
	_, err := svc.Query(context.Background(), Criteria{Caller: staffCaller, From: at(5, 0, 0), To: at(4, 0, 0)})
	if KindOf(err) != KindValidation {
		t.Errorf("expected validation error for inverted range, got %v", err)
	}
	if _, err := svc.Query(context.Background(), Criteria{Caller: nobodyCaller}); KindOf(err) != KindAuthorization {
		t.Errorf("expected authorization error, got %v", err)
	}
}

func TestQueryService_PageSizeClamp(t *testing.T) {
	svc := NewQueryService(NewMemoryRepository(), nil)
	page, err := svc.Query(context.Background(), Criteria{Caller: staffCaller, PageSize: 1000, Page: -1})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if page.PageSize != 100 || page.Page != 1 {
		t.Errorf("expected page 1 size 100, got %d/%d", page.Page, page.PageSize)
	}
}
