package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medsched/scheduler/pkg/pagination"
)

// NameIndex resolves a free-text term to the ids of patients, doctors and
// specialties whose display names contain it, case-insensitively.
type NameIndex interface {
	MatchNames(ctx context.Context, term string) (NameMatches, error)
}

// Criteria is a caller's appointment search.
type Criteria struct {
	Caller      Caller
	Search      string
	Status      Status
	SpecialtyID string
	DoctorID    string
	From        time.Time
	To          time.Time
	Page        int
	PageSize    int
}

// Page is one page of query results.
type Page struct {
	Items    []*Appointment `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

// QueryService answers list and search requests. The caller's policy scope is
// applied to the store filter before pagination, so totals and pages only ever
// count visible appointments.
type QueryService struct {
	repo  Repository
	names NameIndex
}

func NewQueryService(repo Repository, names NameIndex) *QueryService {
	return &QueryService{repo: repo, names: names}
}

func (s *QueryService) Query(ctx context.Context, cr Criteria) (*Page, error) {
	policy, err := PolicyFor(cr.Caller)
	if err != nil {
		return nil, err
	}
	if cr.Status != "" && !cr.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown status %q", cr.Status))
	}
	if !cr.From.IsZero() && !cr.To.IsZero() && !cr.To.After(cr.From) {
		return nil, invalid("to", "must be after from")
	}

	params := pagination.Normalize(cr.Page, cr.PageSize)
	empty := &Page{Items: []*Appointment{}, Page: params.Page, PageSize: params.PageSize}

	f := Filter{
		Status:      cr.Status,
		SpecialtyID: cr.SpecialtyID,
		From:        cr.From,
		To:          cr.To,
	}
	if cr.DoctorID != "" {
		if err := policy.AuthorizeDoctor(cr.DoctorID); err != nil {
			return nil, err
		}
		f.DoctorIDs = []string{cr.DoctorID}
	}

	if term := strings.TrimSpace(cr.Search); term != "" && s.names != nil {
		m, err := s.names.MatchNames(ctx, term)
		if err != nil {
			return nil, fmt.Errorf("match names: %w", err)
		}
		if m.Empty() {
			return empty, nil
		}
		f.Match = &m
	}

	f = policy.Scope(f)
	if f.DoctorIDs != nil && len(f.DoctorIDs) == 0 {
		return empty, nil
	}

	items, total, err := s.repo.Query(ctx, f, params.PageSize, params.Offset())
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return &Page{Items: items, Total: total, Page: params.Page, PageSize: params.PageSize}, nil
}
