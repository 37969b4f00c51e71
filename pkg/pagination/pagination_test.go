package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 1 {
		t.Errorf("expected default page 1, got %d", p.Page)
	}
	if p.PageSize != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, p.PageSize)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=3&page_size=50", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Page != 3 {
		t.Errorf("expected page 3, got %d", p.Page)
	}
	if p.PageSize != 50 {
		t.Errorf("expected page size 50, got %d", p.PageSize)
	}
	if p.Offset() != 100 {
		t.Errorf("expected offset 100, got %d", p.Offset())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{-2, -5, 1, DefaultPageSize},
		{2, 500, 2, MaxPageSize},
		{4, 10, 4, 10},
	}
	for _, tt := range tests {
		p := Normalize(tt.page, tt.size)
		if p.Page != tt.wantPage || p.PageSize != tt.wantSize {
			t.Errorf("Normalize(%d, %d) = %+v, want page %d size %d", tt.page, tt.size, p, tt.wantPage, tt.wantSize)
		}
	}
}

func TestNewResponse(t *testing.T) {
	p := Normalize(1, 10)
	resp := NewResponse([]int{1, 2}, 25, p)
	if !resp.HasMore {
		t.Error("expected HasMore with 25 total and 10 per page")
	}
	last := NewResponse([]int{1}, 25, Normalize(3, 10))
	if last.HasMore {
		t.Error("expected no more results on the last page")
	}
}
