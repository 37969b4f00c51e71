package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Params holds 1-based page pagination.
type Params struct {
	Page     int
	PageSize int
}

// Normalize clamps page to at least 1 and page size to [1, MaxPageSize],
// substituting DefaultPageSize for non-positive sizes.
func Normalize(page, pageSize int) Params {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Params{Page: page, PageSize: pageSize}
}

// FromContext extracts page and page_size from the query string.
func FromContext(c echo.Context) Params {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return Normalize(page, size)
}

// Offset is the number of rows to skip.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset()+p.PageSize < total
}

// Response wraps a paginated API response.
type Response struct {
	Items    interface{} `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
	HasMore  bool        `json:"hasMore"`
}

func NewResponse(items interface{}, total int, p Params) *Response {
	return &Response{
		Items:    items,
		Total:    total,
		Page:     p.Page,
		PageSize: p.PageSize,
		HasMore:  p.HasNext(total),
	}
}
