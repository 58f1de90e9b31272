// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/id"
	"explostock/internal/domain"
)

// --- Pagination ---

// PaginationRequest contains limit/offset paging and ordering parameters.
type PaginationRequest struct {
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
	OrderBy string `form:"orderBy"`
}

// ToListFilter converts paging parameters to the domain filter.
func (p PaginationRequest) ToListFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	if p.Limit > 0 {
		f.Limit = p.Limit
	}
	f.Offset = p.Offset
	if p.OrderBy != "" {
		f.OrderBy = p.OrderBy
	}
	return f.Normalize()
}

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// FromListResult converts a domain page.
func FromListResult[T any](r domain.ListResult[T]) ListResponse[T] {
	items := r.Items
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{
		Items:      items,
		TotalCount: r.TotalCount,
		Limit:      r.Limit,
		Offset:     r.Offset,
	}
}

// ItemsResponse wraps an unpaged slice.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewItemsResponse never renders a null slice.
func NewItemsResponse[T any](items []T) ItemsResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ItemsResponse[T]{Items: items, Count: len(items)}
}

// --- Period ---

// PeriodRequest is an optional [from, to) interval in RFC 3339.
type PeriodRequest struct {
	From *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To   *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ToDateRange converts the interval, rejecting an inverted one.
func (p PeriodRequest) ToDateRange() (domain.DateRange, error) {
	if p.From != nil && p.To != nil && !p.To.After(*p.From) {
		return domain.DateRange{}, apperror.NewValidation("to must be after from").
			WithDetail("from", p.From).
			WithDetail("to", p.To)
	}
	return domain.DateRange{From: p.From, To: p.To}, nil
}

// --- ID parsing ---

// ParseID parses a required identifier.
func ParseID(field, value string) (id.ID, error) {
	parsed, err := id.Parse(value)
	if err != nil || id.IsNil(parsed) {
		return id.Nil(), apperror.NewValidation("invalid " + field).
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return parsed, nil
}

// ParseOptionalID parses an identifier that may be empty.
func ParseOptionalID(field, value string) (*id.ID, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := ParseID(field, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// optional returns nil for an empty string.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
