package models

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 8
)

// ListingFilter carries the optional search criteria plus paging. Nil means
// the criterion is not applied.
type ListingFilter struct {
	DealType *DealType
	City     *string
	MinPrice *float64
	MaxPrice *float64
	MinArea  *float64
	MaxArea  *float64
	Featured *bool
	Kind     *ListingKind

	Page  int
	Limit int
}

// NewListingFilter returns a filter with default paging and no criteria.
func NewListingFilter() ListingFilter {
	return ListingFilter{Page: DefaultPage, Limit: DefaultLimit}
}

// CheckPaging validates Page and Limit. A page whose skip does not fit in
// an int64 is invalid.
func (f ListingFilter) CheckPaging() error {
	if f.Page < 1 {
		return ErrInvalidPage
	}
	if f.Limit < 1 {
		return ErrInvalidLimit
	}
	if int64(f.Page-1) > math.MaxInt64/int64(f.Limit) {
		return ErrInvalidPage
	}
	return nil
}

// Skip is the number of matching records before the requested page.
func (f ListingFilter) Skip() int64 {
	return int64(f.Page-1) * int64(f.Limit)
}

// ListingPage is one page of search results.
type ListingPage struct {
	Data       []*Listing `json:"data"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int64      `json:"totalPages"`
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int64 {
	if limit < 1 || total <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}
