package handlers

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"cimars/catalog/internal/models"
)

// ParseListingFilter reads search criteria and paging from the query
// string. Absent parameters leave the criterion unset.
func ParseListingFilter(c *gin.Context) (models.ListingFilter, error) {
	f := models.NewListingFilter()

	if raw, ok := c.GetQuery("page"); ok {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return f, models.ErrInvalidPage
		}
		f.Page = page
	}
	if raw, ok := c.GetQuery("limit"); ok {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return f, models.ErrInvalidLimit
		}
		f.Limit = limit
	}

	if raw := c.Query("dealType"); raw != "" {
		deal := models.DealType(raw)
		if !deal.Valid() {
			return f, models.NewValidationError("dealType", "must be one of Sale, Rent, got %q", raw)
		}
		f.DealType = &deal
	}
	if raw := c.Query("type"); raw != "" {
		kind := models.ListingKind(raw)
		if !kind.Valid() {
			return f, models.NewValidationError("type", "must be one of Construction, Land, got %q", raw)
		}
		f.Kind = &kind
	}
	if raw := c.Query("city"); raw != "" {
		f.City = &raw
	}
	if raw := c.Query("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return f, models.NewValidationError("featured", "must be true or false")
		}
		f.Featured = &featured
	}

	numbers := []struct {
		name string
		dst  **float64
	}{
		{"minPrice", &f.MinPrice},
		{"maxPrice", &f.MaxPrice},
		{"minArea", &f.MinArea},
		{"maxArea", &f.MaxArea},
	}
	for _, n := range numbers {
		raw := c.Query(n.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return f, models.NewValidationError(n.name, "must be a number")
		}
		if v < 0 {
			return f, models.NewValidationError(n.name, "must not be negative")
		}
		*n.dst = &v
	}
	return f, f.CheckPaging()
}
