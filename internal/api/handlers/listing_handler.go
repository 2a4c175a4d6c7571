package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cimars/catalog/internal/models"
	"cimars/catalog/internal/services"
)

// ListingHandler serves the public, sanitized catalog.
type ListingHandler struct {
	listingService services.IListingService
}

func NewListingHandler(listingService services.IListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// SearchListings handles GET /v1/properties
func (h *ListingHandler) SearchListings(c *gin.Context) {
	filter, err := ParseListingFilter(c)
	if err != nil {
		respondError(c, err, "search properties")
		return
	}

	page, err := h.listingService.SearchListings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "search properties")
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetFeatured handles GET /v1/properties/featured
func (h *ListingHandler) GetFeatured(c *gin.Context) {
	listings, err := h.listingService.GetFeaturedListings(c.Request.Context())
	if err != nil {
		respondError(c, err, "retrieve featured properties")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// List returns every listing of kind (all kinds when empty).
func (h *ListingHandler) List(kind models.ListingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		listings, err := h.listingService.ListPublicListings(c.Request.Context(), kind)
		if err != nil {
			respondError(c, err, "list properties")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": listings})
	}
}

// Get returns one sanitized listing of kind by :id.
func (h *ListingHandler) Get(kind models.ListingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		listing, err := h.listingService.GetPublicListing(c.Request.Context(), kind, c.Param("id"))
		if err != nil {
			respondError(c, err, "retrieve property")
			return
		}
		c.JSON(http.StatusOK, listing)
	}
}
