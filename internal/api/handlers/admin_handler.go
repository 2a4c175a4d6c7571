package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cimars/catalog/internal/auth"
	"cimars/catalog/internal/config"
	"cimars/catalog/internal/contracts"
	"cimars/catalog/internal/models"
	"cimars/catalog/internal/services"
)

// AdminHandler serves login and listing maintenance. Responses carry raw,
// unredacted records.
type AdminHandler struct {
	cfg            *config.Config
	listingService services.IListingService
}

func NewAdminHandler(cfg *config.Config, listingService services.IListingService) *AdminHandler {
	return &AdminHandler{cfg: cfg, listingService: listingService}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	if h.cfg.AdminEmail == "" || !strings.EqualFold(req.Email, h.cfg.AdminEmail) ||
		!auth.CheckPasswordHash(req.Password, h.cfg.AdminPasswordHash) {
		slog.Warn("admin login failed", "email", req.Email, "client", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := auth.GenerateJWT(h.cfg.AdminEmail, true, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, err, "issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": time.Now().Add(h.cfg.JwtTTL).UTC(),
	})
}

// Create validates the payload against the kind's schema and creates the
// listing. Any "type" in the body must agree with the route.
func (h *AdminHandler) Create(kind models.ListingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		schema, err := contracts.CreateSchemaFor(kind)
		if err != nil {
			respondError(c, err, "create property")
			return
		}
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable request body"})
			return
		}
		if err := contracts.Validate(schema, body); err != nil {
			respondError(c, err, "create property")
			return
		}

		var listing models.Listing
		if err := json.Unmarshal(body, &listing); err != nil {
			respondError(c, models.NewValidationError("body", "%v", err), "create property")
			return
		}
		listing.Kind = kind

		created, err := h.listingService.CreateListing(c.Request.Context(), &listing)
		if err != nil {
			respondError(c, err, "create property")
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// Update applies a partial JSON document to the listing of kind at :id.
func (h *AdminHandler) Update(kind models.ListingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch map[string]any
		if err := c.ShouldBindJSON(&patch); err != nil {
			respondError(c, models.NewValidationError("body", "must be a JSON object"), "update property")
			return
		}

		updated, err := h.listingService.UpdateListing(c.Request.Context(), kind, c.Param("id"), patch)
		if err != nil {
			respondError(c, err, "update property")
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func (h *AdminHandler) Delete(kind models.ListingKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.listingService.DeleteListing(c.Request.Context(), kind, c.Param("id")); err != nil {
			respondError(c, err, "delete property")
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GetRaw handles GET /v1/admin/properties/:id
func (h *AdminHandler) GetRaw(c *gin.Context) {
	listing, err := h.listingService.FindListingByID(c.Request.Context(), "", c.Param("id"))
	if err != nil {
		respondError(c, err, "retrieve property")
		return
	}
	c.JSON(http.StatusOK, listing)
}
