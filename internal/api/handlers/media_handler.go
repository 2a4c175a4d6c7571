package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cimars/catalog/internal/config"
	"cimars/catalog/internal/models"
	"cimars/catalog/internal/services"
	"cimars/catalog/internal/storage"
)

const maxImagesPerUpload = 20

// MediaHandler moves listing images between clients and the media host.
type MediaHandler struct {
	cfg            *config.Config
	listingService services.IListingService
	media          storage.IMediaStore
}

func NewMediaHandler(cfg *config.Config, listingService services.IListingService, media storage.IMediaStore) *MediaHandler {
	return &MediaHandler{cfg: cfg, listingService: listingService, media: media}
}

// ListImages handles GET /v1/images/properties/:code
func (h *MediaHandler) ListImages(c *gin.Context) {
	code := c.Param("code")
	if _, err := services.ParseCode(code); err != nil {
		respondError(c, err, "list images")
		return
	}

	urls, err := h.media.List(c.Request.Context(), storage.ListingFolder(h.cfg, code))
	if err != nil {
		respondError(c, err, "list images")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "images": urls})
}

// UploadImages handles POST /v1/admin/properties/:id/images with one or
// more multipart "images" files.
func (h *MediaHandler) UploadImages(c *gin.Context) {
	ctx := c.Request.Context()
	listing, err := h.listingService.FindListingByID(ctx, "", c.Param("id"))
	if err != nil {
		respondError(c, err, "upload images")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, models.NewValidationError("images", "multipart form expected"), "upload images")
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		respondError(c, models.NewValidationError("images", "at least one image is required"), "upload images")
		return
	}
	if len(files) > maxImagesPerUpload {
		respondError(c, models.NewValidationError("images", "at most %d images per upload", maxImagesPerUpload), "upload images")
		return
	}

	folder := storage.ListingFolder(h.cfg, listing.Code)
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		file, err := fh.Open()
		if err != nil {
			h.keepUploaded(c, listing, urls)
			respondError(c, fmt.Errorf("opening %s: %w", fh.Filename, err), "upload images")
			return
		}
		url, err := h.media.Upload(ctx, folder, fh.Filename, fh.Header.Get("Content-Type"), file)
		file.Close()
		if err != nil {
			h.keepUploaded(c, listing, urls)
			respondError(c, fmt.Errorf("uploading %s: %w", fh.Filename, err), "upload images")
			return
		}
		urls = append(urls, url)
	}

	updated, err := h.listingService.AddImages(ctx, listing.ID.Hex(), urls)
	if err != nil {
		respondError(c, err, "upload images")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// keepUploaded records the images that reached the media host before a
// batch failed, so no stored object is left unreferenced.
func (h *MediaHandler) keepUploaded(c *gin.Context, listing *models.Listing, urls []string) {
	if len(urls) == 0 {
		return
	}
	if _, err := h.listingService.AddImages(c.Request.Context(), listing.ID.Hex(), urls); err != nil {
		slog.Error("failed to record partially uploaded images", "code", listing.Code, "count", len(urls), "error", err)
	}
}
