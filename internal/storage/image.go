package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/nfnt/resize"

	"cimars/catalog/internal/models"
)

const jpegQuality = 85

var acceptedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// NormalizeImage checks that data is a JPEG or PNG no larger than
// maxSizeMB and shrinks it to fit maxDimension on both sides. Downsized
// images are re-encoded as JPEG; others are returned untouched.
func NormalizeImage(data []byte, maxDimension, maxSizeMB int) ([]byte, string, error) {
	maxBytes := maxSizeMB * 1024 * 1024
	if maxSizeMB > 0 && len(data) > maxBytes {
		return nil, "", models.NewValidationError("file", "exceeds %d MB", maxSizeMB)
	}

	contentType := http.DetectContentType(data)
	if _, ok := acceptedImageTypes[contentType]; !ok {
		return nil, "", models.NewValidationError("file", "unsupported content type %s", contentType)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", models.NewValidationError("file", "corrupt image: %v", err)
	}

	bounds := img.Bounds()
	if maxDimension <= 0 || (bounds.Dx() <= maxDimension && bounds.Dy() <= maxDimension) {
		return data, contentType, nil
	}

	resized := resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", fmt.Errorf("re-encoding resized image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func extensionFor(contentType string) string {
	if ext, ok := acceptedImageTypes[contentType]; ok {
		return ext
	}
	return ""
}
