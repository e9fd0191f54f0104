// Package media prepares local images for vision model calls: MIME
// detection from magic bytes, downscaling to model limits, and data-URL
// encoding.
package media

import (
	"encoding/base64"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxDimension is the longest edge vision models accept without
	// downscaling.
	MaxDimension = 1568

	// MaxBytes caps the encoded payload sent to a vision endpoint.
	MaxBytes = 5 * 1024 * 1024

	// MinQuality is the lowest JPEG quality the encoder will try.
	MinQuality = 35
)

// supportedTypes are the image formats the pipeline can decode.
var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageData is a normalized image ready for a vision model.
type ImageData struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Base64 returns the image data base64-encoded.
func (img *ImageData) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// DataURL renders the image as a base64 data URL.
func (img *ImageData) DataURL() string {
	return "data:" + img.MimeType + ";base64," + img.Base64()
}

// Size returns the size in bytes.
func (img *ImageData) Size() int {
	return len(img.Data)
}

// DetectMIME returns the MIME type from magic bytes (not file extension).
func DetectMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsSupported reports whether the MIME type can be decoded.
func IsSupported(mimeType string) bool {
	return supportedTypes[mimeType]
}
