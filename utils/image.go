package utils

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

const (
	// MaxImageSize is 10MB in bytes
	MaxImageSize = 10 * 1024 * 1024

	dataURLPrefix = "data:"
)

// AllowedImageTypes maps accepted MIME types to the file extension used in storage keys
var AllowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageDecodingError represents a malformed or unacceptable image payload
type ImageDecodingError struct {
	Code    string
	Message string
}

func (e *ImageDecodingError) Error() string {
	return e.Message
}

// DecodedImage is the binary payload of a data URL
type DecodedImage struct {
	Data        []byte
	ContentType string
	Extension   string
}

// IsDataURL reports whether value is an inline data: URL rather than a storage reference
func IsDataURL(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), dataURLPrefix)
}

// DecodeDataURL decodes a base64 "data:image/...;base64,..." URL and validates
// its type and size.
func DecodeDataURL(value string) (*DecodedImage, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, dataURLPrefix) {
		return nil, &ImageDecodingError{Code: "INVALID_IMAGE", Message: "Image must be a data URL"}
	}

	header, payload, ok := strings.Cut(strings.TrimPrefix(value, dataURLPrefix), ",")
	if !ok {
		return nil, &ImageDecodingError{Code: "INVALID_IMAGE", Message: "Image data URL has no payload"}
	}

	params := strings.Split(header, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	if len(params) < 2 || !strings.EqualFold(strings.TrimSpace(params[len(params)-1]), "base64") {
		return nil, &ImageDecodingError{Code: "INVALID_IMAGE", Message: "Image data URL must be base64 encoded"}
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize+3 {
		return nil, tooLarge()
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &ImageDecodingError{Code: "INVALID_IMAGE", Message: "Image payload is not valid base64"}
	}

	return ValidateImage(data, mediaType)
}

// ValidateImage checks size and sniffs the real content type. A declared type, when
// given, must agree with the sniffed one.
func ValidateImage(data []byte, declared string) (*DecodedImage, error) {
	if len(data) == 0 {
		return nil, &ImageDecodingError{Code: "INVALID_IMAGE", Message: "Image is empty"}
	}
	if len(data) > MaxImageSize {
		return nil, tooLarge()
	}

	sniffed := http.DetectContentType(data)
	ext, ok := AllowedImageTypes[sniffed]
	if !ok {
		return nil, &ImageDecodingError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only PNG, JPEG, GIF and WEBP images are allowed",
		}
	}
	if declared != "" && normalizeImageType(declared) != sniffed {
		return nil, &ImageDecodingError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Image declared as %s but contains %s", declared, sniffed),
		}
	}

	return &DecodedImage{Data: data, ContentType: sniffed, Extension: ext}, nil
}

func normalizeImageType(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		return "image/jpeg"
	}
	return mediaType
}

func tooLarge() error {
	return &ImageDecodingError{
		Code:    "FILE_TOO_LARGE",
		Message: fmt.Sprintf("Image size exceeds maximum allowed size of %d MB", MaxImageSize/(1024*1024)),
	}
}
