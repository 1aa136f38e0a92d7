package image

import (
	"bytes"
	"fmt"
	"image"
	"mime"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"nutrilens-server-go/internal/platform/config"
	"nutrilens-server-go/internal/platform/logging"
)

// SecurityValidator checks uploads against the allow-list, size and geometry limits,
// and rejects payloads that only pretend to be images.
type SecurityValidator struct {
	config *config.UploadConfig
	logger *logging.Logger
}

func NewSecurityValidator(cfg *config.UploadConfig, logger *logging.Logger) *SecurityValidator {
	return &SecurityValidator{config: cfg, logger: logger}
}

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
}

var formatMediaTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// NormalizeMediaType lowercases a Content-Type and drops its parameters.
func NormalizeMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(contentType)
	}
	if mt == "image/jpg" {
		return "image/jpeg"
	}
	return mt
}

// IsAllowed reports whether mediaType is on the upload allow-list.
func (v *SecurityValidator) IsAllowed(mediaType string) bool {
	mediaType = NormalizeMediaType(mediaType)
	for _, allowed := range v.config.AllowedTypes {
		if NormalizeMediaType(allowed) == mediaType {
			return true
		}
	}
	return false
}

// ValidateBytes runs every check on raw. declaredType is the client supplied media type.
func (v *SecurityValidator) ValidateBytes(raw []byte, declaredType string) ValidationResult {
	result := ValidationResult{MediaType: NormalizeMediaType(declaredType)}

	if len(raw) == 0 {
		result.Error = errEmpty
		return result
	}

	if !v.IsAllowed(declaredType) {
		result.Error = errInvalidType
		result.SecurityRisk = "unapproved format"
		return result
	}

	if int64(len(raw)) > v.config.MaxFileSize {
		result.Error = errTooLarge
		result.SecurityRisk = "file too large"
		v.logger.WarnTag("HTTP", "oversized upload: size=%d max_size=%d", len(raw), v.config.MaxFileSize)
		return result
	}

	if v.scanForMaliciousContent(raw) {
		result.Error = errNotImage
		result.SecurityRisk = "suspicious content"
		return result
	}

	decoded := v.validateImageDecoding(raw)
	if !decoded.IsValid {
		if !v.validateFileSignature(raw, formatOf(result.MediaType)) {
			v.logger.WarnTag("HTTP", "file signature mismatch: declared=%s header=%x", result.MediaType, raw[:min(len(raw), 16)])
		}
		return decoded
	}

	if !v.IsAllowed(decoded.MediaType) {
		decoded.IsValid = false
		decoded.Error = errInvalidType
		decoded.SecurityRisk = "content does not match an approved format"
		return decoded
	}

	return decoded
}

func formatOf(mediaType string) string {
	return strings.TrimPrefix(mediaType, "image/")
}

func (v *SecurityValidator) validateFileSignature(raw []byte, format string) bool {
	signature, ok := imageSignatures[format]
	if !ok {
		return true
	}
	if len(raw) < len(signature) {
		return false
	}
	return bytes.Equal(signature, raw[:len(signature)])
}

func (v *SecurityValidator) scanForMaliciousContent(raw []byte) bool {
	suspicious := [][]byte{
		{0x4D, 0x5A},             // PE executable
		{0x25, 0x50, 0x44, 0x46}, // PDF
		{0x50, 0x4B, 0x03, 0x04}, // zip
		{0x1F, 0x8B, 0x08},       // gzip
	}
	for _, signature := range suspicious {
		if bytes.HasPrefix(raw, signature) {
			v.logger.WarnTag("HTTP", "rejected upload with non-image signature %x", signature)
			return true
		}
	}

	head := raw[:min(len(raw), 1024)]
	if bytes.Contains(bytes.ToLower(head), []byte("<svg")) || bytes.Contains(bytes.ToLower(head), []byte("<script")) {
		v.logger.WarnTag("HTTP", "rejected upload with embedded markup")
		return true
	}
	return false
}

func (v *SecurityValidator) validateImageDecoding(raw []byte) ValidationResult {
	result := ValidationResult{FileSize: int64(len(raw))}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		result.Error = fmt.Errorf("%w: %v", errNotImage, err)
		result.SecurityRisk = "corrupted image data"
		return result
	}
	result.Format = format
	result.MediaType = formatMediaTypes[format]

	if (v.config.MaxWidth > 0 && cfg.Width > v.config.MaxWidth) || (v.config.MaxHeight > 0 && cfg.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("%w: %dx%d exceeds %dx%d", errDimensions, cfg.Width, cfg.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "dimensions too large"
		return result
	}

	if pixels := int64(cfg.Width) * int64(cfg.Height); v.config.MaxPixels > 0 && pixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("%w: %d pixels exceeds %d", errDimensions, pixels, v.config.MaxPixels)
		result.SecurityRisk = "pixel count too high"
		return result
	}

	result.IsValid = true
	result.Width = cfg.Width
	result.Height = cfg.Height

	v.logger.DebugTag("HTTP", "image validated: format=%s width=%d height=%d size=%d",
		result.Format, result.Width, result.Height, result.FileSize)
	return result
}
