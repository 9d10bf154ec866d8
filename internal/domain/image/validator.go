package image

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
)

var imageSignatures = []struct {
	format string
	sig    []byte
}{
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"gif", []byte("GIF87a")},
	{"gif", []byte("GIF89a")},
	{"tiff", []byte{0x49, 0x49, 0x2A, 0x00}},
	{"tiff", []byte{0x4D, 0x4D, 0x00, 0x2A}},
	{"bmp", []byte("BM")},
}

var mediaTypes = map[string]string{
	"jpeg": "image/jpeg",
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// DetectFormat identifies the image format from its magic bytes, or "".
func DetectFormat(raw []byte) string {
	if len(raw) < 12 {
		return ""
	}
	if bytes.HasPrefix(raw, []byte("RIFF")) && bytes.Equal(raw[8:12], []byte("WEBP")) {
		return "webp"
	}
	for _, s := range imageSignatures {
		if bytes.HasPrefix(raw, s.sig) {
			return s.format
		}
	}
	return ""
}

// MediaType maps a format name to its MIME type.
func MediaType(format string) string {
	if mt, ok := mediaTypes[strings.ToLower(format)]; ok {
		return mt
	}
	return "image/jpeg"
}

// DetectMediaType returns the MIME type of raw. Payloads the magic table
// does not know are sniffed with mimetype and default to image/jpeg.
func DetectMediaType(raw []byte) string {
	if format := DetectFormat(raw); format != "" {
		return MediaType(format)
	}
	if mt := mimetype.Detect(raw); strings.HasPrefix(mt.String(), "image/") {
		return mt.String()
	}
	return "image/jpeg"
}

// Validator checks size, format and content of decoded payloads.
type Validator struct {
	cfg    config.ImageConfig
	logger *logging.Logger
}

func NewValidator(cfg config.ImageConfig, logger *logging.Logger) *Validator {
	return &Validator{cfg: cfg, logger: logger}
}

// Validate runs size, format and content checks in that order.
func (v *Validator) Validate(raw []byte) (ValidationResult, error) {
	result := ValidationResult{Size: len(raw)}

	if len(raw) == 0 {
		return result, errors.New(errors.KindImage, "image.validate", "No image data provided").WithCode(CodeNoImageData)
	}
	if err := v.checkSize(len(raw)); err != nil {
		return result, err
	}

	format := DetectFormat(raw)
	if format == "" {
		if v.scanForMaliciousContent(raw) {
			return result, errors.New(errors.KindImage, "image.validate",
				"Potentially malicious content detected").WithCode(CodeInvalidFormat)
		}
		return result, errors.New(errors.KindImage, "image.validate",
			"Unsupported or unrecognized image format. Supported formats: "+v.supported()).WithCode(CodeInvalidFormat)
	}
	if !v.isFormatAllowed(format) {
		return result, errors.New(errors.KindImage, "image.validate",
			fmt.Sprintf("Image format '%s' not allowed. Supported formats: %s", format, v.supported())).WithCode(CodeInvalidFormat)
	}
	result.Format = format
	result.MediaType = MediaType(format)

	cfg, decoded, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return result, errors.Wrap(errors.KindImage, "image.validate",
			"Failed to validate image content", err).WithCode(CodeCorruptedImage)
	}
	if decoded != "" && decoded != format {
		v.logger.WarnTag("IMAGE", "file signature mismatch: detected=%s decoded=%s", format, decoded)
	}
	result.Width, result.Height = cfg.Width, cfg.Height
	result.HasTransparency = hasAlpha(cfg.ColorModel)

	if err := v.checkDimensions(cfg.Width, cfg.Height); err != nil {
		return result, err
	}

	v.logger.DebugTag("IMAGE", "image validation success: format=%s width=%d height=%d size=%d",
		result.Format, result.Width, result.Height, result.Size)
	return result, nil
}

func (v *Validator) checkSize(size int) error {
	if size < v.cfg.MinSize {
		return errors.New(errors.KindImage, "image.validate",
			fmt.Sprintf("Image too small (%d bytes). Minimum size: %d bytes", size, v.cfg.MinSize)).WithCode(CodeFileTooSmall)
	}
	if size > v.cfg.MaxSize {
		const mb = 1024 * 1024
		return errors.New(errors.KindImage, "image.validate",
			fmt.Sprintf("Image too large (%.1fMB). Maximum size: %.1fMB", float64(size)/mb, float64(v.cfg.MaxSize)/mb)).WithCode(CodeFileTooLarge)
	}
	return nil
}

func (v *Validator) checkDimensions(width, height int) error {
	minDim := v.cfg.MinDimension
	if width < minDim || height < minDim {
		return errors.New(errors.KindImage, "image.validate",
			fmt.Sprintf("Image dimensions too small (%dx%d). Minimum: %dx%d", width, height, minDim, minDim)).WithCode(CodePreprocessingFailed)
	}
	ratio := float64(max(width, height)) / float64(min(width, height))
	if ratio > v.cfg.MaxAspectRatio {
		return errors.New(errors.KindImage, "image.validate",
			fmt.Sprintf("Image aspect ratio too extreme (%.1f:1). Maximum: %.1f:1", ratio, v.cfg.MaxAspectRatio)).WithCode(CodePreprocessingFailed)
	}
	return nil
}

func (v *Validator) isFormatAllowed(format string) bool {
	format = normalizeFormat(format)
	for _, allowed := range v.cfg.SupportedFormats {
		if normalizeFormat(allowed) == format {
			return true
		}
	}
	return false
}

func (v *Validator) supported() string {
	return strings.Join(v.cfg.SupportedFormats, ", ")
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "jpg" {
		return "jpeg"
	}
	return format
}

// hasAlpha reports whether the decoder's colour model carries an alpha
// channel. Opaque truecolour PNGs decode as RGBAModel and are excluded.
func hasAlpha(model color.Model) bool {
	switch model {
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model, color.NYCbCrAModel:
		return true
	}
	if palette, ok := model.(color.Palette); ok {
		for _, c := range palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// scanForMaliciousContent flags executables, archives and scripted SVG
// masquerading as image uploads.
func (v *Validator) scanForMaliciousContent(raw []byte) bool {
	suspicious := [][]byte{
		{0x4D, 0x5A},
		{0x25, 0x50, 0x44, 0x46},
		{0x50, 0x4B, 0x03, 0x04},
		{0x1F, 0x8B, 0x08},
	}
	for _, signature := range suspicious {
		if bytes.HasPrefix(raw, signature) {
			v.logger.WarnTag("IMAGE", "detected non-image signature: signature_hex=%x", signature)
			return true
		}
	}

	lower := strings.ToLower(string(raw))
	if !strings.Contains(lower, "<svg") {
		return false
	}
	for _, token := range []string{"<script", "javascript:", "onload=", "onerror=", "<iframe", "<object", "<embed"} {
		if strings.Contains(lower, token) {
			v.logger.WarnTag("IMAGE", "detected suspicious SVG content: token=%s", token)
			return true
		}
	}
	return false
}
