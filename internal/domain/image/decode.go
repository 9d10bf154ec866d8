package image

import (
	"encoding/base64"
	"fmt"
	"strings"

	"medid-server-go/internal/platform/errors"
)

// DecodeBase64 decodes a raw base64 string or a data URL. Whitespace is
// ignored and missing padding is restored before a strict decode.
func DecodeBase64(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, errors.New(errors.KindImage, "image.decode", "No image data provided").WithCode(CodeNoImageData)
	}

	if strings.HasPrefix(data, "data:") {
		idx := strings.Index(data, ";base64,")
		if idx < 0 {
			return nil, errors.New(errors.KindImage, "image.decode", "Invalid data URL format").WithCode(CodeInvalidFormat)
		}
		data = data[idx+len(";base64,"):]
	}

	data = strings.Join(strings.Fields(data), "")
	if rem := len(data) % 4; rem != 0 {
		data += strings.Repeat("=", 4-rem)
	}

	raw, err := base64.StdEncoding.Strict().DecodeString(data)
	if err != nil {
		return nil, errors.New(errors.KindImage, "image.decode",
			fmt.Sprintf("Invalid base64 encoding: %v", err)).WithCode(CodeInvalidFormat)
	}
	if len(raw) == 0 {
		return nil, errors.New(errors.KindImage, "image.decode", "Decoded image data is empty").WithCode(CodeNoImageData)
	}
	return raw, nil
}

// EncodeBase64 is the inverse of DecodeBase64 for raw payloads.
func EncodeBase64(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}
