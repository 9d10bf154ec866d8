package logging

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// maxLoggedString is the longest string value written to logs unmasked.
const maxLoggedString = 1000

var sensitiveFields = []string{
	"image_data", "base64", "user_id", "session_id",
	"personal_info", "medication_name", "patient_data",
	"user_info", "personal", "sensitive",
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveFields {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of v safe to write to logs. Sensitive map keys are
// masked, long strings are replaced by their length.
func Sanitize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitizeField(k, item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Sanitize(item)
		}
		return out
	case string:
		if len(val) > maxLoggedString {
			return fmt.Sprintf("[LONG_STRING_TRUNCATED:%d_chars]", len(val))
		}
		return val
	default:
		return v
	}
}

func sanitizeField(key string, value any) any {
	if !isSensitive(key) {
		return Sanitize(value)
	}
	lower := strings.ToLower(key)
	switch {
	case lower == "image_data":
		n := 0
		if value != nil {
			if s, ok := value.(string); ok {
				n = len(s)
			} else {
				n = len(fmt.Sprint(value))
			}
		}
		return fmt.Sprintf("[IMAGE_DATA:%d_bytes]", n)
	case strings.Contains(lower, "id"):
		return "[" + strings.ToUpper(key) + "_MASKED]"
	default:
		return "[SENSITIVE_DATA_MASKED]"
	}
}

// Fields converts a map into sorted, sanitized slog attributes.
func Fields(fields map[string]any) []slog.Attr {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, sanitizeField(k, fields[k])))
	}
	return attrs
}
