// Package failure maps typed errors onto the user-facing error taxonomy:
// category, severity, message, suggestions and retry hints.
package failure

import (
	"slices"
	"time"

	"medid-server-go/internal/platform/errors"
)

type Category string

const (
	CategoryImageProcessing Category = "image_processing"
	CategoryVisionAnalysis  Category = "vision_analysis"
	CategoryDrugLookup      Category = "drug_lookup"
	CategorySystem          Category = "system_error"
	CategoryValidation      Category = "validation_error"
	CategoryTimeout         Category = "timeout_error"
	CategoryRateLimit       Category = "rate_limit_error"
	CategoryAuthentication  Category = "authentication_error"
	CategoryNetwork         Category = "network_error"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// CodeUnknown is reported when an error carries no failure code.
const CodeUnknown = "unknown"

type classification struct {
	category Category
	severity Severity
}

var codeTable = map[string]classification{
	"invalid_format":       {CategoryImageProcessing, SeverityLow},
	"file_too_large":       {CategoryImageProcessing, SeverityLow},
	"file_too_small":       {CategoryImageProcessing, SeverityLow},
	"corrupted_image":      {CategoryImageProcessing, SeverityLow},
	"no_image_data":        {CategoryValidation, SeverityMedium},
	"preprocessing_failed": {CategoryImageProcessing, SeverityMedium},

	"vision_api_timeout":     {CategoryTimeout, SeverityMedium},
	"vision_api_error":       {CategoryVisionAnalysis, SeverityMedium},
	"low_confidence":         {CategoryVisionAnalysis, SeverityLow},
	"no_medication_detected": {CategoryVisionAnalysis, SeverityLow},
	"model_unavailable":      {CategoryVisionAnalysis, SeverityHigh},
	"rate_limit_exceeded":    {CategoryRateLimit, SeverityMedium},

	"drug_not_found":   {CategoryDrugLookup, SeverityLow},
	"drug_api_error":   {CategoryDrugLookup, SeverityMedium},
	"drug_api_timeout": {CategoryTimeout, SeverityMedium},

	"unexpected_error":     {CategorySystem, SeverityHigh},
	"memory_error":         {CategorySystem, SeverityHigh},
	"network_error":        {CategoryNetwork, SeverityMedium},
	"authentication_error": {CategoryAuthentication, SeverityHigh},
}

var retryDelays = map[Category]time.Duration{
	CategoryRateLimit:      60 * time.Second,
	CategoryTimeout:        5 * time.Second,
	CategoryNetwork:        3 * time.Second,
	CategoryVisionAnalysis: 2 * time.Second,
	CategoryDrugLookup:     2 * time.Second,
}

// Details is the classified form of one failure.
type Details struct {
	Code            string
	Category        Category
	Severity        Severity
	InternalMessage string
	UserMessage     string
	Suggestions     []string
	RetryPossible   bool
	RetryDelay      time.Duration
}

// Classify resolves err into Details. A known failure code decides the
// category; otherwise the error kind does.
func Classify(err error) Details {
	code := errors.CodeOf(err)
	c, ok := codeTable[code]
	if !ok {
		c = classifyKind(errors.KindOf(err))
	}
	if code == "" {
		code = CodeUnknown
	}

	msg := messageFor(c.category, code)
	d := Details{
		Code:          code,
		Category:      c.category,
		Severity:      c.severity,
		UserMessage:   msg.message,
		Suggestions:   slices.Clone(msg.suggestions),
		RetryPossible: RetryPossible(c.category),
		RetryDelay:    retryDelays[c.category],
	}
	if err != nil {
		d.InternalMessage = err.Error()
	}
	return d
}

func classifyKind(kind errors.Kind) classification {
	switch kind {
	case errors.KindImage:
		return classification{CategoryImageProcessing, SeverityLow}
	case errors.KindVision:
		return classification{CategoryVisionAnalysis, SeverityMedium}
	case errors.KindDrugInfo:
		return classification{CategoryDrugLookup, SeverityMedium}
	case errors.KindTimeout:
		return classification{CategoryTimeout, SeverityMedium}
	case errors.KindValidation:
		return classification{CategoryValidation, SeverityMedium}
	default:
		return classification{CategorySystem, SeverityHigh}
	}
}

// RetryPossible reports whether the client may resubmit after a failure of
// this category.
func RetryPossible(c Category) bool {
	switch c {
	case CategoryTimeout, CategoryNetwork, CategoryVisionAnalysis, CategoryDrugLookup:
		return true
	}
	return false
}

// StatusCode is 500 for critical failures and 400 otherwise.
func (d Details) StatusCode() int {
	if d.Severity == SeverityCritical {
		return 500
	}
	return 400
}

// Body is the JSON error body returned to the caller.
type Body struct {
	Success       bool     `json:"success"`
	Error         string   `json:"error"`
	ErrorCode     string   `json:"error_code"`
	Suggestions   []string `json:"suggestions"`
	RetryPossible bool     `json:"retry_possible"`
	RetryAfter    int      `json:"retry_after,omitempty"`
}

func (d Details) Body() Body {
	b := Body{
		Error:         d.UserMessage,
		ErrorCode:     d.Code,
		Suggestions:   d.Suggestions,
		RetryPossible: d.RetryPossible,
	}
	if d.RetryPossible && d.RetryDelay > 0 {
		b.RetryAfter = int(d.RetryDelay.Seconds())
	}
	return b
}

// LogFields is the privacy-safe view of d for structured logs.
func (d Details) LogFields() map[string]any {
	return map[string]any{
		"error_code":     d.Code,
		"category":       string(d.Category),
		"severity":       string(d.Severity),
		"retry_possible": d.RetryPossible,
	}
}
