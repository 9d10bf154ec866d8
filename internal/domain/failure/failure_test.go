package failure

import (
	stderrors "errors"
	"testing"
	"time"

	"medid-server-go/internal/platform/errors"
)

func TestClassifyByCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
		wantSeverity Severity
		wantMessage  string
		wantRetry    bool
		wantDelay    time.Duration
	}{
		{"invalid_format", CategoryImageProcessing, SeverityLow, "The uploaded file format is not supported.", false, 0},
		{"file_too_small", CategoryImageProcessing, SeverityLow, "Image data appears to be too small or corrupted.", false, 0},
		{"no_image_data", CategoryValidation, SeverityMedium, "An error occurred while processing your request.", false, 0},
		{"vision_api_timeout", CategoryTimeout, SeverityMedium, "The request took too long to process.", true, 5 * time.Second},
		{"low_confidence", CategoryVisionAnalysis, SeverityLow, "Unable to clearly identify the medication in the image.", true, 2 * time.Second},
		{"model_unavailable", CategoryVisionAnalysis, SeverityHigh, "The image analysis service is temporarily unavailable.", true, 2 * time.Second},
		{"rate_limit_exceeded", CategoryRateLimit, SeverityMedium, "Too many requests. Please wait before trying again.", false, 60 * time.Second},
		{"drug_not_found", CategoryDrugLookup, SeverityLow, "Detailed information for this medication is not available.", true, 2 * time.Second},
		{"network_error", CategoryNetwork, SeverityMedium, "Network connection issue occurred.", true, 3 * time.Second},
		{"authentication_error", CategoryAuthentication, SeverityHigh, "An error occurred while processing your request.", false, 0},
		{"memory_error", CategorySystem, SeverityHigh, "An unexpected error occurred.", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := errors.New(errors.KindDomain, "op", "boom").WithCode(tt.code)
			d := Classify(err)
			if d.Code != tt.code || d.Category != tt.wantCategory || d.Severity != tt.wantSeverity {
				t.Fatalf("Classify() = %s/%s/%s, want %s/%s/%s", d.Code, d.Category, d.Severity, tt.code, tt.wantCategory, tt.wantSeverity)
			}
			if d.UserMessage != tt.wantMessage {
				t.Fatalf("UserMessage = %q, want %q", d.UserMessage, tt.wantMessage)
			}
			if d.RetryPossible != tt.wantRetry || d.RetryDelay != tt.wantDelay {
				t.Fatalf("retry = %v/%s, want %v/%s", d.RetryPossible, d.RetryDelay, tt.wantRetry, tt.wantDelay)
			}
			if len(d.Suggestions) == 0 {
				t.Fatalf("no suggestions")
			}
		})
	}
}

func TestClassifyByKind(t *testing.T) {
	tests := []struct {
		err  error
		want Category
	}{
		{errors.New(errors.KindImage, "op", "x"), CategoryImageProcessing},
		{errors.New(errors.KindVision, "op", "x"), CategoryVisionAnalysis},
		{errors.New(errors.KindDrugInfo, "op", "x"), CategoryDrugLookup},
		{errors.New(errors.KindTimeout, "op", "x"), CategoryTimeout},
		{errors.New(errors.KindValidation, "op", "x"), CategoryValidation},
		{stderrors.New("plain"), CategorySystem},
	}
	for _, tt := range tests {
		d := Classify(tt.err)
		if d.Category != tt.want {
			t.Errorf("Classify(%v) category = %s, want %s", tt.err, d.Category, tt.want)
		}
		if d.Code != CodeUnknown {
			t.Errorf("Classify(%v) code = %q, want unknown", tt.err, d.Code)
		}
	}
}

func TestBody(t *testing.T) {
	d := Classify(errors.New(errors.KindVision, "op", "x").WithCode("vision_api_error"))
	b := d.Body()
	if b.Success || b.ErrorCode != "vision_api_error" || !b.RetryPossible || b.RetryAfter != 2 {
		t.Fatalf("Body() = %+v", b)
	}
	if d.StatusCode() != 400 {
		t.Fatalf("StatusCode() = %d, want 400", d.StatusCode())
	}

	// rate limits carry a delay but are not retryable, so no retry_after.
	rl := Classify(errors.New(errors.KindVision, "op", "x").WithCode("rate_limit_exceeded")).Body()
	if rl.RetryPossible || rl.RetryAfter != 0 {
		t.Fatalf("rate limit Body() = %+v", rl)
	}

	critical := Details{Severity: SeverityCritical}
	if critical.StatusCode() != 500 {
		t.Fatalf("critical StatusCode() = %d, want 500", critical.StatusCode())
	}
}

func TestSuggestionsAreCopied(t *testing.T) {
	err := errors.New(errors.KindImage, "op", "x").WithCode("invalid_format")
	d := Classify(err)
	d.Suggestions[0] = "changed"
	if Classify(err).Suggestions[0] == "changed" {
		t.Fatalf("Classify shares the template slice")
	}
}
