package synthesis

import (
	"strings"
	"testing"
	"time"

	"medid-server-go/internal/domain/druginfo"
	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/domain/vision"
	"medid-server-go/internal/platform/errors"
)

var fixedNow = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func TestSanitize(t *testing.T) {
	if got := Sanitize("  hi  ", 10); got != "hi" {
		t.Fatalf("Sanitize trim = %q", got)
	}
	if got := Sanitize("   ", 10); got != "Not available" {
		t.Fatalf("Sanitize empty = %q", got)
	}
	if got := Sanitize("abcdefghijkl", 10); got != "abcdefg..." {
		t.Fatalf("Sanitize truncate = %q", got)
	}
	if got := Sanitize("ééééééé", 6); got != "ééé..." {
		t.Fatalf("Sanitize counts runes, got %q", got)
	}
}

func TestConfidenceLevel(t *testing.T) {
	tests := map[float64]string{
		0.95: "Very High", 0.9: "Very High", 0.85: "High", 0.7: "Good",
		0.65: "Moderate", 0.5: "Low", 0.49: "Very Low", 0: "Very Low",
	}
	for c, want := range tests {
		if got := ConfidenceLevel(c); got != want {
			t.Errorf("ConfidenceLevel(%v) = %q, want %q", c, got, want)
		}
	}
}

func TestCombineWithDrugInfo(t *testing.T) {
	id := vision.Identification{
		MedicationName:   "Advil",
		Dosage:           "200mg",
		Confidence:       0.9,
		ImageQuality:     "good",
		AlternativeNames: []string{"ibuprofen", "Motrin", "Nuprin", "Midol"},
	}
	drug := druginfo.Outcome{Success: true, DrugInfo: &model.Label{
		BrandName:           "Advil",
		GenericName:         "IBUPROFEN",
		Purpose:             "Pain reliever/fever reducer",
		Warnings:            "Allergy alert",
		IndicationsAndUsage: "",
	}}

	c, err := Combine(id, drug, fixedNow)
	if err != nil {
		t.Fatalf("Combine() error = %v", err)
	}
	want := "I identified this medication as Advil (200mg) with very high confidence. " +
		"This is Advil (generic name: IBUPROFEN). Purpose: Pain reliever/fever reducer ⚠️ Important Warnings: Allergy alert"
	if c.UserResponse != want {
		t.Fatalf("UserResponse =\n%q\nwant\n%q", c.UserResponse, want)
	}
	if len(c.Identification.AlternativeNames) != 3 {
		t.Fatalf("alternatives = %v, want 3", c.Identification.AlternativeNames)
	}
	if c.Warnings != nil {
		t.Fatalf("unexpected warnings %v", c.Warnings)
	}
	if c.DrugInformation.IndicationsAndUsage != "Not available" {
		t.Fatalf("indications = %q", c.DrugInformation.IndicationsAndUsage)
	}
	if c.Timestamp != "2026-10-16T12:00:00Z" {
		t.Fatalf("timestamp = %q", c.Timestamp)
	}

	b := c.Body()
	if !b.Success || b.MedicationName != "Advil" || b.ConfidenceLevel != "Very High" || !b.DrugInfoAvailable {
		t.Fatalf("Body() = %+v", b)
	}
	if b.DrugInfo == nil || b.DrugInfo.GenericName != "IBUPROFEN" {
		t.Fatalf("Body().DrugInfo = %+v", b.DrugInfo)
	}
}

func TestCombineLowConfidenceWithoutDrugInfo(t *testing.T) {
	id := vision.Identification{MedicationName: "Tylenol", Confidence: 0.3}
	drug := druginfo.Outcome{Error: "Medication identification confidence too low for drug lookup"}

	c, err := Combine(id, drug, fixedNow)
	if err != nil {
		t.Fatalf("Combine() error = %v", err)
	}
	want := "I detected what appears to be Tylenol, but I'm not very confident in this identification (confidence: Very Low). " +
		"You may want to retake the photo with better lighting or a clearer view of the medication. " +
		"However, I couldn't retrieve detailed drug information: Medication identification confidence too low for drug lookup"
	if c.UserResponse != want {
		t.Fatalf("UserResponse =\n%q\nwant\n%q", c.UserResponse, want)
	}
	if len(c.Warnings) != 2 || c.Warnings[0] != warnLowConfidence || c.Warnings[1] != warnNoDrugInfo {
		t.Fatalf("warnings = %v", c.Warnings)
	}
	if c.Identification.ImageQuality != "Unknown" || c.Identification.Dosage != "Not specified" {
		t.Fatalf("summary defaults = %+v", c.Identification)
	}
	if b := c.Body(); b.DrugInfo != nil || b.DrugInfoAvailable {
		t.Fatalf("Body() exposes drug info: %+v", b)
	}
}

func TestUserTextBrandVariants(t *testing.T) {
	id := Identification{IdentifiedMedication: "X", ConfidenceLevel: "Good", Dosage: "Not specified"}
	tests := []struct {
		brand, generic, want string
	}{
		{"ADVIL", "ADVIL", "This medication is known as ADVIL."},
		{"N/A", "IBUPROFEN", "This medication is IBUPROFEN."},
		{"N/A", "N/A", ""},
	}
	for _, tt := range tests {
		got := UserText(id, DrugInformation{Available: true, BrandName: tt.brand, GenericName: tt.generic, Purpose: "Not available", Warnings: "Not available"})
		prefix := "I identified this medication as X with good confidence."
		if !strings.HasPrefix(got, prefix) {
			t.Fatalf("UserText() = %q", got)
		}
		if rest := strings.TrimSpace(strings.TrimPrefix(got, prefix)); rest != tt.want {
			t.Fatalf("UserText(%s,%s) tail = %q, want %q", tt.brand, tt.generic, rest, tt.want)
		}
	}
}

func TestCombineRejectsMissingLabel(t *testing.T) {
	_, err := Combine(vision.Identification{MedicationName: "X"}, druginfo.Outcome{Success: true}, fixedNow)
	if !errors.IsKind(err, errors.KindSynthesis) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
}

func TestNewErrorBody(t *testing.T) {
	b := NewErrorBody("No image data provided.", ErrorValidation, fixedNow)
	if b.Success || b.UserResponse != "Invalid input provided for medication analysis." || b.ErrorType != ErrorValidation {
		t.Fatalf("NewErrorBody() = %+v", b)
	}
	if other := NewErrorBody("x", "weird", fixedNow); other.UserResponse != "An unexpected error occurred." {
		t.Fatalf("unknown type user response = %q", other.UserResponse)
	}
}
