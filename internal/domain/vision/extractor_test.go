package vision

import (
	"slices"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantName     string
		wantDosage   string
		wantConf     float64
		wantQuality  string
		wantAlts     []string
		wantValid    bool
	}{
		{
			name:        "labelled fields",
			text:        "Medication Name: Advil\nDosage: 200mg\nConfidence Level: High confidence",
			wantName:    "Advil",
			wantDosage:  "200mg",
			wantConf:    0.9,
			wantQuality: "good",
			wantValid:   true,
		},
		{
			name:        "percent confidence and dosage word stop",
			text:        "This appears to be Tylenol Extra Strength 500mg tablets. I am 85% confident. Also known as acetaminophen in generic form.",
			wantName:    "Tylenol Extra Strength",
			wantDosage:  "500mg",
			wantConf:    0.85,
			wantQuality: "good",
			wantAlts:    []string{"acetaminophen"},
			wantValid:   true,
		},
		{
			name:        "compound dosage",
			text:        "Drug name: Amoxicillin, dosage: 250mg/5ml suspension. moderate confidence",
			wantName:    "Amoxicillin",
			wantDosage:  "250mg/5ml",
			wantConf:    0.7,
			wantQuality: "fair",
			wantValid:   true,
		},
		{
			name:        "stop phrase and stop words",
			text:        "Brand name: Advil Tablet with film coating\n",
			wantName:    "Advil",
			wantConf:    0.5,
			wantQuality: "fair",
			wantAlts:    []string{"Advil"},
			wantValid:   true,
		},
		{
			name:        "nothing identifiable",
			text:        "The image is blurry. I cannot determine what this medication is.",
			wantConf:    0.3,
			wantQuality: "poor",
		},
		{
			name:        "percent capped",
			text:        "150% confident",
			wantConf:    1.0,
			wantQuality: "good",
		},
		{
			name:        "overflowing percent capped",
			text:        "99999999999999999999% confident",
			wantConf:    1.0,
			wantQuality: "good",
		},
		{
			name:        "quality keyword beats confidence",
			text:        "The photo is clear",
			wantConf:    0.5,
			wantQuality: "good",
		},
		{
			name:        "unclear checked before clear",
			text:        "Text is unclear",
			wantConf:    0.3,
			wantQuality: "poor",
		},
		{
			name:        "alternatives deduplicated",
			text:        "Also known as Motrin or Advil\nAlternative: Motrin here. Also known as unknown stuff",
			wantConf:    0.5,
			wantQuality: "fair",
			wantAlts:    []string{"Motrin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			if got.MedicationName != tt.wantName {
				t.Fatalf("MedicationName = %q, want %q", got.MedicationName, tt.wantName)
			}
			if got.Dosage != tt.wantDosage {
				t.Fatalf("Dosage = %q, want %q", got.Dosage, tt.wantDosage)
			}
			if got.Confidence != tt.wantConf {
				t.Fatalf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			if got.ImageQuality != tt.wantQuality {
				t.Fatalf("ImageQuality = %q, want %q", got.ImageQuality, tt.wantQuality)
			}
			if !slices.Equal(got.AlternativeNames, tt.wantAlts) {
				t.Fatalf("AlternativeNames = %v, want %v", got.AlternativeNames, tt.wantAlts)
			}
			if got.HasValidIdentification() != tt.wantValid {
				t.Fatalf("HasValidIdentification() = %v, want %v", got.HasValidIdentification(), tt.wantValid)
			}
			if got.RawResponse != tt.text {
				t.Fatalf("RawResponse not preserved")
			}
		})
	}
}

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"Ibuprofen   200mg":                  "Ibuprofen",
		"Lipitor based on packaging":         "Lipitor",
		"Aspirin and other ingredients":      "Aspirin",
		"the Zyrtec liquid":                  "Zyrtec",
		"visible":                            "visible",
		"Metformin Hydrochloride 500 mg pill": "Metformin Hydrochloride 500 mg pill",
	}
	for in, want := range tests {
		if got := cleanName(in); got != want {
			t.Errorf("cleanName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIdentificationHelpers(t *testing.T) {
	for _, name := range []string{"", "Unknown", "not found"} {
		if (Identification{MedicationName: name}).HasValidIdentification() {
			t.Fatalf("HasValidIdentification(%q) = true", name)
		}
	}
	id := Identification{MedicationName: "Advil", Confidence: 0.8}
	if !id.IsHighConfidence(0.8) {
		t.Fatalf("IsHighConfidence(0.8) = false at 0.8")
	}
	if id.IsHighConfidence(0.81) {
		t.Fatalf("IsHighConfidence(0.81) = true at 0.8")
	}
}

func TestPromptFallback(t *testing.T) {
	if Prompt("nope") != Prompt(PromptStandard) {
		t.Fatalf("unknown template did not fall back to standard")
	}
	if Prompt(PromptDetailed) == Prompt(PromptStandard) {
		t.Fatalf("detailed prompt equals standard prompt")
	}
}
