// Package synthesis merges an identification with its drug label into the
// response returned to the caller.
package synthesis

import (
	"fmt"
	"strings"
	"time"

	"medid-server-go/internal/domain/druginfo"
	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/domain/vision"
	"medid-server-go/internal/platform/errors"
)

const (
	notAvailable    = "Not available"
	notSpecified    = "Not specified"
	unknownName     = "Unknown"
	noLabelName     = "N/A"
	defaultMaxLen   = 1000
	longTextMaxLen  = 2000
	altNameMaxLen   = 100
	maxAlternatives = 3
)

const (
	warnLowConfidence = "Low confidence identification - consider retaking the photo"
	warnNoDrugInfo    = "Drug information not available - manual verification recommended"
)

// Sanitize trims text and truncates it to max runes with a trailing
// ellipsis. Empty text becomes "Not available".
func Sanitize(text string, max int) string {
	s := strings.TrimSpace(text)
	if r := []rune(s); len(r) > max {
		s = string(r[:max-3]) + "..."
	}
	if s == "" {
		return notAvailable
	}
	return s
}

// ConfidenceLevel describes a confidence score in words.
func ConfidenceLevel(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "Very High"
	case confidence >= 0.8:
		return "High"
	case confidence >= 0.7:
		return "Good"
	case confidence >= 0.6:
		return "Moderate"
	case confidence >= 0.5:
		return "Low"
	default:
		return "Very Low"
	}
}

type Identification struct {
	IdentifiedMedication string   `json:"identified_medication"`
	Dosage               string   `json:"dosage"`
	ConfidenceScore      float64  `json:"confidence_score"`
	ConfidenceLevel      string   `json:"confidence_level"`
	ImageQuality         string   `json:"image_quality"`
	AlternativeNames     []string `json:"alternative_names,omitempty"`
}

type DrugInformation struct {
	Available           bool   `json:"available"`
	BrandName           string `json:"brand_name,omitempty"`
	GenericName         string `json:"generic_name,omitempty"`
	Purpose             string `json:"purpose,omitempty"`
	Warnings            string `json:"warnings,omitempty"`
	IndicationsAndUsage string `json:"indications_and_usage,omitempty"`
	Error               string `json:"error,omitempty"`
	Suggestion          string `json:"suggestion,omitempty"`
	UserMessage         string `json:"user_message,omitempty"`
}

type ProcessingMetadata struct {
	VisionConfidence  float64 `json:"vision_confidence"`
	DrugInfoAvailable bool    `json:"drug_info_available"`
	ImageQuality      string  `json:"image_quality"`
}

// Combined is the merged analysis result.
type Combined struct {
	Success         bool               `json:"success"`
	Timestamp       string             `json:"timestamp"`
	Identification  Identification     `json:"identification"`
	DrugInformation DrugInformation    `json:"drug_information"`
	UserResponse    string             `json:"user_response"`
	Metadata        ProcessingMetadata `json:"processing_metadata"`
	Warnings        []string           `json:"warnings,omitempty"`
}

func summarize(id vision.Identification) Identification {
	name := unknownName
	if id.MedicationName != "" {
		name = Sanitize(id.MedicationName, defaultMaxLen)
	}
	dosage := notSpecified
	if id.Dosage != "" {
		dosage = Sanitize(id.Dosage, defaultMaxLen)
	}
	quality := id.ImageQuality
	if quality == "" {
		quality = unknownName
	}
	s := Identification{
		IdentifiedMedication: name,
		Dosage:               dosage,
		ConfidenceScore:      id.Confidence,
		ConfidenceLevel:      ConfidenceLevel(id.Confidence),
		ImageQuality:         quality,
	}
	for i, alt := range id.AlternativeNames {
		if i == maxAlternatives {
			break
		}
		s.AlternativeNames = append(s.AlternativeNames, Sanitize(alt, altNameMaxLen))
	}
	return s
}

func formatDrugInfo(o druginfo.Outcome) DrugInformation {
	if !o.Success {
		msg := o.Error
		if msg == "" {
			msg = "Drug information not available"
		}
		return DrugInformation{Error: msg, Suggestion: o.Suggestion, UserMessage: o.UserMessage}
	}
	return DrugInformation{
		Available:           true,
		BrandName:           Sanitize(o.DrugInfo.BrandName, defaultMaxLen),
		GenericName:         Sanitize(o.DrugInfo.GenericName, defaultMaxLen),
		Purpose:             Sanitize(o.DrugInfo.Purpose, defaultMaxLen),
		Warnings:            Sanitize(o.DrugInfo.Warnings, longTextMaxLen),
		IndicationsAndUsage: Sanitize(o.DrugInfo.IndicationsAndUsage, longTextMaxLen),
	}
}

// UserText renders the sentence shown to the end user.
func UserText(id Identification, drug DrugInformation) string {
	var parts []string

	if id.ConfidenceLevel == "Very Low" || id.ConfidenceLevel == "Low" {
		parts = append(parts,
			fmt.Sprintf("I detected what appears to be %s, but I'm not very confident in this identification (confidence: %s).", id.IdentifiedMedication, id.ConfidenceLevel),
			"You may want to retake the photo with better lighting or a clearer view of the medication.")
	} else {
		dosage := ""
		if id.Dosage != "" && id.Dosage != notSpecified {
			dosage = " (" + id.Dosage + ")"
		}
		parts = append(parts, fmt.Sprintf("I identified this medication as %s%s with %s confidence.",
			id.IdentifiedMedication, dosage, strings.ToLower(id.ConfidenceLevel)))
	}

	if !drug.Available {
		msg := drug.UserMessage
		if msg == "" {
			msg = drug.Error
		}
		parts = append(parts, "However, I couldn't retrieve detailed drug information: "+msg)
		return strings.Join(parts, " ")
	}

	brand, generic := drug.BrandName, drug.GenericName
	switch {
	case brand != noLabelName && generic != noLabelName && brand != generic:
		parts = append(parts, fmt.Sprintf("This is %s (generic name: %s).", brand, generic))
	case brand != noLabelName:
		parts = append(parts, fmt.Sprintf("This medication is known as %s.", brand))
	case generic != noLabelName:
		parts = append(parts, fmt.Sprintf("This medication is %s.", generic))
	}
	if drug.Purpose != "" && drug.Purpose != notAvailable {
		parts = append(parts, "Purpose: "+drug.Purpose)
	}
	if drug.Warnings != "" && drug.Warnings != notAvailable {
		parts = append(parts, "⚠️ Important Warnings: "+drug.Warnings)
	}
	return strings.Join(parts, " ")
}

// Combine merges the identification and the lookup outcome.
func Combine(id vision.Identification, drug druginfo.Outcome, now time.Time) (Combined, error) {
	if drug.Success && drug.DrugInfo == nil {
		return Combined{}, errors.New(errors.KindSynthesis, "synthesis.combine", "Failed to combine results: Invalid drug information structure")
	}

	summary := summarize(id)
	info := formatDrugInfo(drug)
	c := Combined{
		Success:         true,
		Timestamp:       now.UTC().Format(time.RFC3339Nano),
		Identification:  summary,
		DrugInformation: info,
		UserResponse:    UserText(summary, info),
		Metadata: ProcessingMetadata{
			VisionConfidence:  id.Confidence,
			DrugInfoAvailable: info.Available,
			ImageQuality:      summary.ImageQuality,
		},
	}
	if summary.ConfidenceScore < 0.7 {
		c.Warnings = append(c.Warnings, warnLowConfidence)
	}
	if !info.Available {
		c.Warnings = append(c.Warnings, warnNoDrugInfo)
	}
	return c, nil
}

type PerformanceMetrics struct {
	TotalProcessingTime float64 `json:"total_processing_time"`
	StageCount          int     `json:"stage_count"`
	SuccessfulStages    int     `json:"successful_stages"`
}

// SuccessBody is the flat body returned for a completed analysis.
type SuccessBody struct {
	Success            bool                `json:"success"`
	MedicationName     string              `json:"medication_name"`
	Confidence         float64             `json:"confidence"`
	ConfidenceLevel    string              `json:"confidence_level"`
	UserResponse       string              `json:"user_response"`
	DrugInfoAvailable  bool                `json:"drug_info_available"`
	DrugInfo           *model.Label        `json:"drug_info,omitempty"`
	Warnings           []string            `json:"warnings,omitempty"`
	ProcessingTime     float64             `json:"processing_time"`
	RequestID          string              `json:"request_id"`
	PerformanceMetrics *PerformanceMetrics `json:"performance_metrics,omitempty"`
}

// Body flattens c into the response body. Timing fields are filled in by
// the caller.
func (c Combined) Body() SuccessBody {
	b := SuccessBody{
		Success:           c.Success,
		MedicationName:    c.Identification.IdentifiedMedication,
		Confidence:        c.Identification.ConfidenceScore,
		ConfidenceLevel:   c.Identification.ConfidenceLevel,
		UserResponse:      c.UserResponse,
		DrugInfoAvailable: c.DrugInformation.Available,
		Warnings:          c.Warnings,
	}
	if d := c.DrugInformation; d.Available {
		b.DrugInfo = &model.Label{
			BrandName:           d.BrandName,
			GenericName:         d.GenericName,
			Purpose:             d.Purpose,
			Warnings:            d.Warnings,
			IndicationsAndUsage: d.IndicationsAndUsage,
		}
	}
	return b
}
