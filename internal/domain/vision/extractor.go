package vision

import (
	stderrors "errors"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Identification is the structured reading of a model answer.
type Identification struct {
	MedicationName   string   `json:"medication_name"`
	Dosage           string   `json:"dosage"`
	Confidence       float64  `json:"confidence"`
	AlternativeNames []string `json:"alternative_names"`
	ImageQuality     string   `json:"image_quality"`
	RawResponse      string   `json:"raw_response,omitempty"`
}

// HasValidIdentification reports whether a usable medication name was found.
func (i Identification) HasValidIdentification() bool {
	switch strings.ToLower(i.MedicationName) {
	case "", "unknown", "not found":
		return false
	}
	return true
}

func (i Identification) IsHighConfidence(threshold float64) bool {
	return i.Confidence >= threshold
}

const nameTail = `[:\s]+([A-Za-z0-9']+(?:\s+[A-Za-z0-9']+)*?)(?:\s*\n|\s*$|\s*\.|\s*,)`

var (
	namePatterns = compileAll(
		`(?i)medication name`+nameTail,
		`(?i)brand name`+nameTail,
		`(?i)drug name`+nameTail,
		`(?i)generic name`+nameTail,
		`(?i)identified as`+nameTail,
		`(?i)appears to be`+nameTail,
		`(?i)this is`+nameTail,
		`(?i)likely`+nameTail,
	)

	dosagePatterns = compileAll(
		`(?i)([0-9]+(?:\.[0-9]+)?\s*(?:mg|g|mcg|units?)/[0-9]*(?:\.[0-9]+)?\s*(?:mg|g|ml|mcg|units?))`,
		`(?i)dosage[:\s]+([0-9]+(?:\.[0-9]+)?\s*(?:mg|g|mcg|units?)/[0-9]*(?:\.[0-9]+)?\s*(?:mg|g|ml|mcg|units?))`,
		`(?i)strength[:\s]+([0-9]+(?:\.[0-9]+)?\s*(?:mg|g|mcg|units?)/[0-9]*(?:\.[0-9]+)?\s*(?:mg|g|ml|mcg|units?))`,
		`(?i)dosage[:\s]+([0-9]+(?:\.[0-9]+)?\s*(?:mg|g|ml|mcg|units?))`,
		`(?i)strength[:\s]+([0-9]+(?:\.[0-9]+)?\s*(?:mg|g|ml|mcg|units?))`,
		`(?i)dose[:\s]+([0-9]+(?:\.[0-9]+)?\s*(?:mg|g|ml|mcg|units?))`,
		`(?i)([0-9]+(?:\.[0-9]+)?\s*(?:mg|g|ml|mcg|units?))`,
	)

	alternativePatterns = compileAll(
		`(?i)also known as[:\s]+([A-Za-z0-9]+(?:\s+[A-Za-z0-9]+)*?)(?:\s|$|\n)`,
		`(?i)generic name[:\s]+([A-Za-z0-9]+(?:\s+[A-Za-z0-9]+)*?)(?:\s|$|\n)`,
		`(?i)brand name[:\s]+([A-Za-z0-9]+(?:\s+[A-Za-z0-9]+)*?)(?:\s|$|\n)`,
		`(?i)alternative[:\s]+([A-Za-z0-9]+(?:\s+[A-Za-z0-9]+)*?)(?:\s|$|\n)`,
	)

	confidentPercent  = regexp.MustCompile(`(\d+)%\s*confident`)
	confidencePercent = regexp.MustCompile(`(\d+)%\s*confidence`)
	confidenceLevel   = regexp.MustCompile(`(high|medium|moderate|low)\s+confidence`)
	whitespace        = regexp.MustCompile(`\s+`)
)

var (
	lowConfidenceKeywords    = []string{"unclear", "difficult", "low confidence", "blurry", "uncertain", "cannot determine"}
	highConfidenceKeywords   = []string{"clearly visible", "confident", "high confidence", "certain", "definite", "obvious"}
	mediumConfidenceKeywords = []string{"likely", "appears to be", "moderate confidence", "probably", "seems to be"}

	qualityIndicators = []struct {
		quality  string
		keywords []string
	}{
		{"poor", []string{"poor quality", "difficult to read", "low resolution", "blurry", "unclear", "very blurry", "insufficient lighting"}},
		{"fair", []string{"fair quality", "somewhat clear", "adequate", "partially visible", "some text is readable"}},
		{"good", []string{"good quality", "clear", "sharp", "well-lit", "clearly visible"}},
	}

	nameStopPhrases  = []string{"with", "and other", "other ingredients", "coating"}
	nameDescriptive  = []string{"based", "visible", "packaging", "colors", "partial", "text", "appears", "store", "brand"}
	nameStopWords    = []string{"tablet", "capsule", "liquid", "with", "and", "the", "per", "dose", "form", "coating", "other", "ingredients"}
	invalidNames     = []string{"unknown", "unclear", "not visible", "medication", "drug", "not clearly", "not", "clearly", "a medication"}
	altStopWords     = []string{"dosage", "strength", "mg", "tablet", "capsule", "liquid", "with", "and", "the"}
	invalidAltNames  = []string{"unknown", "unclear", "not visible", "medication", "drug"}
	dosageUnitTokens = []string{"mg", "mcg", "ml", "g"}
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Extract parses a model answer into an Identification.
func Extract(text string) Identification {
	lower := strings.ToLower(text)
	confidence := extractConfidence(lower)
	return Identification{
		MedicationName:   extractName(text),
		Dosage:           extractDosage(text),
		Confidence:       confidence,
		AlternativeNames: extractAlternatives(text),
		ImageQuality:     imageQuality(lower, confidence),
		RawResponse:      text,
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func extractConfidence(lower string) float64 {
	for _, re := range []*regexp.Regexp{confidentPercent, confidencePercent} {
		if m := re.FindStringSubmatch(lower); m != nil {
			pct, err := strconv.Atoi(m[1])
			if stderrors.Is(err, strconv.ErrRange) {
				return 1.0
			}
			if err == nil {
				return min(float64(pct)/100.0, 1.0)
			}
		}
	}

	if m := confidenceLevel.FindStringSubmatch(lower); m != nil {
		switch m[1] {
		case "high":
			return 0.9
		case "medium", "moderate":
			return 0.7
		case "low":
			return 0.3
		}
	}

	switch {
	case containsAny(lower, lowConfidenceKeywords):
		return 0.3
	case containsAny(lower, highConfidenceKeywords):
		return 0.9
	case containsAny(lower, mediumConfidenceKeywords):
		return 0.7
	}
	return 0.5
}

func imageQuality(lower string, confidence float64) string {
	for _, qi := range qualityIndicators {
		if containsAny(lower, qi.keywords) {
			return qi.quality
		}
	}
	switch {
	case confidence >= 0.8:
		return "good"
	case confidence >= 0.5:
		return "fair"
	default:
		return "poor"
	}
}

func extractName(text string) string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if name := cleanName(m[1]); len(name) > 1 && !slices.Contains(invalidNames, strings.ToLower(name)) {
			return name
		}
	}
	return ""
}

func cleanName(raw string) string {
	name := whitespace.ReplaceAllString(strings.TrimSpace(raw), " ")

	for _, phrase := range nameStopPhrases {
		if idx := strings.Index(strings.ToLower(name), phrase); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
			break
		}
	}

	words := strings.Fields(name)
	var kept []string
	for _, w := range words {
		if slices.Contains(nameDescriptive, strings.ToLower(w)) {
			break
		}
		kept = append(kept, w)
	}
	if len(kept) > 0 {
		words = kept
	}

	var out []string
	for _, w := range words {
		lw := strings.ToLower(w)
		if containsAny(lw, dosageUnitTokens) && strings.ContainsFunc(w, unicode.IsDigit) {
			break
		}
		if !slices.Contains(nameStopWords, lw) {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}

func extractDosage(text string) string {
	for _, re := range dosagePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if d := strings.TrimSpace(m[1]); d != "" {
				return d
			}
		}
	}
	return ""
}

func extractAlternatives(text string) []string {
	var names []string
	for _, re := range alternativePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			var words []string
			for _, w := range strings.Fields(m[1]) {
				if !slices.Contains(altStopWords, strings.ToLower(w)) {
					words = append(words, w)
				}
			}
			name := strings.Join(words, " ")
			if len(name) > 1 && !slices.Contains(invalidAltNames, strings.ToLower(name)) && !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	return names
}
