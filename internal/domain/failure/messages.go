package failure

type userMessage struct {
	message     string
	suggestions []string
}

const defaultKey = "default"

var fallbackMessage = userMessage{
	message:     "An error occurred while processing your request.",
	suggestions: []string{"Please try again", "Contact support if the issue persists"},
}

var messageTemplates = map[Category]map[string]userMessage{
	CategoryImageProcessing: {
		"invalid_format": {
			"The uploaded file format is not supported.",
			[]string{
				"Please use JPEG, PNG, or WebP format",
				"Try converting your image to a supported format",
				"Ensure the file is not corrupted",
			},
		},
		"file_too_large": {
			"The uploaded image is too large.",
			[]string{
				"Please reduce the image size to under 10MB",
				"Try compressing the image",
				"Use a lower resolution image",
			},
		},
		"file_too_small": {
			"Image data appears to be too small or corrupted.",
			[]string{
				"Please upload the full image file",
				"Check if the original image opens correctly",
				"Try taking a new photo of the medication",
			},
		},
		"corrupted_image": {
			"The uploaded image appears to be corrupted.",
			[]string{
				"Please try uploading a different image",
				"Check if the original image opens correctly",
				"Try taking a new photo of the medication",
			},
		},
		"preprocessing_failed": {
			"Unable to process the uploaded image.",
			[]string{
				"Please try again with a different image",
				"Ensure the image is clear and well-lit",
				"Try taking a new photo",
			},
		},
	},
	CategoryVisionAnalysis: {
		"low_confidence": {
			"Unable to clearly identify the medication in the image.",
			[]string{
				"Try taking a clearer photo with better lighting",
				"Ensure the medication label is fully visible",
				"Remove any obstructions from the medication",
				"Try a different angle or closer shot",
			},
		},
		"no_medication_detected": {
			"No medication was detected in the image.",
			[]string{
				"Ensure the medication is clearly visible in the photo",
				"Try taking a closer shot of the medication",
				"Make sure the medication label is readable",
				"Check that you're photographing the right item",
			},
		},
		"vision_api_error": {
			"Unable to analyze the image at this time.",
			[]string{
				"Please try again in a few moments",
				"Check your internet connection",
				"Try with a different image if the problem persists",
			},
		},
		"model_unavailable": {
			"The image analysis service is temporarily unavailable.",
			[]string{
				"Please try again later",
				"Contact support if the issue persists",
			},
		},
	},
	CategoryDrugLookup: {
		"drug_not_found": {
			"Detailed information for this medication is not available.",
			[]string{
				"Try searching manually in the drug database",
				"Consult with your healthcare provider",
				"Check the medication packaging for information",
			},
		},
		"drug_api_error": {
			"Unable to retrieve detailed drug information.",
			[]string{
				"The medication was identified but detailed info is unavailable",
				"Please try again later",
				"Consult your healthcare provider for information",
			},
		},
	},
	CategoryTimeout: {
		defaultKey: {
			"The request took too long to process.",
			[]string{
				"Please try again with a smaller image",
				"Check your internet connection",
				"Try again in a few moments",
			},
		},
	},
	CategoryRateLimit: {
		defaultKey: {
			"Too many requests. Please wait before trying again.",
			[]string{
				"Wait a few minutes before submitting another image",
				"Try again later",
			},
		},
	},
	CategoryNetwork: {
		defaultKey: {
			"Network connection issue occurred.",
			[]string{
				"Check your internet connection",
				"Try again in a few moments",
				"Contact support if the issue persists",
			},
		},
	},
	CategorySystem: {
		defaultKey: {
			"An unexpected error occurred.",
			[]string{
				"Please try again",
				"Contact support if the issue persists",
				"Try with a different image",
			},
		},
	},
}

// messageFor picks the template for code, then the category default, then
// the global fallback.
func messageFor(c Category, code string) userMessage {
	templates := messageTemplates[c]
	if m, ok := templates[code]; ok {
		return m
	}
	if m, ok := templates[defaultKey]; ok {
		return m
	}
	return fallbackMessage
}
