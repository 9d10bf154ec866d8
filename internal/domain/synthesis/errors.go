package synthesis

import "time"

// ErrorType labels a typed error body.
type ErrorType string

const (
	ErrorProcessing ErrorType = "processing_error"
	ErrorVision     ErrorType = "vision_error"
	ErrorDrugInfo   ErrorType = "drug_info_error"
	ErrorValidation ErrorType = "validation_error"
)

var errorUserResponses = map[ErrorType]string{
	ErrorProcessing: "An error occurred while processing your medication image.",
	ErrorVision:     "Unable to analyze the medication image clearly.",
	ErrorDrugInfo:   "Medication identified but detailed information is unavailable.",
	ErrorValidation: "Invalid input provided for medication analysis.",
}

type ErrorBody struct {
	Success      bool      `json:"success"`
	Error        string    `json:"error"`
	ErrorType    ErrorType `json:"error_type"`
	UserResponse string    `json:"user_response"`
	Timestamp    string    `json:"timestamp"`
}

// NewErrorBody builds the body for a typed error. Unknown types get a
// generic user response.
func NewErrorBody(message string, t ErrorType, now time.Time) ErrorBody {
	resp, ok := errorUserResponses[t]
	if !ok {
		resp = "An unexpected error occurred."
	}
	return ErrorBody{
		Error:        message,
		ErrorType:    t,
		UserResponse: resp,
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
	}
}
