package medication

// AnalyzeRequest is the JSON body of POST /analyze-medication.
type AnalyzeRequest struct {
	ImageData       string `json:"image_data"`
	Prompt          string `json:"prompt,omitempty"`
	ConfidenceCheck bool   `json:"confidence_check,omitempty"`
}

type DrugInfoRequest struct {
	DrugName string `json:"drug_name"`
}

// RecoveryPlanRequest accepts day as a number or a numeric string.
type RecoveryPlanRequest struct {
	Day any `json:"day"`
}

type errorResponse struct {
	Error string `json:"error"`
}
