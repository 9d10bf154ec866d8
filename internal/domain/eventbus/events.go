package eventbus

import "time"

const (
	EventAnalysisCompleted = "analysis:completed"
	EventAnalysisFailed    = "analysis:failed"
	EventDrugInfoSkipped   = "druginfo:skipped"
)

// AnalysisEventData describes one finished analysis. It never carries the
// image or the identified medication name.
type AnalysisEventData struct {
	RequestID         string             `json:"request_id"`
	Source            string             `json:"source"`
	Success           bool               `json:"success"`
	ErrorCode         string             `json:"error_code,omitempty"`
	Confidence        float64            `json:"confidence"`
	ConfidenceLevel   string             `json:"confidence_level,omitempty"`
	ImageQuality      string             `json:"image_quality,omitempty"`
	ImageBytes        int                `json:"image_bytes"`
	DrugInfoAvailable bool               `json:"drug_info_available"`
	VisionModel       string             `json:"vision_model,omitempty"`
	ProcessingTime    time.Duration      `json:"processing_time"`
	Stages            map[string]float64 `json:"stages,omitempty"`
	OccurredAt        time.Time          `json:"occurred_at"`
}

type DrugInfoSkippedData struct {
	RequestID  string  `json:"request_id"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}
