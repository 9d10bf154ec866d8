package history

import (
	"context"
	"time"
)

// Record is the privacy-safe audit entry kept for every analysis. It holds
// no image bytes and no medication name.
type Record struct {
	ID                uint
	RequestID         string
	Source            string
	Success           bool
	ErrorCode         string
	Confidence        float64
	ConfidenceLevel   string
	ImageQuality      string
	ImageBytes        int
	DrugInfoAvailable bool
	VisionModel       string
	ProcessingTime    time.Duration
	Stages            map[string]float64
	CreatedAt         time.Time
}

// Stats aggregates stored records.
type Stats struct {
	Total             int64   `json:"total"`
	Succeeded         int64   `json:"succeeded"`
	Failed            int64   `json:"failed"`
	AverageConfidence float64 `json:"average_confidence"`
	DrugInfoRate      float64 `json:"drug_info_rate"`
	AverageLatencyMS  float64 `json:"average_latency_ms"`
}

// Repository persists analysis records.
type Repository interface {
	Save(ctx context.Context, record *Record) error
	FindByRequestID(ctx context.Context, requestID string) (*Record, error)
	Recent(ctx context.Context, limit int) ([]*Record, error)
	Stats(ctx context.Context) (Stats, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
