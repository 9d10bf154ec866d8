package storage

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisRecord is one row of the analysis audit trail.
type AnalysisRecord struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	RequestID         string         `gorm:"uniqueIndex;not null" json:"request_id"`
	Source            string         `gorm:"index" json:"source"`
	Success           bool           `gorm:"index" json:"success"`
	ErrorCode         string         `json:"error_code,omitempty"`
	Confidence        float64        `json:"confidence"`
	ConfidenceLevel   string         `json:"confidence_level"`
	ImageQuality      string         `json:"image_quality"`
	ImageBytes        int            `json:"image_bytes"`
	DrugInfoAvailable bool           `json:"drug_info_available"`
	VisionModel       string         `json:"vision_model"`
	ProcessingMS      int64          `json:"processing_ms"`
	Stages            datatypes.JSON `json:"stages"`
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`
}

func (AnalysisRecord) TableName() string {
	return "analysis_records"
}

// DrugLabelEntry caches one FDA label lookup keyed by normalised drug name.
type DrugLabelEntry struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`
	Label     datatypes.JSON `gorm:"not null" json:"label"`
	ExpiresAt time.Time      `gorm:"index" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
}

func (DrugLabelEntry) TableName() string {
	return "drug_label_cache"
}
