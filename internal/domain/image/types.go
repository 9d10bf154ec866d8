package image

// Quality grades an image for identification purposes.
type Quality string

const (
	QualityGood    Quality = "good"
	QualityFair    Quality = "fair"
	QualityPoor    Quality = "poor"
	QualityUnknown Quality = "unknown"
)

// Failure codes attached to image errors.
const (
	CodeNoImageData         = "no_image_data"
	CodeInvalidFormat       = "invalid_format"
	CodeFileTooSmall        = "file_too_small"
	CodeFileTooLarge        = "file_too_large"
	CodeCorruptedImage      = "corrupted_image"
	CodePreprocessingFailed = "preprocessing_failed"
)

// ValidationResult captures what validation learned about the payload.
type ValidationResult struct {
	Format          string `json:"format"`
	MediaType       string `json:"media_type"`
	Size            int    `json:"size"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	HasTransparency bool   `json:"has_transparency"`
}

// QualityReport holds the raw measurements behind a Quality grade.
type QualityReport struct {
	Quality           Quality `json:"quality"`
	BlurScore         float64 `json:"blur_score"`
	Brightness        float64 `json:"brightness"`
	Contrast          float64 `json:"contrast"`
	Resolution        int     `json:"resolution"`
	EstimatedFileSize int     `json:"estimated_file_size"`
	ColorRichness     float64 `json:"color_richness,omitempty"`
}

// Processed is the pipeline output handed to the vision stage.
type Processed struct {
	Base64        string
	Bytes         []byte
	Format        string
	MediaType     string
	OriginalSize  int
	ProcessedSize int
	Width         int
	Height        int
	Optimized     bool
	Validation    ValidationResult
	Quality       QualityReport
}

// CompressionRatio is processed size over original size.
func (p *Processed) CompressionRatio() float64 {
	if p == nil || p.OriginalSize == 0 {
		return 1
	}
	return float64(p.ProcessedSize) / float64(p.OriginalSize)
}
