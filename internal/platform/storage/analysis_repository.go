package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"medid-server-go/internal/domain/history"
	"medid-server-go/internal/platform/errors"
)

type analysisRepository struct {
	db *gorm.DB
}

// NewAnalysisRepository returns a GORM backed history repository.
func NewAnalysisRepository(db *gorm.DB) history.Repository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Save(ctx context.Context, record *history.Record) error {
	model, err := r.toModel(record)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "analysis.save", "failed to encode stages", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "analysis.save", "failed to save analysis record", err)
	}
	record.ID = model.ID
	record.CreatedAt = model.CreatedAt
	return nil
}

// FindByRequestID returns nil, nil when no record exists.
func (r *analysisRepository) FindByRequestID(ctx context.Context, requestID string) (*history.Record, error) {
	var model AnalysisRecord
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&model).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "analysis.find", "failed to find analysis record", err)
	}
	return r.fromModel(&model), nil
}

func (r *analysisRepository) Recent(ctx context.Context, limit int) ([]*history.Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var models []AnalysisRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "analysis.recent", "failed to list analysis records", err)
	}
	records := make([]*history.Record, len(models))
	for i := range models {
		records[i] = r.fromModel(&models[i])
	}
	return records, nil
}

func (r *analysisRepository) Stats(ctx context.Context) (history.Stats, error) {
	var row struct {
		Total      int64
		Succeeded  int64
		DrugInfo   int64
		Confidence float64
		Latency    float64
	}
	err := r.db.WithContext(ctx).Model(&AnalysisRecord{}).Select(
		"COUNT(*) AS total, " +
			"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS succeeded, " +
			"COALESCE(SUM(CASE WHEN drug_info_available THEN 1 ELSE 0 END), 0) AS drug_info, " +
			"COALESCE(AVG(CASE WHEN success THEN confidence END), 0) AS confidence, " +
			"COALESCE(AVG(processing_ms), 0) AS latency",
	).Scan(&row).Error
	if err != nil {
		return history.Stats{}, errors.Wrap(errors.KindStorage, "analysis.stats", "failed to aggregate analysis records", err)
	}

	stats := history.Stats{
		Total:             row.Total,
		Succeeded:         row.Succeeded,
		Failed:            row.Total - row.Succeeded,
		AverageConfidence: row.Confidence,
		AverageLatencyMS:  row.Latency,
	}
	if row.Total > 0 {
		stats.DrugInfoRate = float64(row.DrugInfo) / float64(row.Total)
	}
	return stats, nil
}

func (r *analysisRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&AnalysisRecord{})
	if res.Error != nil {
		return 0, errors.Wrap(errors.KindStorage, "analysis.purge", "failed to purge analysis records", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *analysisRepository) toModel(record *history.Record) (*AnalysisRecord, error) {
	var stages []byte
	if len(record.Stages) > 0 {
		var err error
		if stages, err = json.Marshal(record.Stages); err != nil {
			return nil, err
		}
	}
	created := record.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &AnalysisRecord{
		ID:                record.ID,
		RequestID:         record.RequestID,
		Source:            record.Source,
		Success:           record.Success,
		ErrorCode:         record.ErrorCode,
		Confidence:        record.Confidence,
		ConfidenceLevel:   record.ConfidenceLevel,
		ImageQuality:      record.ImageQuality,
		ImageBytes:        record.ImageBytes,
		DrugInfoAvailable: record.DrugInfoAvailable,
		VisionModel:       record.VisionModel,
		ProcessingMS:      record.ProcessingTime.Milliseconds(),
		Stages:            stages,
		CreatedAt:         created,
	}, nil
}

func (r *analysisRepository) fromModel(model *AnalysisRecord) *history.Record {
	record := &history.Record{
		ID:                model.ID,
		RequestID:         model.RequestID,
		Source:            model.Source,
		Success:           model.Success,
		ErrorCode:         model.ErrorCode,
		Confidence:        model.Confidence,
		ConfidenceLevel:   model.ConfidenceLevel,
		ImageQuality:      model.ImageQuality,
		ImageBytes:        model.ImageBytes,
		DrugInfoAvailable: model.DrugInfoAvailable,
		VisionModel:       model.VisionModel,
		ProcessingTime:    time.Duration(model.ProcessingMS) * time.Millisecond,
		CreatedAt:         model.CreatedAt,
	}
	if len(model.Stages) > 0 {
		var stages map[string]float64
		if err := json.Unmarshal(model.Stages, &stages); err == nil {
			record.Stages = stages
		}
	}
	return record
}
