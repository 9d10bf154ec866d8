package history

import (
	"context"
	"time"

	"medid-server-go/internal/domain/eventbus"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
	saveTimeout      = 5 * time.Second
)

// Service records analysis events and answers history queries.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Subscribe attaches the recorder to the completed and failed topics.
func (s *Service) Subscribe(bus eventbus.Subscriber) error {
	for _, topic := range []string{eventbus.EventAnalysisCompleted, eventbus.EventAnalysisFailed} {
		if err := bus.Subscribe(topic, s.onAnalysis); err != nil {
			return errors.Wrap(errors.KindBootstrap, "history.subscribe", "failed to subscribe history recorder", err)
		}
	}
	return nil
}

func (s *Service) onAnalysis(data eventbus.AnalysisEventData) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.Record(ctx, data); err != nil {
		s.logger.ErrorTag("HISTORY", "failed to record analysis %s: %v", data.RequestID, err)
	}
}

// Record stores one analysis event.
func (s *Service) Record(ctx context.Context, data eventbus.AnalysisEventData) error {
	record := &Record{
		RequestID:         data.RequestID,
		Source:            data.Source,
		Success:           data.Success,
		ErrorCode:         data.ErrorCode,
		Confidence:        data.Confidence,
		ConfidenceLevel:   data.ConfidenceLevel,
		ImageQuality:      data.ImageQuality,
		ImageBytes:        data.ImageBytes,
		DrugInfoAvailable: data.DrugInfoAvailable,
		VisionModel:       data.VisionModel,
		ProcessingTime:    data.ProcessingTime,
		Stages:            data.Stages,
	}
	return s.repo.Save(ctx, record)
}

// Recent lists the newest records. limit is clamped to [1, 200], defaulting
// to 20.
func (s *Service) Recent(ctx context.Context, limit int) ([]*Record, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	return s.repo.Recent(ctx, limit)
}

func (s *Service) Find(ctx context.Context, requestID string) (*Record, error) {
	return s.repo.FindByRequestID(ctx, requestID)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

// Purge drops records older than retention.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.repo.PurgeBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoTag("HISTORY", "purged %d analysis records older than %s", n, retention)
	}
	return n, nil
}

// RunRetention purges old records every interval until ctx is done.
func (s *Service) RunRetention(ctx context.Context, retention, interval time.Duration) error {
	if retention <= 0 || interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Purge(ctx, retention); err != nil {
				s.logger.WarnTag("HISTORY", "retention purge failed: %v", err)
			}
		}
	}
}
