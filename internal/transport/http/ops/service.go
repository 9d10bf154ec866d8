// Package ops serves the operational endpoints: health, analysis history
// and the metric registry.
package ops

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"medid-server-go/internal/domain/analysis"
	"medid-server-go/internal/domain/history"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/platform/observability"
)

type HealthChecker interface {
	Health() analysis.HealthStatus
}

// CacheReporter exposes drug label cache statistics.
type CacheReporter interface {
	CacheStats(ctx context.Context) (map[string]any, error)
}

type Options struct {
	Health   HealthChecker
	History  *history.Service
	Registry *observability.Registry
	Cache    CacheReporter
	Logger   *logging.Logger
}

type Service struct {
	health   HealthChecker
	history  *history.Service
	registry *observability.Registry
	cache    CacheReporter
	logger   *logging.Logger
}

func NewService(opts Options) *Service {
	registry := opts.Registry
	if registry == nil {
		registry = observability.Default()
	}
	return &Service{
		health:   opts.Health,
		history:  opts.History,
		registry: registry,
		cache:    opts.Cache,
		logger:   opts.Logger,
	}
}

// RegisterPublic mounts routes that need no token.
func (s *Service) RegisterPublic(router *gin.RouterGroup) {
	router.GET("/health", s.handleHealth)
}

// Register mounts the token protected routes.
func (s *Service) Register(router *gin.RouterGroup) {
	router.GET("/history", s.handleHistory)
	router.GET("/history/:request_id", s.handleHistoryRecord)
	router.GET("/metrics", s.handleMetrics)
}

// @Summary Service health
// @Tags Ops
// @Produce json
// @Success 200 {object} analysis.HealthStatus
// @Router /health [get]
func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.health.Health())
}

// RecordView is the JSON form of a history record.
type RecordView struct {
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
	ProcessingTime    float64            `json:"processing_time"`
	Stages            map[string]float64 `json:"stages,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

func viewOf(r *history.Record) RecordView {
	return RecordView{
		RequestID:         r.RequestID,
		Source:            r.Source,
		Success:           r.Success,
		ErrorCode:         r.ErrorCode,
		Confidence:        r.Confidence,
		ConfidenceLevel:   r.ConfidenceLevel,
		ImageQuality:      r.ImageQuality,
		ImageBytes:        r.ImageBytes,
		DrugInfoAvailable: r.DrugInfoAvailable,
		VisionModel:       r.VisionModel,
		ProcessingTime:    r.ProcessingTime.Seconds(),
		Stages:            r.Stages,
		CreatedAt:         r.CreatedAt,
	}
}

// @Summary Recent analyses and aggregate stats
// @Tags Ops
// @Produce json
// @Param limit query int false "max records"
// @Success 200 {object} object
// @Router /history [get]
func (s *Service) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis history is disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	ctx := c.Request.Context()

	records, err := s.history.Recent(ctx, limit)
	if err != nil {
		s.logger.ErrorTag("HISTORY", "list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list analysis history"})
		return
	}
	stats, err := s.history.Stats(ctx)
	if err != nil {
		s.logger.ErrorTag("HISTORY", "stats failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate analysis history"})
		return
	}

	views := make([]RecordView, 0, len(records))
	for _, r := range records {
		views = append(views, viewOf(r))
	}
	c.JSON(http.StatusOK, gin.H{"records": views, "stats": stats})
}

// @Summary One analysis record
// @Tags Ops
// @Produce json
// @Param request_id path string true "request id"
// @Success 200 {object} RecordView
// @Failure 404 {object} object
// @Router /history/{request_id} [get]
func (s *Service) handleHistoryRecord(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis history is disabled"})
		return
	}
	record, err := s.history.Find(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		s.logger.ErrorTag("HISTORY", "lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analysis record"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis record not found"})
		return
	}
	c.JSON(http.StatusOK, viewOf(record))
}

// @Summary Metric registry snapshot and host stats
// @Tags Ops
// @Produce json
// @Success 200 {object} object
// @Router /metrics [get]
func (s *Service) handleMetrics(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{
		"metrics": s.registry.Snapshot(),
		"system":  observability.CollectSystemStats(ctx),
	}
	if s.cache != nil {
		if stats, err := s.cache.CacheStats(ctx); err != nil {
			s.logger.WarnTag("CACHE", "stats unavailable: %v", err)
		} else if stats != nil {
			body["cache"] = stats
		}
	}
	c.JSON(http.StatusOK, body)
}
