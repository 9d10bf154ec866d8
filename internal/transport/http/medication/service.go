// Package medication exposes the analysis, drug label and recovery plan
// tools as JSON endpoints, plus the agent envelope entry point.
package medication

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"medid-server-go/internal/domain/analysis"
	"medid-server-go/internal/domain/recovery"
	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/transport/agent"
)

type Options struct {
	Config   *config.Config
	Logger   *logging.Logger
	Analyzer agent.Analyzer
	Drugs    agent.DrugTool
	Recovery agent.PlanSource
	Agent    *agent.Handler
	Now      func() time.Time
}

// Service is the HTTP face of the medication tools.
type Service struct {
	cfg      *config.Config
	logger   *logging.Logger
	analyzer agent.Analyzer
	drugs    agent.DrugTool
	recovery agent.PlanSource
	agent    *agent.Handler
	now      func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.KindConfig, "medication.new", "config is required")
	}
	if opts.Analyzer == nil {
		return nil, errors.New(errors.KindConfig, "medication.new", "analysis service is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:      opts.Config,
		logger:   opts.Logger,
		analyzer: opts.Analyzer,
		drugs:    opts.Drugs,
		recovery: opts.Recovery,
		agent:    opts.Agent,
		now:      now,
	}, nil
}

// Register mounts the medication routes on router.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) {
	router.POST("/analyze-medication", s.handleAnalyze)
	router.POST("/analyze-medication/upload", s.handleUpload)
	if s.drugs != nil {
		router.POST("/drug-info", s.handleDrugInfo)
	}
	if s.recovery != nil {
		router.POST("/recovery-plan", s.handleRecoveryPlan)
	}
	if s.agent != nil {
		router.POST("/agent", s.handleAgent)
	}
	s.logger.InfoTag("HTTP", "medication routes registered")
}

// handleAnalyze identifies a medication from a base64 image.
// @Summary Identify a medication from a base64 image
// @Tags Medication
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "image and prompt"
// @Success 200 {object} synthesis.SuccessBody
// @Failure 400 {object} failure.Body
// @Router /analyze-medication [post]
func (s *Service) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		s.respondAnalysisError(c, errors.Wrap(errors.KindValidation, "medication.analyze", "request body is not valid JSON", err))
		return
	}
	s.analyze(c, analysis.Request{
		ImageData:       req.ImageData,
		Prompt:          req.Prompt,
		ConfidenceCheck: req.ConfidenceCheck,
		Source:          "http",
	})
}

// handleUpload identifies a medication from a multipart file upload.
// @Summary Identify a medication from an uploaded image
// @Tags Medication
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "image file"
// @Param prompt formData string false "analysis prompt"
// @Success 200 {object} synthesis.SuccessBody
// @Failure 400 {object} failure.Body
// @Router /analyze-medication/upload [post]
func (s *Service) handleUpload(c *gin.Context) {
	req, err := s.parseMultipartRequest(c)
	if err != nil {
		s.logger.WarnTag("HTTP", "upload parse failed: %v", err)
		s.respondAnalysisError(c, err)
		return
	}
	s.analyze(c, req)
}

func (s *Service) parseMultipartRequest(c *gin.Context) (analysis.Request, error) {
	maxSize := int64(s.cfg.Image.MaxSize)
	if err := c.Request.ParseMultipartForm(maxSize); err != nil {
		return analysis.Request{}, errors.Wrap(errors.KindValidation, "medication.upload", "failed to parse multipart form", err)
	}
	req := analysis.Request{
		Prompt:          c.Request.FormValue("prompt"),
		ConfidenceCheck: c.Request.FormValue("confidence_check") == "true",
		Source:          "upload",
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		// no file is reported by the analysis as a missing image
		return req, nil
	}
	defer file.Close()

	// one byte over the limit is enough for the validator to reject it
	raw, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return analysis.Request{}, errors.Wrap(errors.KindTransport, "medication.upload", "failed to read uploaded file", err)
	}
	req.ImageBytes = raw
	return req, nil
}

func (s *Service) analyze(c *gin.Context, req analysis.Request) {
	body, err := s.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		s.respondAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *Service) respondAnalysisError(c *gin.Context, err error) {
	status, body := analysis.ErrorResponse(err, s.now())
	c.JSON(status, body)
}

// handleDrugInfo looks up an FDA label summary.
// @Summary Look up an FDA drug label
// @Tags Medication
// @Accept json
// @Produce json
// @Param request body DrugInfoRequest true "drug name"
// @Success 200 {object} object
// @Failure 400 {object} object
// @Router /drug-info [post]
func (s *Service) handleDrugInfo(c *gin.Context) {
	var req DrugInfoRequest
	_ = c.ShouldBindJSON(&req)
	name := strings.TrimSpace(req.DrugName)
	if name == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: agent.MissingDrugNameMessage})
		return
	}
	c.JSON(http.StatusOK, s.drugs.ToolBody(c.Request.Context(), name))
}

// handleRecoveryPlan returns the plan for a post-operative day.
// @Summary Fetch a recovery plan
// @Tags Medication
// @Accept json
// @Produce json
// @Param request body RecoveryPlanRequest true "day"
// @Success 200 {object} object
// @Failure 400 {object} object
// @Failure 500 {object} object
// @Router /recovery-plan [post]
func (s *Service) handleRecoveryPlan(c *gin.Context) {
	var req RecoveryPlanRequest
	_ = c.ShouldBindJSON(&req)

	var day *int
	if d, ok := recovery.ParseDay(req.Day); ok {
		day = &d
	}
	tasks, err := s.recovery.Plan(c.Request.Context(), day)
	if err != nil {
		status := http.StatusBadGateway
		switch errors.CodeOf(err) {
		case recovery.CodeMissingBucket:
			status = http.StatusInternalServerError
		case recovery.CodeMissingDay:
			status = http.StatusBadRequest
		}
		c.JSON(status, errorResponse{Error: errors.MessageOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": tasks})
}

// handleAgent answers an action-group envelope.
// @Summary Agent envelope entry point
// @Tags Agent
// @Accept json
// @Produce json
// @Success 200 {object} agent.Response
// @Router /agent [post]
func (s *Service) handleAgent(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}
	resp, err := s.agent.Handle(c.Request.Context(), raw)
	if err != nil {
		s.logger.WarnTag("AGENT", "envelope rejected: %v", err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: errors.MessageOf(err)})
		return
	}
	c.JSON(http.StatusOK, resp)
}
