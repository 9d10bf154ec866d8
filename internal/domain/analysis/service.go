// Package analysis runs the medication identification workflow: image
// preparation, vision analysis, the optional drug label lookup and response
// synthesis, each as a monitored stage with its own deadline.
package analysis

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"medid-server-go/internal/domain/druginfo"
	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/domain/eventbus"
	"medid-server-go/internal/domain/failure"
	"medid-server-go/internal/domain/image"
	"medid-server-go/internal/domain/synthesis"
	"medid-server-go/internal/domain/vision"
	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/platform/observability"
)

const (
	ServiceName    = "image_analysis_tool"
	ServiceVersion = "1.0.0"

	// MissingImageMessage is returned when a request carries no image at all.
	MissingImageMessage = "No image data provided. Please upload an image of the medication."
	lowConfidenceLookup = "Medication identification confidence too low for drug lookup"
)

const (
	StageRequestParsing     = "request_parsing"
	StageImagePreprocessing = "image_preprocessing"
	StageVisionAnalysis     = "vision_analysis"
	StageDrugInfoLookup     = "drug_info_lookup"
	StageResponseSynthesis  = "response_synthesis"
	StageResponseFormatting = "response_formatting"
)

// Request is one analysis job. Source names the surface it arrived on and
// is only used for auditing.
type Request struct {
	ImageData       string
	ImageBytes      []byte
	Prompt          string
	Source          string
	ConfidenceCheck bool
}

// Options wires the collaborators of a Service.
type Options struct {
	Pipeline *image.Pipeline
	Vision   *vision.Client
	Drugs    *druginfo.Service
	Config   *config.Config
	Logger   *logging.Logger
	Registry *observability.Registry
	Events   eventbus.Publisher
	Now      func() time.Time
}

type Service struct {
	pipeline *image.Pipeline
	vision   *vision.Client
	drugs    *druginfo.Service
	cfg      *config.Config
	logger   *logging.Logger
	registry *observability.Registry
	events   eventbus.Publisher
	now      func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Pipeline == nil || opts.Vision == nil || opts.Drugs == nil {
		return nil, errors.New(errors.KindBootstrap, "analysis.new", "image pipeline, vision client and drug service are required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		pipeline: opts.Pipeline,
		vision:   opts.Vision,
		drugs:    opts.Drugs,
		cfg:      cfg,
		logger:   opts.Logger,
		registry: opts.Registry,
		events:   opts.Events,
		now:      now,
	}, nil
}

// Drugs exposes the drug information service for the standalone lookup tool.
func (s *Service) Drugs() *druginfo.Service { return s.drugs }

// run carries the per-request state through the stages.
type run struct {
	mon       *observability.Monitor
	processed *image.Processed
	result    *vision.Result
	drug      druginfo.Outcome
	combined  synthesis.Combined
}

// Analyze runs the full workflow. Failures come back as typed errors that
// failure.Classify turns into the client-facing body.
func (s *Service) Analyze(ctx context.Context, req Request) (*synthesis.SuccessBody, error) {
	requestID := uuid.NewString()
	ctx = observability.ContextWithRequestID(ctx, requestID)
	r := &run{mon: observability.NewMonitor(requestID, s.registry, s.logger.Slog())}
	defer r.mon.LogSummary()

	s.logger.InfoFields(logging.FormatLog("ANALYSIS", "analysis request received"), map[string]any{
		"request_id": requestID,
		"source":     req.Source,
		"image_data": req.ImageData,
		"prompt":     req.Prompt,
	})

	body, err := s.execute(ctx, r, req)
	elapsed := r.mon.Elapsed()
	r.mon.Timer("request_duration", elapsed, nil)
	r.mon.Counter("requests_total", map[string]string{"success": strconv.FormatBool(err == nil)})
	if err != nil {
		details := failure.Classify(err)
		r.mon.Counter("request_errors", map[string]string{"error_type": details.Code})
		s.logger.ErrorFields(logging.FormatLog("ANALYSIS", "analysis failed"), details.LogFields())
	}
	s.publish(r, req, err, elapsed)
	return body, err
}

func (s *Service) execute(ctx context.Context, r *run, req Request) (*synthesis.SuccessBody, error) {
	stage := r.mon.StartStage(StageRequestParsing)
	req, err := s.normalize(req)
	stage.Metadata["has_custom_prompt"] = req.Prompt != s.cfg.Vision.Prompt
	stage.Finish(err)
	if err != nil {
		return nil, err
	}

	if err := s.prepareImage(ctx, r, req); err != nil {
		return nil, err
	}
	if err := s.identify(ctx, r, req); err != nil {
		return nil, err
	}
	s.lookupDrug(ctx, r)

	if err := s.synthesize(ctx, r); err != nil {
		return nil, err
	}

	stage = r.mon.StartStage(StageResponseFormatting)
	body := r.combined.Body()
	body.RequestID = r.mon.RequestID()
	body.ProcessingTime = r.mon.Elapsed().Seconds()
	// the formatting stage itself is counted as successful
	sum := r.mon.Summary()
	body.PerformanceMetrics = &synthesis.PerformanceMetrics{
		TotalProcessingTime: body.ProcessingTime,
		StageCount:          sum.TotalStages,
		SuccessfulStages:    sum.SuccessfulStages + 1,
	}
	stage.Metadata["response_size"] = len(body.UserResponse)
	stage.Finish(nil)
	return &body, nil
}

func (s *Service) normalize(req Request) (Request, error) {
	if strings.TrimSpace(req.ImageData) == "" && len(req.ImageBytes) == 0 {
		return req, errors.New(errors.KindValidation, "analysis.parse", MissingImageMessage).WithCode(image.CodeNoImageData)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		req.Prompt = s.cfg.Vision.Prompt
	}
	return req, nil
}

func (s *Service) prepareImage(ctx context.Context, r *run, req Request) (err error) {
	stage := r.mon.StartStage(StageImagePreprocessing)
	defer func() { stage.Finish(err) }()

	budget := s.cfg.Timeouts.ImageValidation + s.cfg.Timeouts.ImagePreprocessing
	r.processed, err = withTimeout(ctx, budget, "image.process", image.CodePreprocessingFailed,
		func(ctx context.Context) (*image.Processed, error) {
			if len(req.ImageBytes) > 0 {
				return s.pipeline.ProcessBytes(ctx, req.ImageBytes)
			}
			return s.pipeline.Process(ctx, req.ImageData)
		})
	if err != nil {
		return err
	}

	p := r.processed
	r.mon.Gauge("image_original_size", float64(p.OriginalSize))
	r.mon.Gauge("image_processed_size", float64(p.ProcessedSize))
	r.mon.Gauge("image_compression_ratio", p.CompressionRatio())
	stage.Metadata["format"] = p.Format
	stage.Metadata["quality"] = string(p.Quality.Quality)
	stage.Metadata["optimized"] = p.Optimized
	return nil
}

func (s *Service) identify(ctx context.Context, r *run, req Request) (err error) {
	stage := r.mon.StartStage(StageVisionAnalysis)
	defer func() {
		r.mon.Counter("vision_analysis_requests", map[string]string{"success": strconv.FormatBool(err == nil)})
		stage.Finish(err)
	}()

	r.result, err = Retry(ctx, s.cfg.Retry.Vision, s.logger, "vision analysis",
		func(ctx context.Context) (*vision.Result, error) {
			return withTimeout(ctx, s.cfg.Timeouts.VisionAnalysis, "vision.analyze", vision.CodeTimeout,
				func(ctx context.Context) (*vision.Result, error) {
					if req.ConfidenceCheck {
						return s.vision.IdentifyWithConfidenceCheck(ctx, r.processed.Base64, r.processed.MediaType, s.cfg.Confidence.High)
					}
					return s.vision.Identify(ctx, vision.Request{
						ImageBase64: r.processed.Base64,
						MediaType:   r.processed.MediaType,
						Prompt:      req.Prompt,
					})
				})
		})
	if err != nil {
		return err
	}

	id := r.result.Identification
	r.mon.Gauge("vision_confidence", id.Confidence)
	stage.Metadata["medication_found"] = id.HasValidIdentification()
	stage.Metadata["confidence"] = id.Confidence
	stage.Metadata["model"] = r.result.Response.Model
	return nil
}

// lookupDrug never fails the request; problems end up in the outcome.
func (s *Service) lookupDrug(ctx context.Context, r *run) {
	id := r.result.Identification
	if !id.HasValidIdentification() || id.Confidence <= s.cfg.Confidence.Low {
		reason := "low_confidence"
		if !id.HasValidIdentification() {
			reason = "no_medication"
		}
		r.mon.Counter("drug_info_skipped", map[string]string{"reason": reason})
		r.drug = druginfo.Outcome{Error: lowConfidenceLookup}
		if s.events != nil {
			s.events.PublishAsync(eventbus.EventDrugInfoSkipped, eventbus.DrugInfoSkippedData{
				RequestID:  r.mon.RequestID(),
				Reason:     reason,
				Confidence: id.Confidence,
			})
		}
		return
	}

	stage := r.mon.StartStage(StageDrugInfoLookup)
	label, err := Retry(ctx, s.cfg.Retry.Drug, s.logger, "drug info lookup",
		func(ctx context.Context) (model.Label, error) {
			return withTimeout(ctx, s.cfg.Timeouts.DrugInfoLookup, "druginfo.lookup", druginfo.CodeTimeout,
				func(ctx context.Context) (model.Label, error) {
					return s.drugs.Lookup(ctx, id.MedicationName)
				})
		})
	r.mon.Counter("drug_info_requests", map[string]string{"success": strconv.FormatBool(err == nil)})
	if err != nil {
		r.drug = druginfo.Hint(err, id.MedicationName)
	} else {
		r.drug = druginfo.Outcome{Success: true, DrugInfo: &label}
	}
	stage.Metadata["drug_info_found"] = r.drug.Success
	stage.Finish(err)
}

func (s *Service) synthesize(ctx context.Context, r *run) (err error) {
	stage := r.mon.StartStage(StageResponseSynthesis)
	defer func() { stage.Finish(err) }()

	r.combined, err = withTimeout(ctx, s.cfg.Timeouts.ResponseSynthesis, "synthesis.combine", "",
		func(ctx context.Context) (synthesis.Combined, error) {
			return synthesis.Combine(r.result.Identification, r.drug, s.now())
		})
	if err != nil {
		return err
	}
	stage.Metadata["warnings"] = len(r.combined.Warnings)
	return nil
}

func (s *Service) publish(r *run, req Request, err error, elapsed time.Duration) {
	if s.events == nil {
		return
	}
	data := eventbus.AnalysisEventData{
		RequestID:      r.mon.RequestID(),
		Source:         req.Source,
		Success:        err == nil,
		ProcessingTime: elapsed,
		Stages:         map[string]float64{},
		OccurredAt:     s.now(),
	}
	for _, st := range r.mon.Summary().Stages {
		data.Stages[st.Name] = st.Duration().Seconds()
	}
	if r.processed != nil {
		data.ImageBytes = r.processed.OriginalSize
	}
	if r.result != nil {
		data.Confidence = r.result.Identification.Confidence
		data.ConfidenceLevel = synthesis.ConfidenceLevel(data.Confidence)
		data.ImageQuality = r.result.Identification.ImageQuality
		data.VisionModel = r.result.Response.Model
	}
	data.DrugInfoAvailable = r.drug.Success

	topic := eventbus.EventAnalysisCompleted
	if err != nil {
		topic = eventbus.EventAnalysisFailed
		data.ErrorCode = failure.Classify(err).Code
	}
	s.events.PublishAsync(topic, data)
}

// withTimeout bounds fn by d. A deadline hit inside fn is reported as a
// timeout carrying code; cancellation of the caller's ctx is passed through.
func withTimeout[T any](ctx context.Context, d time.Duration, op, code string, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	stageCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	result, err := fn(stageCtx)
	if err != nil && ctx.Err() == nil && stderrors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return result, &errors.Error{
			Kind:    errors.KindTimeout,
			Op:      op,
			Code:    code,
			Message: "operation timed out after " + d.String(),
			Cause:   err,
		}
	}
	return result, err
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (s *Service) Health() HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Version:   ServiceVersion,
	}
}
