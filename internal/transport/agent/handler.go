package agent

import (
	"context"
	"net/http"
	"time"

	"medid-server-go/internal/domain/analysis"
	"medid-server-go/internal/domain/recovery"
	"medid-server-go/internal/domain/synthesis"
	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
)

const (
	PathAnalyze  = "/analyze-medication"
	PathDrugInfo = "/drug-info"
	PathRecovery = "/recovery-plan"

	MissingDrugNameMessage = "Could not find drug_name in the agent's request."
)

var toolGroups = map[string]string{
	PathDrugInfo: "drug_info_tool",
	PathRecovery: "recovery_plan_tool",
}

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*synthesis.SuccessBody, error)
}

type DrugTool interface {
	ToolBody(ctx context.Context, name string) map[string]any
}

type PlanSource interface {
	Plan(ctx context.Context, day *int) (any, error)
}

type Options struct {
	Analyzer Analyzer
	Drugs    DrugTool
	Recovery PlanSource
	Config   *config.Config
	Logger   *logging.Logger
	Now      func() time.Time
}

// Handler dispatches agent events to the tool named by apiPath.
type Handler struct {
	analyzer Analyzer
	drugs    DrugTool
	recovery PlanSource
	defaults Defaults
	prompt   string
	logger   *logging.Logger
	now      func() time.Time
}

func NewHandler(opts Options) *Handler {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		analyzer: opts.Analyzer,
		drugs:    opts.Drugs,
		recovery: opts.Recovery,
		defaults: Defaults{
			ActionGroup: cfg.Agent.ActionGroup,
			APIPath:     cfg.Agent.APIPath,
			HTTPMethod:  cfg.Agent.HTTPMethod,
		},
		prompt: cfg.Vision.Prompt,
		logger: opts.Logger,
		now:    now,
	}
}

// Handle decodes a raw envelope and answers it. Only an undecodable event
// is returned as an error; tool failures travel inside the envelope.
func (h *Handler) Handle(ctx context.Context, raw []byte) (*Response, error) {
	event, err := ParseEvent(raw)
	if err != nil {
		return nil, err
	}
	return h.HandleEvent(ctx, event)
}

func (h *Handler) HandleEvent(ctx context.Context, event *Event) (*Response, error) {
	h.logger.DebugTag("AGENT", "event actionGroup=%s apiPath=%s", event.ActionGroup, event.APIPath)
	switch event.APIPath {
	case PathDrugInfo:
		return h.drugInfo(ctx, event)
	case PathRecovery:
		return h.recoveryPlan(ctx, event)
	default:
		return h.analyze(ctx, event)
	}
}

func (h *Handler) analyze(ctx context.Context, event *Event) (*Response, error) {
	if h.analyzer == nil {
		return nil, errors.New(errors.KindBootstrap, "agent.analyze", "analysis service not configured")
	}
	image, prompt := event.AnalysisParams(h.prompt)
	req := analysis.Request{ImageData: image, Prompt: prompt, Source: "agent"}
	if v, ok := event.Param("confidence_check"); ok {
		req.ConfidenceCheck = truthy(v)
	}

	body, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		status, errBody := analysis.ErrorResponse(err, h.now())
		return event.Respond(status, errBody, h.defaults)
	}
	return event.Respond(http.StatusOK, body, h.defaults)
}

// defaultsFor keeps the configured analysis defaults for the analysis tool
// and names the other tools after their own action group.
func (h *Handler) defaultsFor(path string) Defaults {
	group, ok := toolGroups[path]
	if !ok {
		return h.defaults
	}
	return Defaults{ActionGroup: group, APIPath: path, HTTPMethod: h.defaults.HTTPMethod}
}

func (h *Handler) drugInfo(ctx context.Context, event *Event) (*Response, error) {
	if h.drugs == nil {
		return nil, errors.New(errors.KindBootstrap, "agent.drug_info", "drug service not configured")
	}
	d := h.defaultsFor(PathDrugInfo)
	name := ""
	if v, ok := event.Param("drug_name"); ok {
		name = str(v)
	}
	if name == "" {
		return event.Respond(http.StatusOK, map[string]any{"error": MissingDrugNameMessage}, d)
	}
	return event.Respond(http.StatusOK, h.drugs.ToolBody(ctx, name), d)
}

func (h *Handler) recoveryPlan(ctx context.Context, event *Event) (*Response, error) {
	if h.recovery == nil {
		return nil, errors.New(errors.KindBootstrap, "agent.recovery", "recovery service not configured")
	}
	d := h.defaultsFor(PathRecovery)
	var day *int
	if v, ok := event.Param("day"); ok {
		if d, ok := recovery.ParseDay(v); ok {
			day = &d
		}
	}

	tasks, err := h.recovery.Plan(ctx, day)
	switch {
	case err == nil:
		return event.Respond(http.StatusOK, map[string]any{"plan": tasks}, d)
	case errors.CodeOf(err) == recovery.CodeMissingBucket:
		return event.Respond(http.StatusInternalServerError, errors.MessageOf(err), d)
	default:
		return event.Respond(http.StatusOK, map[string]any{"response": errors.MessageOf(err)}, d)
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1" || b == "yes"
	case float64:
		return b != 0
	default:
		return false
	}
}
