// Package mcp exposes the medication tools over the Model Context Protocol.
package mcptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"medid-server-go/internal/domain/analysis"
	"medid-server-go/internal/domain/recovery"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/transport/agent"
)

const (
	ToolAnalyze  = "analyze_medication"
	ToolDrugInfo = "drug_info"
	ToolRecovery = "recovery_plan"
)

type Options struct {
	Analyzer agent.Analyzer
	Drugs    agent.DrugTool
	Recovery agent.PlanSource
	Logger   *logging.Logger
	Now      func() time.Time
}

// Server wraps an MCP server with the medication tools registered.
type Server struct {
	mcp      *server.MCPServer
	analyzer agent.Analyzer
	drugs    agent.DrugTool
	recovery agent.PlanSource
	logger   *logging.Logger
	now      func() time.Time
}

func NewServer(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Server{
		mcp: server.NewMCPServer(
			analysis.ServiceName,
			analysis.ServiceVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		analyzer: opts.Analyzer,
		drugs:    opts.Drugs,
		recovery: opts.Recovery,
		logger:   opts.Logger,
		now:      now,
	}

	if s.analyzer != nil {
		s.mcp.AddTool(mcp.NewTool(ToolAnalyze,
			mcp.WithDescription("Identify a medication from a photo and summarise its FDA label."),
			mcp.WithString("image_data", mcp.Required(), mcp.Description("Base64 encoded JPEG, PNG or WebP image, optionally as a data URL.")),
			mcp.WithString("prompt", mcp.Description("Optional analysis prompt.")),
			mcp.WithBoolean("confidence_check", mcp.Description("Re-ask the model when the first answer is not confident.")),
		), s.handleAnalyze)
	}
	if s.drugs != nil {
		s.mcp.AddTool(mcp.NewTool(ToolDrugInfo,
			mcp.WithDescription("Look up brand name, generic name, purpose and warnings for a drug."),
			mcp.WithString("drug_name", mcp.Required(), mcp.Description("Brand or generic drug name.")),
		), s.handleDrugInfo)
	}
	if s.recovery != nil {
		s.mcp.AddTool(mcp.NewTool(ToolRecovery,
			mcp.WithDescription("Fetch the post-operative recovery tasks for a given day."),
			mcp.WithNumber("day", mcp.Required(), mcp.Description("Day after surgery.")),
		), s.handleRecovery)
	}
	return s
}

// MCP returns the underlying server, for stdio serving.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// SSEHandler serves the SSE transport under basePath.
func (s *Server) SSEHandler(basePath string) http.Handler {
	return server.NewSSEServer(s.mcp, server.WithStaticBasePath(basePath))
}

// ServeStdio blocks serving the tools on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func jsonResult(v any, isError bool) (*mcp.CallToolResult, error) {
	text, err := sonic.MarshalString(v)
	if err != nil {
		return nil, errors.Wrap(errors.KindTransport, "mcp.result", "failed to encode tool result", err)
	}
	if isError {
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	req := analysis.Request{Source: "mcp"}
	req.ImageData, _ = args["image_data"].(string)
	req.Prompt, _ = args["prompt"].(string)
	req.ConfidenceCheck, _ = args["confidence_check"].(bool)

	body, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		_, errBody := analysis.ErrorResponse(err, s.now())
		return jsonResult(errBody, true)
	}
	return jsonResult(body, false)
}

func (s *Server) handleDrugInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := request.GetArguments()["drug_name"].(string)
	if name == "" {
		return jsonResult(map[string]any{"error": agent.MissingDrugNameMessage}, true)
	}
	body := s.drugs.ToolBody(ctx, name)
	_, failed := body["error"]
	return jsonResult(body, failed)
}

func (s *Server) handleRecovery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var day *int
	if d, ok := recovery.ParseDay(request.GetArguments()["day"]); ok {
		day = &d
	}
	tasks, err := s.recovery.Plan(ctx, day)
	if err != nil {
		s.logger.WarnTag("MCP", "recovery plan failed: %v", err)
		return jsonResult(map[string]any{"error": errors.MessageOf(err)}, true)
	}
	return jsonResult(map[string]any{"plan": tasks}, false)
}
