package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"medid-server-go/internal/domain/analysis"
	"medid-server-go/internal/transport/agent"
)

// SourceWebSocket tags analyses started over the socket.
const SourceWebSocket = "websocket"

// ToolDispatcher routes socket requests to the analysis workflow and the
// drug label tool.
type ToolDispatcher struct {
	Analyzer agent.Analyzer
	Drugs    agent.DrugTool
	Now      func() time.Time
}

func (d ToolDispatcher) Dispatch(ctx context.Context, req Request) (int, any) {
	switch req.Type {
	case TypeAnalyze:
		body, err := d.Analyzer.Analyze(ctx, analysis.Request{
			ImageData:       req.ImageData,
			Prompt:          req.Prompt,
			Source:          SourceWebSocket,
			ConfidenceCheck: req.ConfidenceCheck,
		})
		if err != nil {
			return analysis.ErrorResponse(err, d.now())
		}
		return http.StatusOK, body
	case TypeDrugInfo:
		if strings.TrimSpace(req.DrugName) == "" {
			return http.StatusBadRequest, map[string]any{"error": agent.MissingDrugNameMessage}
		}
		if d.Drugs == nil {
			return http.StatusServiceUnavailable, errorBody("drug information is not configured")
		}
		return http.StatusOK, d.Drugs.ToolBody(ctx, req.DrugName)
	}
	return http.StatusBadRequest, errorBody("unsupported message type: " + req.Type)
}

func (d ToolDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
