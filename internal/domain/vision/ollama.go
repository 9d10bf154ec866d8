package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/logging"
)

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

type ollamaProvider struct {
	client *resty.Client
	cfg    config.VisionConfig
	logger *logging.Logger
}

// NewOllama returns a provider for a local Ollama server. Ollama takes raw
// base64 images without the data URL prefix.
func NewOllama(cfg config.VisionConfig, logger *logging.Logger) Provider {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &ollamaProvider{client: client, cfg: cfg, logger: logger}
}

func (p *ollamaProvider) Name() string  { return "ollama" }
func (p *ollamaProvider) Model() string { return p.cfg.ModelID }

func (p *ollamaProvider) Analyze(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	body := ollamaRequest{
		Model: p.cfg.ModelID,
		Messages: []ollamaMessage{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []string{req.ImageBase64},
		}},
		Options: map[string]any{
			"temperature": p.cfg.Temperature,
			"top_p":       p.cfg.TopP,
			"num_predict": p.cfg.MaxTokens,
		},
	}

	p.logger.InfoTag("VISION", "Calling vision model %s at %s", p.cfg.ModelID, p.cfg.BaseURL)
	var out ollamaResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/api/chat")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("ollama request failed, status code: %d, body: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	return &Response{
		Text:     out.Message.Content,
		Model:    out.Model,
		Usage:    Usage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount},
		Duration: time.Since(start),
	}, nil
}
