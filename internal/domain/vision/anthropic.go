package vision

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
)

type anthropicProvider struct {
	client *anthropic.Client
	cfg    config.VisionConfig
	logger *logging.Logger
}

// NewAnthropic returns a provider calling the Anthropic Messages API
// directly rather than through Bedrock.
func NewAnthropic(cfg config.VisionConfig, logger *logging.Logger) Provider {
	opts := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicProvider{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		cfg:    cfg,
		logger: logger,
	}
}

func (p *anthropicProvider) Name() string  { return "anthropic" }
func (p *anthropicProvider) Model() string { return p.cfg.ModelID }

func (p *anthropicProvider) Analyze(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	temperature := float32(p.cfg.Temperature)
	topP := float32(p.cfg.TopP)

	p.logger.InfoTag("VISION", "Calling vision model %s", p.cfg.ModelID)
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(p.cfg.ModelID),
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: &temperature,
		TopP:        &topP,
		Messages: []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(anthropic.MessageContentSource{
					Type:      "base64",
					MediaType: mediaTypeOrDefault(req.MediaType),
					Data:      req.ImageBase64,
				}),
				anthropic.NewTextMessageContent(req.Prompt),
			},
		}},
	})
	if err != nil {
		return nil, p.classify(err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		text.WriteString(c.GetText())
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no response from vision model")
	}
	return &Response{
		Text:     text.String(),
		Model:    string(resp.Model),
		Usage:    Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
		Duration: time.Since(start),
	}, nil
}

// classify maps Anthropic error types onto failure codes.
func (p *anthropicProvider) classify(err error) error {
	var apiErr *anthropic.APIError
	if !stderrors.As(err, &apiErr) {
		return err
	}
	code := ""
	switch string(apiErr.Type) {
	case "rate_limit_error":
		code = CodeRateLimited
	case "authentication_error", "permission_error":
		code = CodeAuthentication
	case "overloaded_error", "not_found_error":
		code = CodeUnavailable
	case "api_error", "invalid_request_error":
		code = CodeAPIError
	}
	if code == "" {
		return err
	}
	return errors.Wrap(errors.KindVision, "vision.anthropic", apiErr.Message, err).WithCode(code)
}
