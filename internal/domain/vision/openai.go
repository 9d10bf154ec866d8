package vision

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/logging"
)

type openAIProvider struct {
	client *openai.Client
	cfg    config.VisionConfig
	logger *logging.Logger
}

// NewOpenAI returns a provider for any OpenAI compatible chat completion
// endpoint that accepts image_url parts.
func NewOpenAI(cfg config.VisionConfig, logger *logging.Logger) Provider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &openAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		logger: logger,
	}
}

func (p *openAIProvider) Name() string  { return "openai" }
func (p *openAIProvider) Model() string { return p.cfg.ModelID }

func (p *openAIProvider) Analyze(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	message := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", mediaTypeOrDefault(req.MediaType), req.ImageBase64),
				},
			},
		},
	}

	p.logger.InfoTag("VISION", "Calling vision model %s", p.cfg.ModelID)
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.cfg.ModelID,
		Messages:    []openai.ChatCompletionMessage{message},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: float32(p.cfg.Temperature),
		TopP:        float32(p.cfg.TopP),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision model")
	}

	return &Response{
		Text:     resp.Choices[0].Message.Content,
		Model:    resp.Model,
		Usage:    Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
		Duration: time.Since(start),
	}, nil
}
