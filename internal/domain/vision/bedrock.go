package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/bytedance/sonic"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/logging"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// InvokeModelAPI is the slice of the Bedrock runtime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type bedrockProvider struct {
	api    InvokeModelAPI
	cfg    config.VisionConfig
	logger *logging.Logger
}

// NewBedrock returns a provider calling InvokeModel. The request body
// follows the model family encoded in the model id.
func NewBedrock(api InvokeModelAPI, cfg config.VisionConfig, logger *logging.Logger) Provider {
	return &bedrockProvider{api: api, cfg: cfg, logger: logger}
}

func (p *bedrockProvider) Name() string  { return "bedrock" }
func (p *bedrockProvider) Model() string { return p.cfg.ModelID }

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicBody struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	TopP             float64            `json:"top_p"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResult struct {
	Model   string             `json:"model"`
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type llamaImage struct {
	Format string `json:"format"`
	Source struct {
		Bytes string `json:"bytes"`
	} `json:"source"`
}

type llamaBody struct {
	Prompt      string       `json:"prompt"`
	MaxGenLen   int          `json:"max_gen_len"`
	Temperature float64      `json:"temperature"`
	TopP        float64      `json:"top_p"`
	Images      []llamaImage `json:"images"`
}

type llamaResult struct {
	Generation string `json:"generation"`
	Outputs    []struct {
		Text string `json:"text"`
	} `json:"outputs"`
	PromptTokenCount     int `json:"prompt_token_count"`
	GenerationTokenCount int `json:"generation_token_count"`
}

func isLlama(modelID string) bool {
	return strings.HasPrefix(modelID, "meta.") || strings.Contains(modelID, ".meta.")
}

func (p *bedrockProvider) Analyze(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	body, err := p.buildBody(req)
	if err != nil {
		return nil, fmt.Errorf("encode bedrock request: %w", err)
	}

	p.logger.InfoTag("VISION", "Calling vision model %s", p.cfg.ModelID)
	out, err := p.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.cfg.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.parseBody(out.Body)
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(start)
	p.logger.InfoTag("VISION", "Vision model response received in %.2fs", resp.Duration.Seconds())
	return resp, nil
}

func (p *bedrockProvider) buildBody(req Request) ([]byte, error) {
	mediaType := mediaTypeOrDefault(req.MediaType)
	if isLlama(p.cfg.ModelID) {
		img := llamaImage{Format: mediaType[strings.LastIndex(mediaType, "/")+1:]}
		img.Source.Bytes = req.ImageBase64
		return sonic.Marshal(llamaBody{
			Prompt: "<|begin_of_text|><|start_header_id|>user<|end_header_id|>\n\n" + req.Prompt +
				"\n\n[Image: " + mediaType + " base64 data provided]<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n\n",
			MaxGenLen:   p.cfg.MaxTokens,
			Temperature: p.cfg.Temperature,
			TopP:        p.cfg.TopP,
			Images:      []llamaImage{img},
		})
	}
	return sonic.Marshal(anthropicBody{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        p.cfg.MaxTokens,
		Temperature:      p.cfg.Temperature,
		TopP:             p.cfg.TopP,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{Type: "image", Source: &anthropicSource{Type: "base64", MediaType: mediaType, Data: req.ImageBase64}},
				{Type: "text", Text: req.Prompt},
			},
		}},
	})
}

func (p *bedrockProvider) parseBody(raw []byte) (*Response, error) {
	if isLlama(p.cfg.ModelID) {
		var res llamaResult
		if err := sonic.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode bedrock response: %w", err)
		}
		text := res.Generation
		if text == "" && len(res.Outputs) > 0 {
			text = res.Outputs[0].Text
		}
		return &Response{
			Text:  text,
			Model: p.cfg.ModelID,
			Usage: Usage{InputTokens: res.PromptTokenCount, OutputTokens: res.GenerationTokenCount},
		}, nil
	}

	var res anthropicResult
	if err := sonic.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode bedrock response: %w", err)
	}
	var text strings.Builder
	for _, c := range res.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	model := res.Model
	if model == "" {
		model = p.cfg.ModelID
	}
	return &Response{
		Text:  text.String(),
		Model: model,
		Usage: Usage{InputTokens: res.Usage.InputTokens, OutputTokens: res.Usage.OutputTokens},
	}, nil
}
