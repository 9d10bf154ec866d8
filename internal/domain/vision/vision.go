// Package vision sends medication photos to a multimodal model and turns the
// free-text answer into a structured identification.
package vision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medid-server-go/internal/platform/awsclient"
	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/logging"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Request is one image analysis call.
type Request struct {
	ImageBase64 string
	MediaType   string
	Prompt      string
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the raw model answer.
type Response struct {
	Text     string
	Model    string
	Usage    Usage
	Duration time.Duration
}

// Provider is implemented by each model backend.
type Provider interface {
	Name() string
	Model() string
	Analyze(ctx context.Context, req Request) (*Response, error)
}

// Options configures New.
type Options struct {
	Vision config.VisionConfig
	AWS    config.AWSConfig
	Logger *logging.Logger
}

// New builds the provider named by opts.Vision.Provider.
func New(ctx context.Context, opts Options) (Provider, error) {
	switch strings.ToLower(opts.Vision.Provider) {
	case "", "bedrock":
		awsCfg, err := awsclient.Load(ctx, opts.AWS)
		if err != nil {
			return nil, err
		}
		return NewBedrock(bedrockruntime.NewFromConfig(awsCfg), opts.Vision, opts.Logger), nil
	case "openai":
		return NewOpenAI(opts.Vision, opts.Logger), nil
	case "anthropic":
		return NewAnthropic(opts.Vision, opts.Logger), nil
	case "ollama":
		if opts.Vision.BaseURL == "" {
			return nil, fmt.Errorf("ollama provider requires base_url")
		}
		return NewOllama(opts.Vision, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", opts.Vision.Provider)
	}
}

func mediaTypeOrDefault(mt string) string {
	if mt == "" {
		return "image/jpeg"
	}
	return mt
}
