package vision

import (
	"context"
	"time"

	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/platform/observability"
)

const (
	breakerMaxFailures = 5
	breakerRetryAfter  = 30 * time.Second
)

// Result pairs the model answer with the identification parsed from it.
type Result struct {
	Identification Identification
	Response       *Response
	Prompt         PromptTemplate
}

// Client wraps a Provider with prompt defaults, error classification and a
// circuit breaker shared by every request.
type Client struct {
	provider      Provider
	breaker       *circuitBreaker
	logger        *logging.Logger
	defaultPrompt string
}

func NewClient(p Provider, defaultPrompt string, logger *logging.Logger) *Client {
	if defaultPrompt == "" {
		defaultPrompt = Prompt(PromptStandard)
	}
	return &Client{
		provider:      p,
		breaker:       newCircuitBreaker(breakerMaxFailures, breakerRetryAfter),
		logger:        logger,
		defaultPrompt: defaultPrompt,
	}
}

func (c *Client) ProviderName() string { return c.provider.Name() }
func (c *Client) Model() string        { return c.provider.Model() }

// Analyze calls the provider once. Failures come back classified with a
// failure code.
func (c *Client) Analyze(ctx context.Context, req Request) (resp *Response, err error) {
	ctx, finish := observability.StartSpan(ctx, "vision", "analyze")
	defer func() { finish(err) }()

	if req.ImageBase64 == "" {
		return nil, errors.New(errors.KindValidation, "vision.analyze", "No image data provided").WithCode("no_image_data")
	}
	if req.Prompt == "" {
		req.Prompt = c.defaultPrompt
	}
	req.MediaType = mediaTypeOrDefault(req.MediaType)

	if !c.breaker.allow() {
		c.logger.WarnTag("VISION", "Circuit open for %s, rejecting call", c.provider.Model())
		return nil, errors.New(errors.KindVision, "vision.analyze", "Vision model temporarily unavailable").WithCode(CodeUnavailable)
	}

	resp, err = c.provider.Analyze(ctx, req)
	if err != nil {
		c.breaker.recordFailure()
		err = Classify(err)
		c.logger.ErrorTag("VISION", "Vision call failed (%s): %v", errors.CodeOf(err), err)
		return nil, err
	}
	c.breaker.recordSuccess()

	if resp.Model == "" {
		resp.Model = c.provider.Model()
	}
	c.logger.InfoTag("VISION", "Vision analysis completed in %s, %d input / %d output tokens",
		resp.Duration.Round(time.Millisecond), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return resp, nil
}

// Identify analyzes the image and extracts the medication from the answer.
func (c *Client) Identify(ctx context.Context, req Request) (*Result, error) {
	resp, err := c.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Result{Identification: Extract(resp.Text), Response: resp}, nil
}

// IdentifyWith uses one of the built-in prompt templates.
func (c *Client) IdentifyWith(ctx context.Context, imageBase64, mediaType string, tmpl PromptTemplate) (*Result, error) {
	res, err := c.Identify(ctx, Request{ImageBase64: imageBase64, MediaType: mediaType, Prompt: Prompt(tmpl)})
	if err != nil {
		return nil, err
	}
	res.Prompt = tmpl
	return res, nil
}

// IdentifyWithConfidenceCheck runs the standard prompt and, when the answer
// is unsure, asks again with the confidence-check prompt and keeps the more
// confident reading.
func (c *Client) IdentifyWithConfidenceCheck(ctx context.Context, imageBase64, mediaType string, threshold float64) (*Result, error) {
	first, err := c.IdentifyWith(ctx, imageBase64, mediaType, PromptStandard)
	if err != nil {
		return nil, err
	}
	if first.Identification.IsHighConfidence(threshold) {
		return first, nil
	}

	second, err := c.IdentifyWith(ctx, imageBase64, mediaType, PromptConfidenceCheck)
	if err != nil {
		c.logger.WarnTag("VISION", "Confidence check failed, keeping first answer: %v", err)
		return first, nil
	}
	if second.Identification.Confidence > first.Identification.Confidence && second.Identification.HasValidIdentification() {
		return second, nil
	}
	return first, nil
}
