package image

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/platform/observability"
)

// maxPixels bounds the decoded bitmap to keep hostile headers from
// exhausting memory.
const maxPixels = 50_000_000

// Pipeline decodes, validates, assesses and optimises uploaded images.
type Pipeline struct {
	validator *Validator
	logger    *logging.Logger
	cfg       config.ImageConfig
}

// Options configures the pipeline behaviour.
type Options struct {
	Config config.ImageConfig
	Logger *logging.Logger
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Config.MaxSize <= 0 {
		return nil, fmt.Errorf("image max size must be positive")
	}
	if len(opts.Config.SupportedFormats) == 0 {
		return nil, fmt.Errorf("at least one supported image format is required")
	}
	return &Pipeline{
		validator: NewValidator(opts.Config, opts.Logger),
		logger:    opts.Logger,
		cfg:       opts.Config,
	}, nil
}

// Validator exposes the configured validator.
func (p *Pipeline) Validator() *Validator { return p.validator }

// Process decodes a base64 string or data URL and runs it through the
// pipeline.
func (p *Pipeline) Process(ctx context.Context, data string) (*Processed, error) {
	raw, err := DecodeBase64(data)
	if err != nil {
		return nil, err
	}
	return p.ProcessBytes(ctx, raw)
}

// ProcessBytes validates raw and prepares it for the vision model. When
// optimisation fails the original bytes are passed through.
func (p *Pipeline) ProcessBytes(ctx context.Context, raw []byte) (out *Processed, err error) {
	ctx, finish := observability.StartSpan(ctx, "image", "process")
	defer func() { finish(err) }()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.KindTimeout, "image.process", "image processing cancelled", err)
	}

	validation, err := p.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	if int64(validation.Width)*int64(validation.Height) > maxPixels {
		return nil, errors.New(errors.KindImage, "image.process",
			fmt.Sprintf("Image has too many pixels (%dx%d)", validation.Width, validation.Height)).WithCode(CodePreprocessingFailed)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(errors.KindImage, "image.process", "Image appears to be corrupted", err).WithCode(CodeCorruptedImage)
	}

	out = &Processed{
		Bytes:        raw,
		Format:       validation.Format,
		MediaType:    validation.MediaType,
		OriginalSize: len(raw),
		Width:        validation.Width,
		Height:       validation.Height,
		Validation:   validation,
	}

	final := img
	if p.cfg.Optimize {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.KindTimeout, "image.process", "image processing cancelled", err)
		}
		optimized := Optimize(img)
		encoded, format, encErr := Encode(optimized, validation.HasTransparency)
		if encErr != nil {
			p.logger.WarnTag("IMAGE", "optimisation failed, using original image: %v", encErr)
		} else {
			final = optimized
			out.Bytes = encoded
			out.Format = format
			out.MediaType = MediaType(format)
			out.Width = optimized.Bounds().Dx()
			out.Height = optimized.Bounds().Dy()
			out.Optimized = true
		}
	}

	out.ProcessedSize = len(out.Bytes)
	out.Base64 = EncodeBase64(out.Bytes)
	out.Quality = Assess(final)

	p.logger.InfoTag("IMAGE", "image processed: format=%s %dx%d -> %dx%d size=%d->%d quality=%s",
		validation.Format, validation.Width, validation.Height, out.Width, out.Height,
		out.OriginalSize, out.ProcessedSize, out.Quality.Quality)
	return out, nil
}
