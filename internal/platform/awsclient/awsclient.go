// Package awsclient builds the shared AWS SDK configuration used by the
// Bedrock and S3 clients.
package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
)

// Load resolves credentials from the default chain for cfg.Region. A
// non-empty Endpoint overrides the service endpoint, which is how local
// emulators such as LocalStack are reached.
func Load(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, errors.Wrap(errors.KindConfig, "aws.load", "failed to load AWS configuration", err)
	}
	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return awsCfg, nil
}
