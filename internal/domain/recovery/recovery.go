// Package recovery serves day-by-day post-operative recovery plans stored as
// a JSON protocol document in S3.
package recovery

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bytedance/sonic"

	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/platform/observability"
)

const (
	CodeMissingBucket = "missing_bucket"
	CodeMissingDay    = "missing_day"
	CodeFetchFailed   = "plan_fetch_failed"

	MissingBucketMessage = "Error: S3_BUCKET_NAME environment variable is not set."
	MissingDayMessage    = "I'm sorry, you need to specify which day you want the plan for."
	NoPlanMessage        = "No plan found for that day."
)

// ObjectGetter is the slice of the S3 API the service uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// DayPlan is one timeline entry. Tasks is kept as decoded JSON since
// protocols store either a list of steps or a single paragraph.
type DayPlan struct {
	Day   int `json:"day"`
	Tasks any `json:"tasks"`
}

type Protocol struct {
	Timeline []DayPlan `json:"timeline"`
}

// Find returns the tasks for day, or NoPlanMessage.
func (p Protocol) Find(day int) any {
	for _, item := range p.Timeline {
		if item.Day == day {
			return item.Tasks
		}
	}
	return NoPlanMessage
}

type Service struct {
	client ObjectGetter
	bucket string
	key    string
	logger *logging.Logger
}

func NewService(client ObjectGetter, bucket, key string, logger *logging.Logger) *Service {
	return &Service{client: client, bucket: bucket, key: key, logger: logger}
}

// ParseDay accepts the day as a JSON number or a numeric string.
func ParseDay(v any) (int, bool) {
	switch d := v.(type) {
	case int:
		return d, true
	case int64:
		return int(d), true
	case float64:
		return int(d), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(d))
		return n, err == nil
	default:
		return 0, false
	}
}

// Plan loads the protocol and returns the tasks for day.
func (s *Service) Plan(ctx context.Context, day *int) (tasks any, err error) {
	ctx, finish := observability.StartSpan(ctx, "recovery", "plan")
	defer func() { finish(err) }()

	if s.bucket == "" {
		return nil, errors.New(errors.KindConfig, "recovery.plan", MissingBucketMessage).WithCode(CodeMissingBucket)
	}
	if day == nil {
		return nil, errors.New(errors.KindValidation, "recovery.plan", MissingDayMessage).WithCode(CodeMissingDay)
	}

	protocol, err := s.load(ctx)
	if err != nil {
		s.logger.ErrorTag("RECOVERY", "failed to load protocol s3://%s/%s: %v", s.bucket, s.key, err)
		return nil, err
	}
	return protocol.Find(*day), nil
}

func (s *Service) load(ctx context.Context) (Protocol, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return Protocol{}, fetchError(err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return Protocol{}, fetchError(err)
	}
	var protocol Protocol
	if err := sonic.Unmarshal(raw, &protocol); err != nil {
		return Protocol{}, fetchError(err)
	}
	return protocol, nil
}

func fetchError(err error) error {
	return errors.Wrap(errors.KindStorage, "recovery.load", fmt.Sprintf("An error occurred: %v", err), err).WithCode(CodeFetchFailed)
}
