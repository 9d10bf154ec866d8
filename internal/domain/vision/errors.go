package vision

import (
	"context"
	stderrors "errors"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/sashabaranov/go-openai"

	"medid-server-go/internal/platform/errors"
)

// Failure codes for provider errors.
const (
	CodeTimeout        = "vision_api_timeout"
	CodeRateLimited    = "rate_limit_exceeded"
	CodeUnavailable    = "model_unavailable"
	CodeAuthentication = "authentication_error"
	CodeNetwork        = "network_error"
	CodeAPIError       = "vision_api_error"
	CodeLowConfidence  = "low_confidence"
	CodeNoMedication   = "no_medication_detected"
)

var statusPattern = regexp.MustCompile(`status code: (\d{3})`)

// Classify attaches a failure code to a provider error. Errors that already
// carry a code are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.CodeOf(err) != "" {
		return err
	}
	code := classifyCode(err)
	kind := errors.KindVision
	if code == CodeTimeout {
		kind = errors.KindTimeout
	}
	return errors.Wrap(kind, "vision.analyze", "Vision model API error", err).WithCode(code)
}

func classifyCode(err error) string {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceQuotaExceededException", "TooManyRequestsException":
			return CodeRateLimited
		case "ModelTimeoutException", "RequestTimeout":
			return CodeTimeout
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException", "InvalidSignatureException":
			return CodeAuthentication
		case "ServiceUnavailableException", "ModelNotReadyException", "ResourceNotFoundException", "InternalServerException":
			return CodeUnavailable
		}
	}

	if code := codeForStatus(statusOf(err)); code != "" {
		return code
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return CodeTimeout
		}
		return CodeNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return CodeTimeout
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "throttl"):
		return CodeRateLimited
	case strings.Contains(msg, "unavailable"), strings.Contains(msg, "overloaded"):
		return CodeUnavailable
	case strings.Contains(msg, "authentication"), strings.Contains(msg, "unauthorized"):
		return CodeAuthentication
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection"):
		return CodeNetwork
	}
	return CodeAPIError
}

func statusOf(err error) int {
	var oaiAPI *openai.APIError
	if stderrors.As(err, &oaiAPI) {
		return oaiAPI.HTTPStatusCode
	}
	var oaiReq *openai.RequestError
	if stderrors.As(err, &oaiReq) {
		return oaiReq.HTTPStatusCode
	}
	var withStatus interface{ HTTPStatusCode() int }
	if stderrors.As(err, &withStatus) {
		return withStatus.HTTPStatusCode()
	}
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		return status
	}
	return 0
}

func codeForStatus(status int) string {
	switch {
	case status == 429:
		return CodeRateLimited
	case status == 401 || status == 403:
		return CodeAuthentication
	case status == 408 || status == 504:
		return CodeTimeout
	case status == 404 || status == 503 || status == 529:
		return CodeUnavailable
	case status >= 400:
		return CodeAPIError
	}
	return ""
}
