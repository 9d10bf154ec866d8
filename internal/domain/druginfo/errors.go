package druginfo

import (
	"strings"

	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/platform/errors"
)

// Failure codes for label lookups.
const (
	CodeNotFound    = "drug_not_found"
	CodeAPIError    = "drug_api_error"
	CodeTimeout     = "drug_api_timeout"
	CodeNetwork     = "network_error"
	CodeAuth        = "authentication_error"
	CodeRateLimited = "rate_limit_exceeded"
)

// Classify attaches a failure code to a lookup error from its message when
// it does not carry one yet.
func Classify(err error) error {
	if err == nil || errors.CodeOf(err) != "" {
		return err
	}
	msg := strings.ToLower(err.Error())
	code := CodeAPIError
	kind := errors.KindDrugInfo
	switch {
	case strings.Contains(msg, "not found"), strings.Contains(msg, "404"):
		code = CodeNotFound
	case strings.Contains(msg, "timeout"):
		code, kind = CodeTimeout, errors.KindTimeout
	case strings.Contains(msg, "network"), strings.Contains(msg, "connection"):
		code = CodeNetwork
	case strings.Contains(msg, "auth"):
		code = CodeAuth
	}
	return errors.Wrap(kind, "druginfo.lookup", "Drug information lookup failed", err).WithCode(code)
}

// Outcome is the lookup result handed to response synthesis.
type Outcome struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Suggestion  string       `json:"suggestion,omitempty"`
	UserMessage string       `json:"user_message,omitempty"`
	DrugInfo    *model.Label `json:"drug_info"`
}

// Hint turns a lookup error into user-facing wording.
func Hint(err error, name string) Outcome {
	msg := errors.MessageOf(err)
	lower := strings.ToLower(msg)
	switch {
	case errors.CodeOf(err) == CodeNotFound || strings.Contains(lower, "not found") || strings.Contains(lower, "no information found"):
		return Outcome{
			Error:       "No information found for '" + name + "'",
			Suggestion:  "Try using the generic name or check the spelling",
			UserMessage: "I couldn't find detailed information for '" + name + "' in the FDA database. This might be because it's spelled differently or it's not in the database.",
		}
	case strings.Contains(lower, "api request failed"):
		return Outcome{
			Error:       "Drug information service temporarily unavailable",
			Suggestion:  "Please try again in a few moments",
			UserMessage: "The drug information service is temporarily unavailable. Please try again later.",
		}
	default:
		return Outcome{
			Error:       msg,
			Suggestion:  "Please try again or contact support if the issue persists",
			UserMessage: "There was an issue retrieving drug information: " + msg,
		}
	}
}
