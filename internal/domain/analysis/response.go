package analysis

import (
	"net/http"
	"time"

	"medid-server-go/internal/domain/failure"
	"medid-server-go/internal/domain/image"
	"medid-server-go/internal/domain/synthesis"
	"medid-server-go/internal/platform/errors"
)

// ErrorResponse picks the status and body for a failed analysis. A missing
// image gets the typed validation body; everything else is classified.
func ErrorResponse(err error, now time.Time) (int, any) {
	if errors.CodeOf(err) == image.CodeNoImageData && errors.MessageOf(err) == MissingImageMessage {
		return http.StatusBadRequest, synthesis.NewErrorBody(MissingImageMessage, synthesis.ErrorValidation, now)
	}
	details := failure.Classify(err)
	return details.StatusCode(), details.Body()
}
