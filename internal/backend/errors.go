package backend

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// genericAnalysisError is shown when the backend fails without an error field.
const genericAnalysisError = "An error occurred during analysis."

// ValidationError reports a submission rejected locally, before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// TimeoutError reports that the analysis request exceeded its ceiling.
type TimeoutError struct {
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis request timed out after %s", e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response that is not the expected JSON:
// a non-JSON content type, or a JSON body that does not match the schema.
type MalformedResponseError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("server returned non-JSON response (status %d)", e.StatusCode)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// IsPayloadTooLarge reports whether a gateway rejected the upload size.
func (e *MalformedResponseError) IsPayloadTooLarge() bool {
	return e.StatusCode == http.StatusRequestEntityTooLarge
}

// ApplicationError is a well-formed JSON error returned by the backend.
type ApplicationError struct {
	StatusCode int
	Message    string
	// JobID is set when the error body still named a job.
	JobID string
}

func (e *ApplicationError) Error() string { return e.Message }

// TransportError reports a network failure with no response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Severity ranks a user-facing failure message.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Classification is the user-facing rendition of a failure.
type Classification struct {
	Message  string
	Severity Severity
}

// Classify maps a failure raised by a submission to the message shown to the user.
func Classify(err error) Classification {
	var (
		valErr     *ValidationError
		timeoutErr *TimeoutError
		malformed  *MalformedResponseError
		appErr     *ApplicationError
	)
	switch {
	case err == nil:
		return Classification{}
	case errors.As(err, &valErr):
		return Classification{
			Message:  "Please upload at least one résumé.",
			Severity: SeverityError,
		}
	case errors.As(err, &timeoutErr):
		return Classification{
			Message:  "Analysis is taking longer than expected. Processing may still be running; check the Jobs page in a few minutes.",
			Severity: SeverityWarning,
		}
	case errors.As(err, &malformed):
		if malformed.IsPayloadTooLarge() {
			return Classification{
				Message:  "Request too large. Please reduce the number of files or file sizes. Maximum 100MB total upload allowed.",
				Severity: SeverityError,
			}
		}
		return Classification{
			Message:  "Analysis completed but there was a response issue. Please check the Jobs page to see your processed résumés.",
			Severity: SeverityWarning,
		}
	case errors.As(err, &appErr):
		msg := appErr.Message
		if msg == "" {
			msg = genericAnalysisError
		}
		return Classification{Message: msg, Severity: SeverityError}
	}
	return Classification{
		Message:  "Error: " + err.Error(),
		Severity: SeverityError,
	}
}
