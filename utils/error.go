package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError: bad/unknown document type or malformed input.
// Surfaced immediately, never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvalidStateError: illegal job transition. A programming or race defect,
// logged loudly, never silently swallowed.
type InvalidStateError struct {
	JobId string
	From  string
	To    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid job transition %s -> %s (job=%s)", e.From, e.To, e.JobId)
}

func IsInvalidStateError(err error) bool {
	var se *InvalidStateError
	return errors.As(err, &se)
}

// DependencyUnavailableError: retries exhausted or circuit open for an
// external target. Callers may fall back or fail the job; they must not
// re-retry at a higher layer.
type DependencyUnavailableError struct {
	Target string
	Reason string
}

func (e *DependencyUnavailableError) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %s", e.Target, e.Reason)
}

func IsDependencyUnavailable(err error) bool {
	var de *DependencyUnavailableError
	return errors.As(err, &de)
}

// InvalidRequestError: the outbound request itself was rejected (4xx class).
// Never retried anywhere.
type InvalidRequestError struct {
	Target     string
	StatusCode int
	Body       string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("dependency %s rejected request (status=%d): %s", e.Target, e.StatusCode, e.Body)
}

func IsInvalidRequest(err error) bool {
	var ie *InvalidRequestError
	return errors.As(err, &ie)
}

// RenderError: template or data assembly failure inside the rendering
// capability. Fails the job with a truncated diagnostic.
type RenderError struct {
	TemplateRef string
	Message     string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed (template=%s): %s", e.TemplateRef, e.Message)
}

func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}
