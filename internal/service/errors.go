package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is; the API layer maps them to HTTP
// status codes.
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in GuideServiceError
// 3. Generation and store errors keep their identity through the wrapping
var (
	// ErrGuideNotFound indicates that no guide exists with the requested id.
	// API layer should map this to HTTP 404 Not Found.
	ErrGuideNotFound = errors.New("guide not found")

	// ErrTaskNotFound indicates a schedule index outside the guide's schedule.
	ErrTaskNotFound = errors.New("task not found")

	// ErrExtractionFailed indicates that a document yielded no usable text.
	ErrExtractionFailed = errors.New("could not extract text")

	// ErrMediaTooLarge indicates media too large to send for inline transcription.
	ErrMediaTooLarge = errors.New("media too large to transcribe")

	// ErrInvalidProgress indicates progress counts outside 0 <= completed <= total.
	ErrInvalidProgress = fmt.Errorf("%w: invalid progress counts", domain.ErrValidation)
)

// GuideServiceError wraps errors from the guide service with context.
type GuideServiceError struct {
	// Operation is the operation that failed (e.g., "create_guide", "replan")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for GuideServiceError.
func (e *GuideServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("guide service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("guide service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *GuideServiceError) Unwrap() error {
	return e.Err
}

// NewGuideServiceError creates a new GuideServiceError.
// It returns known sentinel errors directly without wrapping.
func NewGuideServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ErrGuideNotFound), errors.Is(err, store.ErrGuideNotFound):
		return ErrGuideNotFound
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, domain.ErrTaskIndexOutOfRange):
		return ErrTaskNotFound
	case errors.Is(err, ErrExtractionFailed), errors.Is(err, ErrMediaTooLarge):
		return err
	}

	return &GuideServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
