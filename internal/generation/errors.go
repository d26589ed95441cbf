package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by the generation package
var (
	// ErrCredentialMissing is returned when neither the request nor the
	// configuration supplies an API key
	ErrCredentialMissing = errors.New("gemini API key is required")

	// ErrCredentialRejected is returned when the provider refuses the API key
	ErrCredentialRejected = errors.New("gemini API key was rejected")

	// ErrTransientFailure is returned when retryable errors persist past the retry budget
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrUpstream is returned for terminal provider errors that are not retried
	ErrUpstream = errors.New("language model request failed")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrSchemaViolation is returned when a parsed response does not have the expected shape
	ErrSchemaViolation = errors.New("language model response violates schema")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// UpstreamError carries the provider's status for a terminal failure.
// Code is zero when the request failed before the provider answered, in
// which case Err holds the transport error.
type UpstreamError struct {
	Code    int
	Status  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Code == 0 && e.Status == "" {
		return fmt.Sprintf("%s: %s", ErrUpstream, e.Message)
	}
	return fmt.Sprintf("%s: %d %s: %s", ErrUpstream, e.Code, e.Status, e.Message)
}

// Unwrap exposes ErrUpstream and, when present, the transport error.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// ResponseError carries the raw model text that could not be decoded.
type ResponseError struct {
	Raw string
	Err error
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrInvalidResponse, e.Err)
}

// Unwrap exposes both ErrInvalidResponse and the decoding error.
func (e *ResponseError) Unwrap() []error {
	return []error{ErrInvalidResponse, e.Err}
}
