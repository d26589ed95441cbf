package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/studyguide-api/internal/api/shared"
	"github.com/phrazzld/studyguide-api/internal/domain"
	"github.com/phrazzld/studyguide-api/internal/extract"
	"github.com/phrazzld/studyguide-api/internal/generation"
	"github.com/phrazzld/studyguide-api/internal/service"
	"github.com/phrazzld/studyguide-api/internal/store"
)

// ErrUploadTooLarge is returned when an upload exceeds server.max_upload_mb.
var ErrUploadTooLarge = errors.New("upload too large")

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Credential errors
	case errors.Is(err, generation.ErrCredentialMissing):
		return http.StatusBadRequest
	case errors.Is(err, generation.ErrCredentialRejected):
		return http.StatusUnauthorized

	// Model output errors, checked before validation since schema
	// violations wrap the domain validation error
	case errors.Is(err, generation.ErrContentBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrSchemaViolation),
		errors.Is(err, generation.ErrUpstream):
		return http.StatusBadGateway

	// Upload errors
	case errors.Is(err, service.ErrExtractionFailed):
		return http.StatusBadRequest
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrUploadTooLarge),
		errors.Is(err, service.ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge

	// Not found errors
	case errors.Is(err, service.ErrGuideNotFound),
		errors.Is(err, store.ErrGuideNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Temporary failures
	case errors.Is(err, generation.ErrTransientFailure),
		errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErr *domain.ValidationError

	switch {
	case errors.Is(err, generation.ErrCredentialMissing):
		return "Gemini API key is required"
	case errors.Is(err, generation.ErrCredentialRejected):
		return "Invalid Gemini API key"

	case errors.Is(err, generation.ErrContentBlocked):
		return "Content blocked by safety filters"
	case errors.Is(err, generation.ErrInvalidResponse),
		errors.Is(err, generation.ErrSchemaViolation):
		return "Invalid response from AI model"

	case errors.Is(err, service.ErrExtractionFailed):
		return "Could not extract text."
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return "Unsupported file format"
	case errors.Is(err, ErrUploadTooLarge):
		return "File too large"
	case errors.Is(err, service.ErrMediaTooLarge):
		return "Media file too large to transcribe"

	case errors.Is(err, service.ErrGuideNotFound),
		errors.Is(err, store.ErrGuideNotFound):
		return "Guide not found"
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"

	case errors.As(err, &validationErr):
		return "Invalid " + validationErr.Field + ": " + validationErr.Message
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return "Validation error"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"

	case errors.Is(err, generation.ErrUpstream):
		return "AI service error"
	case errors.Is(err, generation.ErrTransientFailure):
		return "AI service temporarily unavailable, please retry"
	case errors.Is(err, store.ErrStoreUnavailable):
		return "Storage temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted error. A non-empty defaultMsg replaces the generic message used
// for unmapped errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		message = defaultMsg
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError removes sensitive details from validator errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}

	// Fall back to a generic validation error message
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "gte", "min":
		return "too small"
	case "max", "lte":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
