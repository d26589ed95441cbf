package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/studyguide-api/internal/api/shared"
	"github.com/phrazzld/studyguide-api/internal/domain"
)

// CredentialHeader carries the caller's Gemini API key.
const CredentialHeader = "X-Gemini-API-Key"

// credentialFromRequest returns the caller's Gemini API key: the header
// first, then the api_key value from the body or form. An empty result lets
// the generator fall back to the server key.
func credentialFromRequest(r *http.Request, bodyKey string) string {
	if key := strings.TrimSpace(r.Header.Get(CredentialHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(bodyKey)
}

// ownerFromRequest returns the verified owner from the identity middleware,
// or the client-supplied user id, or the anonymous owner.
func ownerFromRequest(r *http.Request, userID string) string {
	if owner := shared.GetOwner(r.Context()); owner != "" {
		return owner
	}
	if userID = strings.TrimSpace(userID); userID != "" {
		return userID
	}
	return domain.AnonymousOwner
}

// getPathID extracts a non-empty guide id from the URL path parameters.
func getPathID(r *http.Request, paramName string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, paramName))
	if id == "" {
		return "", domain.NewValidationError(paramName, "is required", domain.ErrInvalidID)
	}
	return id, nil
}

// decodeRequest decodes and validates a JSON body into v, writing the error
// response itself. It reports whether the handler should continue.
func decodeRequest(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) bool {
	decode := shared.DecodeJSON
	if optional {
		decode = shared.DecodeOptionalJSON
	}
	if err := decode(r, v); err != nil {
		if errors.Is(err, shared.ErrBodyTooLarge) {
			shared.RespondWithError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return false
	}
	return true
}
