package shared

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is the type of request-scoped values set by this package.
type ContextKey string

const (
	// OwnerContextKey is the context key for the authenticated guide owner
	OwnerContextKey ContextKey = "owner"

	// TraceIDKey is the key for the trace ID in the request context
	TraceIDKey ContextKey = "traceID"

	// maxTraceIDLength bounds client-supplied trace ids.
	maxTraceIDLength = 64
)

// NewTraceID returns a random 32 character hex trace id.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidTraceID reports whether id is safe to adopt from a client header:
// non-empty, bounded, and limited to letters, digits, '-' and '_'.
func ValidTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return WithTraceID(ctx, NewTraceID())
}

// WithTraceID stores traceID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// SetOwner stores the authenticated owner id in the context.
func SetOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, OwnerContextKey, owner)
}

// GetOwner returns the authenticated owner id, or "" when the request
// carried no verified identity.
func GetOwner(ctx context.Context) string {
	owner, _ := ctx.Value(OwnerContextKey).(string)
	return owner
}
