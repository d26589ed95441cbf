package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/studyguide-api/internal/api/shared"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/phrazzld/studyguide-api/internal/redact"
	"github.com/phrazzld/studyguide-api/internal/service/auth"
)

// IdentityMiddleware resolves the guide owner from a bearer token.
type IdentityMiddleware struct {
	jwtService auth.JWTService
	required   bool
	logger     *slog.Logger
}

// NewIdentityMiddleware creates an IdentityMiddleware. When required is
// false, requests without an Authorization header pass through anonymously
// and handlers fall back to the user_id the client supplies.
func NewIdentityMiddleware(jwtService auth.JWTService, required bool, logger *slog.Logger) *IdentityMiddleware {
	if jwtService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("jwtService cannot be nil for IdentityMiddleware")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityMiddleware{
		jwtService: jwtService,
		required:   required,
		logger:     logger.With(slog.String("component", "identity_middleware")),
	}
}

// Identify validates a Bearer token when present and stores its subject as
// the request owner. An invalid token is always rejected.
func (m *IdentityMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContextOrDefault(r.Context(), m.logger)

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.required {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrTokenNotYetValid),
				errors.Is(err, auth.ErrWrongTokenType),
				errors.Is(err, auth.ErrWrongIssuer),
				errors.Is(err, auth.ErrMissingSubject):
				shared.RespondWithErrorAndLog(w, r, http.StatusUnauthorized, "Invalid token", err,
					shared.WithElevatedLogLevel())
			default:
				log.Error("failed to validate token", "error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		ctx := shared.SetOwner(r.Context(), claims.Subject)
		ctx = logger.WithLogger(ctx, log.With(slog.String("owner", claims.Subject)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
