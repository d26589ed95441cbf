package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/studyguide-api/internal/api/middleware"
	"github.com/phrazzld/studyguide-api/internal/api/shared"
	"github.com/phrazzld/studyguide-api/internal/config"
	"github.com/phrazzld/studyguide-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "identity-middleware-test-secret-0123456789"

type stubJWTService struct {
	ValidateTokenFn func(ctx context.Context, token string) (*auth.Claims, error)
}

func (s *stubJWTService) GenerateToken(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubJWTService) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	return s.ValidateTokenFn(ctx, token)
}

// ownerEcho writes the resolved owner, or "-" for an anonymous request.
var ownerEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	owner := shared.GetOwner(r.Context())
	if owner == "" {
		owner = "-"
	}
	_, _ = w.Write([]byte(owner))
})

func TestIdentify(t *testing.T) {
	jwtService, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	token, err := jwtService.GenerateToken(context.Background(), "alice")
	require.NoError(t, err)

	tests := []struct {
		name       string
		required   bool
		header     string
		wantStatus int
		wantBody   string
		wantError  string
	}{
		{name: "valid token sets owner", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "no header passes through when optional", wantStatus: http.StatusOK, wantBody: "-"},
		{name: "no header rejected when required", required: true, wantStatus: http.StatusUnauthorized, wantError: "Authorization header required"},
		{name: "malformed header", header: "Token " + token, wantStatus: http.StatusUnauthorized, wantError: "Invalid authorization format"},
		{name: "invalid token rejected even when optional", header: "Bearer not-a-token", wantStatus: http.StatusUnauthorized, wantError: "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.NewIdentityMiddleware(jwtService, tt.required, nil).Identify(ownerEcho)

			req := httptest.NewRequest(http.MethodGet, "/api/guides", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				var resp shared.ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantError, resp.Error)
				return
			}
			assert.Equal(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestIdentify_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "expired", err: auth.ErrExpiredToken, wantStatus: http.StatusUnauthorized, wantError: "Token expired"},
		{name: "wrong type", err: auth.ErrWrongTokenType, wantStatus: http.StatusUnauthorized, wantError: "Invalid token"},
		{name: "no subject", err: auth.ErrMissingSubject, wantStatus: http.StatusUnauthorized, wantError: "Invalid token"},
		{name: "foreign issuer", err: auth.ErrWrongIssuer, wantStatus: http.StatusUnauthorized, wantError: "Invalid token"},
		{name: "unexpected", err: errors.New("keystore offline"), wantStatus: http.StatusInternalServerError, wantError: "Authentication error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubJWTService{ValidateTokenFn: func(context.Context, string) (*auth.Claims, error) {
				return nil, tt.err
			}}
			handler := middleware.NewIdentityMiddleware(stub, false, nil).Identify(ownerEcho)

			req := httptest.NewRequest(http.MethodGet, "/api/guides", nil)
			req.Header.Set("Authorization", "Bearer abc")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			var resp shared.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestNewIdentityMiddleware_NilService(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewIdentityMiddleware(nil, false, nil)
	})
}
