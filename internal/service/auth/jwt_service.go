// Package auth mints and verifies the HS256 bearer tokens whose subject is
// the guide owner.
package auth

import (
	"context"
	"time"
)

// TokenIssuer is the iss claim of tokens minted by this service. Tokens
// without an issuer are also accepted.
const TokenIssuer = "studyguide-api"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 32

// JWTService issues and checks owner tokens.
type JWTService interface {
	// GenerateToken signs an access token whose subject is the owner id.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken verifies signature, lifetime, type and issuer and
	// returns the claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the verified claims of an access token.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
