package auth

import "errors"

// Errors returned by JWTService. The identity middleware answers
// ErrExpiredToken with "Token expired" and the other token errors with
// "Invalid token".
var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	ErrMissingToken     = errors.New("authentication token is missing")

	// ErrWrongTokenType is returned for tokens minted for another purpose,
	// such as refresh tokens from a shared issuer.
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrWrongIssuer is returned for tokens that name a different issuer.
	ErrWrongIssuer = errors.New("token issued by another service")

	// ErrMissingSubject is returned for tokens that identify no owner.
	ErrMissingSubject = errors.New("authentication token has no subject")

	// ErrWeakSecret is returned by NewJWTService for secrets under
	// MinSecretLength characters.
	ErrWeakSecret = errors.New("jwt secret too short")
)
