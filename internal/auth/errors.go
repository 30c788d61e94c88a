package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrInvalidInput = errors.New("auth: invalid input")

	// ErrInvalidCredentials is returned for every login failure regardless of
	// cause so that responses cannot be used for account enumeration.
	ErrInvalidCredentials = errors.New("auth: invalid email or password")

	ErrTokenExpired     = errors.New("auth: token expired")
	ErrTokenInvalid     = errors.New("auth: token invalid")
	ErrTokenRevoked     = errors.New("auth: token revoked")
	ErrTokenAlreadyUsed = errors.New("auth: refresh token already used")

	// ErrInvalidRefresh is the uniform client-facing rotation failure. The
	// specific internal cause is preserved in the audit record only.
	ErrInvalidRefresh = errors.New("auth: invalid refresh token")

	ErrTenantNotFound    = errors.New("auth: tenant not found")
	ErrNoFirmAssociation = errors.New("auth: no firm association")
	ErrAccessDenied      = errors.New("auth: access denied")

	ErrNotAuthorized = errors.New("auth: not authorized")
	ErrAlreadyEnded  = errors.New("auth: ghost session already ended")
)
