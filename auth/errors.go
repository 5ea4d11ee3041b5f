package auth

import "errors"

// Sentinel errors for issuance, extraction and authorization.
var (
	// Issuance errors
	ErrRejected        = errors.New("auth: invalid credentials")
	ErrCredentialStore = errors.New("auth: credential store unavailable")

	// Codec errors
	ErrEncoding          = errors.New("auth: identity cannot be encoded")
	ErrInvalidSignature  = errors.New("auth: token signature invalid")
	ErrExpired           = errors.New("auth: token expired")
	ErrMalformedPayload  = errors.New("auth: token payload malformed")
	ErrInvalidSigningKey = errors.New("auth: signing key invalid")

	// Request errors
	ErrUnauthenticated = errors.New("auth: not authenticated")
	ErrUnauthorized    = errors.New("auth: not authorized")
)
