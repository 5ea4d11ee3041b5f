package secret

import "errors"

var (
	// ErrProviderNotRegistered is returned for a secretref naming an unknown provider.
	ErrProviderNotRegistered = errors.New("secret: provider not registered")

	// ErrSecretNotFound is returned when a provider has no value for a ref.
	ErrSecretNotFound = errors.New("secret: not found")

	// ErrEmptySecret is returned by a strict resolver for an empty value.
	ErrEmptySecret = errors.New("secret: empty value")

	// ErrMissingEnv is returned when ${VAR} names an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variables")
)
