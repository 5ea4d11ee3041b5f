package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonwraymond/tokenauth/observe"
)

// AuthorizationHeader carries the bearer token.
const AuthorizationHeader = "Authorization"

// BearerScheme is the Authorization scheme for tokens. Matched case-insensitively.
const BearerScheme = "Bearer"

// ExtractorConfig configures the session extractor.
type ExtractorConfig struct {
	// Logger receives decode failures at debug level.
	// Default: observe.NopLogger()
	Logger observe.Logger
}

// Extractor turns a presented token into a Session.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: every failure is ErrUnauthenticated; the decode cause is only logged.
type Extractor struct {
	codec  *Codec
	logger observe.Logger
}

// NewExtractor creates an extractor over codec.
func NewExtractor(codec *Codec, config ExtractorConfig) *Extractor {
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Extractor{
		codec:  codec,
		logger: config.Logger.With(observe.Field{Key: "component", Value: "extractor"}),
	}
}

// Extract decodes the presented token. An empty token is unauthenticated.
func (e *Extractor) Extract(ctx context.Context, presented string) (*Session, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := e.codec.Decode(presented)
	if err != nil {
		e.logger.Debug(ctx, "token rejected", observe.Field{Key: "error", Value: err})
		return nil, ErrUnauthenticated
	}

	return NewSession(claims.Identity, claims.IssuedAt, claims.ExpiresAt), nil
}

// ExtractRequest reads the bearer token from the Authorization header.
// Any other scheme counts as no token.
func (e *Extractor) ExtractRequest(r *http.Request) (*Session, error) {
	token, ok := BearerToken(r.Header.Get(AuthorizationHeader))
	if !ok {
		return nil, ErrUnauthenticated
	}
	return e.Extract(r.Context(), token)
}

// BearerToken splits an Authorization header value into its token.
// It reports false when the scheme is not Bearer or the token is empty.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
