package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/tokenauth/observe"
)

// DefaultTokenLifetime is how long an issued token stays valid.
const DefaultTokenLifetime = 5 * 24 * time.Hour

// TokenTypeBearer is the token_type reported to clients.
const TokenTypeBearer = "bearer"

// Issuance outcomes, as reported to observe.
const (
	OutcomeIssued     = "issued"
	OutcomeRejected   = "rejected"
	OutcomeStoreError = "store_error"
)

// CredentialRepository validates a username/password pair.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations should honor cancellation/deadlines.
// - Errors: (nil, nil) means the credentials were not accepted; a non-nil
//   error means the store itself failed.
type CredentialRepository interface {
	Validate(ctx context.Context, username, password string) (*Identity, error)
}

// CredentialRepositoryFunc adapts a function to CredentialRepository.
type CredentialRepositoryFunc func(ctx context.Context, username, password string) (*Identity, error)

// Validate calls f.
func (f CredentialRepositoryFunc) Validate(ctx context.Context, username, password string) (*Identity, error) {
	return f(ctx, username, password)
}

// IssuedToken is a freshly signed bearer token.
type IssuedToken struct {
	AccessToken string
	TokenType   string
	Identity    Identity
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// ExpiresIn returns the token lifetime.
func (t *IssuedToken) ExpiresIn() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// IssuerConfig configures the token issuer.
type IssuerConfig struct {
	// Lifetime is the validity window of issued tokens.
	// Default: DefaultTokenLifetime
	Lifetime time.Duration

	// Logger receives issuance logs.
	// Default: observe.NopLogger()
	Logger observe.Logger

	// Instruments wraps each issuance in a span and metrics.
	// Default: observe.NopMiddleware()
	Instruments *observe.Middleware
}

var opIssue = observe.OpMeta{Component: "issuer", Name: "issue"}

// Issuer exchanges credentials for signed tokens.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: passed through to the repository; the issuer adds no timeout.
// - Errors: ErrRejected for refused credentials or an unencodable identity,
//   ErrCredentialStore when the repository fails. Nothing is retried.
type Issuer struct {
	codec    *Codec
	repo     CredentialRepository
	lifetime time.Duration
	logger   observe.Logger
	instr    *observe.Middleware
}

// NewIssuer creates an issuer over codec and repo.
func NewIssuer(codec *Codec, repo CredentialRepository, config IssuerConfig) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("auth: issuer requires a codec")
	}
	if repo == nil {
		return nil, errors.New("auth: issuer requires a credential repository")
	}
	if config.Lifetime < 0 {
		return nil, fmt.Errorf("auth: token lifetime must be positive, got %s", config.Lifetime)
	}
	if config.Lifetime == 0 {
		config.Lifetime = DefaultTokenLifetime
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Instruments == nil {
		config.Instruments = observe.NopMiddleware()
	}

	return &Issuer{
		codec:    codec,
		repo:     repo,
		lifetime: config.Lifetime,
		logger:   config.Logger.With(observe.Field{Key: "component", Value: "issuer"}),
		instr:    config.Instruments,
	}, nil
}

// Lifetime returns the validity window applied to issued tokens.
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

// Issue validates the credential and returns a signed token on success.
func (i *Issuer) Issue(ctx context.Context, cred Credential) (*IssuedToken, error) {
	var issued *IssuedToken

	err := i.instr.Instrument(ctx, opIssue, func(ctx context.Context) (string, error) {
		id, err := i.repo.Validate(ctx, cred.Username, cred.Password)
		if err != nil {
			i.logger.Error(ctx, "credential repository failed",
				observe.Field{Key: "username", Value: cred.Username},
				observe.Field{Key: "error", Value: err},
			)
			return OutcomeStoreError, fmt.Errorf("%w: %w", ErrCredentialStore, err)
		}
		if id == nil {
			i.logger.Info(ctx, "credentials rejected", observe.Field{Key: "username", Value: cred.Username})
			return OutcomeRejected, ErrRejected
		}

		now := i.codec.Now()
		expires := now.Add(i.lifetime)
		token, err := i.codec.Encode(*id, now, expires)
		if err != nil {
			i.logger.Error(ctx, "identity could not be encoded",
				observe.Field{Key: "user_id", Value: id.UserID},
				observe.Field{Key: "error", Value: err},
			)
			return OutcomeRejected, fmt.Errorf("%w: %w", ErrRejected, err)
		}

		issued = &IssuedToken{
			AccessToken: token,
			TokenType:   TokenTypeBearer,
			Identity:    Identity{UserID: id.UserID, Roles: normalizeRoles(id.Roles)},
			IssuedAt:    now,
			ExpiresAt:   expires,
		}
		i.logger.Info(ctx, "token issued",
			observe.Field{Key: "user_id", Value: id.UserID},
			observe.Field{Key: "expires_at", Value: expires.UTC().Format(time.RFC3339)},
		)
		return OutcomeIssued, nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}
