package credentials

import (
	"context"

	"github.com/google/uuid"

	"github.com/jonwraymond/tokenauth/auth"
)

// DefaultSampleRoles are granted to every identity the Sample repository accepts.
var DefaultSampleRoles = []string{"User", "Admin"}

// Sample is a placeholder repository for demos and local testing: it accepts
// any non-empty username whose password is identical to it, and grants a
// fresh random user id on every call. Never use it in production.
type Sample struct {
	roles []string
	newID func() string
}

// NewSample creates a Sample repository granting roles, or
// DefaultSampleRoles when none are given.
func NewSample(roles ...string) *Sample {
	if len(roles) == 0 {
		roles = DefaultSampleRoles
	}
	return &Sample{
		roles: append([]string(nil), roles...),
		newID: uuid.NewString,
	}
}

// Validate implements auth.CredentialRepository.
func (s *Sample) Validate(ctx context.Context, username, password string) (*auth.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if username == "" || username != password {
		return nil, nil
	}

	id, err := auth.NewIdentity(s.newID(), s.roles...)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
