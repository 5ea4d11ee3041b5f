package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/tokenauth/observe"
)

// Client-facing rejection messages.
const (
	MessageNotAuthenticated = "You are not authorized"
	MessageRoleDenied       = "Not authorized to access the resource"
)

// RequirementKind distinguishes the two requirement variants.
type RequirementKind int

const (
	// KindAuthenticated requires only a valid session.
	KindAuthenticated RequirementKind = iota
	// KindRole requires a valid session holding a named role.
	KindRole
)

// Requirement is what an endpoint demands of the caller.
type Requirement struct {
	kind RequirementKind
	role string
}

// Authenticated requires a valid session and nothing else.
func Authenticated() Requirement {
	return Requirement{kind: KindAuthenticated}
}

// Role requires a valid session whose role set contains name exactly.
func Role(name string) Requirement {
	return Requirement{kind: KindRole, role: name}
}

// Kind returns the requirement variant.
func (r Requirement) Kind() RequirementKind { return r.kind }

// RoleName returns the required role, or "" for Authenticated.
func (r Requirement) RoleName() string { return r.role }

func (r Requirement) String() string {
	if r.kind == KindRole {
		return "role:" + r.role
	}
	return "authenticated"
}

// DecisionState is where a request ends up after both gates.
type DecisionState int

const (
	StateUnauthenticated DecisionState = iota
	StateAuthenticatedNoRoleChecked
	StateAuthenticatedRoleSatisfied
	StateAuthenticatedRoleDenied
)

func (s DecisionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedNoRoleChecked:
		return "authenticated"
	case StateAuthenticatedRoleSatisfied:
		return "role_satisfied"
	case StateAuthenticatedRoleDenied:
		return "role_denied"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for one request.
type Decision struct {
	State       DecisionState
	Requirement Requirement
	Session     *Session
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.State == StateAuthenticatedNoRoleChecked || d.State == StateAuthenticatedRoleSatisfied
}

// Err returns nil when allowed, otherwise an *AuthzError.
func (d Decision) Err() error {
	switch d.State {
	case StateUnauthenticated:
		return &AuthzError{
			Requirement: d.Requirement,
			Reason:      MessageNotAuthenticated,
			Cause:       ErrUnauthenticated,
		}
	case StateAuthenticatedRoleDenied:
		return &AuthzError{
			Subject:     d.Session.UserID,
			Requirement: d.Requirement,
			Reason:      MessageRoleDenied,
		}
	default:
		return nil
	}
}

// AuthzError represents an authorization failure.
type AuthzError struct {
	// Subject is the user id that was denied, empty when unauthenticated.
	Subject string

	// Requirement is what the endpoint demanded.
	Requirement Requirement

	// Reason is the client-facing message.
	Reason string

	// Cause is the underlying error if any.
	Cause error
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	return fmt.Sprintf("authorization denied: subject=%q requirement=%q reason=%q",
		e.Subject, e.Requirement, e.Reason)
}

// Unwrap returns the cause error for errors.Is/As support.
func (e *AuthzError) Unwrap() error {
	return e.Cause
}

// Is reports whether this error matches the target.
func (e *AuthzError) Is(target error) bool {
	return target == ErrUnauthorized
}

// GuardConfig configures the authorization guard.
type GuardConfig struct {
	// Logger receives request rejections.
	// Default: observe.NopLogger()
	Logger observe.Logger

	// Instruments wraps each decision in a span and metrics.
	// Default: observe.NopMiddleware()
	Instruments *observe.Middleware

	// Now returns the current time for the expiry re-check.
	// Default: the extractor codec's clock
	Now func() time.Time
}

var opDecide = observe.OpMeta{Component: "guard", Name: "decide"}

// Guard makes the per-request authorization decision from a session's claims.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Decide never fails; rejections are carried by the Decision.
type Guard struct {
	extractor *Extractor
	logger    observe.Logger
	instr     *observe.Middleware
	now       func() time.Time
}

// NewGuard creates a guard that authenticates requests through extractor.
// A nil extractor rejects every request as unauthenticated.
func NewGuard(extractor *Extractor, config GuardConfig) *Guard {
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Instruments == nil {
		config.Instruments = observe.NopMiddleware()
	}
	if config.Now == nil {
		config.Now = time.Now
		if extractor != nil && extractor.codec != nil {
			config.Now = extractor.codec.Now
		}
	}
	return &Guard{
		extractor: extractor,
		logger:    config.Logger.With(observe.Field{Key: "component", Value: "guard"}),
		instr:     config.Instruments,
		now:       config.Now,
	}
}

// Decide evaluates the authentication gate and then, for role requirements,
// the role gate. A nil or expired session fails the first gate.
func (g *Guard) Decide(ctx context.Context, session *Session, req Requirement) Decision {
	var d Decision
	_ = g.instr.Instrument(ctx, opDecide, func(ctx context.Context) (string, error) {
		d = decide(session, req, g.now())
		return d.State.String(), d.Err()
	})
	return d
}

func decide(session *Session, req Requirement, now time.Time) Decision {
	d := Decision{Requirement: req, Session: session}
	switch {
	case session == nil || session.IsExpired(now):
		d.State = StateUnauthenticated
		d.Session = nil
	case req.kind != KindRole:
		d.State = StateAuthenticatedNoRoleChecked
	case session.HasRole(req.role):
		d.State = StateAuthenticatedRoleSatisfied
	default:
		d.State = StateAuthenticatedRoleDenied
	}
	return d
}
