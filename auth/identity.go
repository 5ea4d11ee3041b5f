package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoleDelimiter separates role names inside the encoded role claim.
// Role names may never contain it.
const RoleDelimiter = ","

// Credential is a username/password pair presented once for issuance.
type Credential struct {
	Username string
	Password string
}

// Identity is an authenticated subject: a user id and an ordered role set.
type Identity struct {
	// UserID is the subject identifier. It must parse as a UUID; the exact
	// string form is preserved through encoding.
	UserID string

	// Roles is the ordered, duplicate-free role set. Never nil for an
	// identity built by NewIdentity or decoded from a token.
	Roles []string
}

// NewIdentity builds a validated Identity. Duplicate roles collapse to their
// first occurrence and a nil role list becomes an empty set.
func NewIdentity(userID string, roles ...string) (Identity, error) {
	id := Identity{UserID: userID, Roles: normalizeRoles(roles)}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Validate reports whether the identity can be encoded into a token.
func (id Identity) Validate() error {
	if strings.TrimSpace(id.UserID) == "" {
		return fmt.Errorf("%w: user id is empty", ErrEncoding)
	}
	if _, err := uuid.Parse(id.UserID); err != nil {
		return fmt.Errorf("%w: user id %q is not a uuid", ErrEncoding, id.UserID)
	}
	for _, role := range id.Roles {
		if role == "" {
			return fmt.Errorf("%w: empty role name", ErrEncoding)
		}
		if strings.Contains(role, RoleDelimiter) {
			return fmt.Errorf("%w: role %q contains reserved delimiter %q", ErrEncoding, role, RoleDelimiter)
		}
	}
	return nil
}

// HasRole checks if the identity has a specific role.
func (id Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// Equal reports whether two identities carry the same user id and the same
// roles in the same order.
func (id Identity) Equal(other Identity) bool {
	return id.UserID == other.UserID && slices.Equal(id.Roles, other.Roles)
}

// Session is the request-scoped view of a valid token.
type Session struct {
	Identity

	// IssuedAt is when the token was issued.
	IssuedAt time.Time

	// ExpiresAt is when the token stops being valid.
	ExpiresAt time.Time

	roleIndex map[string]struct{}
}

// NewSession builds a session and indexes its roles for membership checks.
func NewSession(id Identity, issuedAt, expiresAt time.Time) *Session {
	roles := normalizeRoles(id.Roles)
	index := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		index[r] = struct{}{}
	}
	return &Session{
		Identity:  Identity{UserID: id.UserID, Roles: roles},
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		roleIndex: index,
	}
}

// HasRole checks role membership by exact name.
func (s *Session) HasRole(role string) bool {
	if s == nil {
		return false
	}
	if s.roleIndex == nil {
		return s.Identity.HasRole(role)
	}
	_, ok := s.roleIndex[role]
	return ok
}

// IsExpired checks if the session's token has expired at the given instant.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func normalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
