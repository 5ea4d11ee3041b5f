package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSigningKeyLength is the shortest accepted HMAC key, matching the
// HS256 output size.
const MinSigningKeyLength = 32

// SigningKey is the process-wide HMAC secret. It is established once at
// startup and only read afterwards.
type SigningKey []byte

// NewSigningKey copies raw into a SigningKey after checking its length.
func NewSigningKey(raw []byte) (SigningKey, error) {
	if len(raw) < MinSigningKeyLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidSigningKey, MinSigningKeyLength, len(raw))
	}
	key := make(SigningKey, len(raw))
	copy(key, raw)
	return key, nil
}

// CodecConfig configures the claim codec.
type CodecConfig struct {
	// Issuer is written to and required on the iss claim when non-empty.
	Issuer string

	// Now returns the current time.
	// Default: time.Now
	Now func() time.Time
}

// Claims is the decoded content of a valid token.
type Claims struct {
	Identity  Identity
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
	TokenID   string
}

// tokenClaims is the wire form: registered claims plus the joined role list.
type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Codec encodes identities into signed tokens and decodes them back.
//
// Contract:
// - Concurrency: safe for concurrent use; the key is never mutated.
// - Errors: Encode fails with ErrEncoding; Decode fails with
//   ErrInvalidSignature, ErrExpired or ErrMalformedPayload.
type Codec struct {
	key    SigningKey
	issuer string
	now    func() time.Time
}

// NewCodec creates a codec signing with HS256 under key.
func NewCodec(key SigningKey, config CodecConfig) (*Codec, error) {
	if len(key) < MinSigningKeyLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidSigningKey, MinSigningKeyLength, len(key))
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Codec{
		key:    key,
		issuer: config.Issuer,
		now:    config.Now,
	}, nil
}

// Now returns the codec's notion of the current time.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Encode produces a signed token carrying the identity and its validity window.
func (c *Codec) Encode(id Identity, issuedAt, expiresAt time.Time) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}

	iat := jwt.NewNumericDate(issuedAt)
	exp := jwt.NewNumericDate(expiresAt)
	if !exp.After(iat.Time) {
		return "", fmt.Errorf("%w: expiry %s is not after issue time %s",
			ErrEncoding, exp.Format(time.RFC3339), iat.Format(time.RFC3339))
	}

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   id.UserID,
			IssuedAt:  iat,
			ExpiresAt: exp,
			ID:        uuid.NewString(),
		},
		Role: strings.Join(normalizeRoles(id.Roles), RoleDelimiter),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.key))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return signed, nil
}

// Decode verifies the token and returns its claims.
func (c *Codec) Decode(raw string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	var claims tokenClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(c.key), nil
	})
	if err != nil {
		return Claims{}, classifyParseError(err)
	}

	if claims.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%w: missing iat", ErrMalformedPayload)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return Claims{}, fmt.Errorf("%w: subject %q is not a uuid", ErrMalformedPayload, claims.Subject)
	}

	roles, err := splitRoles(claims.Role)
	if err != nil {
		return Claims{}, err
	}

	return Claims{
		Identity:  Identity{UserID: claims.Subject, Roles: roles},
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
		Issuer:    claims.Issuer,
		TokenID:   claims.ID,
	}, nil
}

func splitRoles(joined string) ([]string, error) {
	if joined == "" {
		return []string{}, nil
	}
	parts := strings.Split(joined, RoleDelimiter)
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty role name in %q", ErrMalformedPayload, joined)
		}
	}
	return normalizeRoles(parts), nil
}

// classifyParseError maps jwt parse failures onto the codec error taxonomy.
// Expiry is checked after structure and signature, so a tampered token never
// reports ErrExpired.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
}
