package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestNewSigningKey(t *testing.T) {
	if _, err := NewSigningKey([]byte("short")); !errors.Is(err, ErrInvalidSigningKey) {
		t.Fatalf("NewSigningKey(short) error = %v, want ErrInvalidSigningKey", err)
	}

	raw := []byte(testKey)
	key, err := NewSigningKey(raw)
	if err != nil {
		t.Fatalf("NewSigningKey() error = %v", err)
	}
	raw[0] = 'X'
	if key[0] == 'X' {
		t.Error("NewSigningKey must copy its input")
	}
}

func TestNewCodec_RejectsShortKey(t *testing.T) {
	if _, err := NewCodec(SigningKey("too-short"), CodecConfig{}); !errors.Is(err, ErrInvalidSigningKey) {
		t.Fatalf("NewCodec() error = %v, want ErrInvalidSigningKey", err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	tests := []struct {
		name  string
		roles []string
	}{
		{"no roles", nil},
		{"single role", []string{"Admin"}},
		{"ordered roles", []string{"User", "Admin", "Auditor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := mustIdentity(t, aliceID, tt.roles...)
			iat := clock.Now()
			exp := iat.Add(5 * 24 * time.Hour)

			token, err := codec.Encode(id, iat, exp)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			claims, err := codec.Decode(token)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !claims.Identity.Equal(id) {
				t.Errorf("Identity = %+v, want %+v", claims.Identity, id)
			}
			if !claims.IssuedAt.Equal(iat) || !claims.ExpiresAt.Equal(exp) {
				t.Errorf("window = [%s, %s), want [%s, %s)", claims.IssuedAt, claims.ExpiresAt, iat, exp)
			}
			if _, err := uuid.Parse(claims.TokenID); err != nil {
				t.Errorf("TokenID %q is not a uuid", claims.TokenID)
			}
		})
	}
}

func TestCodec_TruncatesToSeconds(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	iat := clock.Now().Add(-300 * time.Millisecond)
	token, err := codec.Encode(mustIdentity(t, aliceID), iat, iat.Add(time.Hour))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !claims.IssuedAt.Equal(iat.Truncate(time.Second)) {
		t.Errorf("IssuedAt = %s, want %s", claims.IssuedAt, iat.Truncate(time.Second))
	}
}

func TestCodec_EncodeErrors(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())
	now := newFakeClock().Now()

	tests := []struct {
		name string
		id   Identity
		iat  time.Time
		exp  time.Time
	}{
		{"non-uuid user", Identity{UserID: "alice"}, now, now.Add(time.Hour)},
		{"role with delimiter", Identity{UserID: aliceID, Roles: []string{"a,b"}}, now, now.Add(time.Hour)},
		{"empty role", Identity{UserID: aliceID, Roles: []string{""}}, now, now.Add(time.Hour)},
		{"exp equals iat", Identity{UserID: aliceID}, now, now},
		{"exp before iat", Identity{UserID: aliceID}, now, now.Add(-time.Hour)},
		{"exp within the same second", Identity{UserID: aliceID}, now.Add(100 * time.Millisecond), now.Add(900 * time.Millisecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Encode(tt.id, tt.iat, tt.exp); !errors.Is(err, ErrEncoding) {
				t.Fatalf("Encode() error = %v, want ErrEncoding", err)
			}
		})
	}
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	token, err := codec.Encode(mustIdentity(t, aliceID, "User"), clock.Now(), clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	clock.Advance(time.Hour - time.Second)
	if _, err := codec.Decode(token); err != nil {
		t.Fatalf("Decode() one second before exp error = %v", err)
	}

	clock.Advance(time.Second)
	if _, err := codec.Decode(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("Decode() at exp error = %v, want ErrExpired", err)
	}
}

// replaceRole rewrites the role claim in the payload segment and keeps the
// original signature.
func replaceRole(t *testing.T, token, from, to string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	edited := strings.Replace(string(payload), `"role":"`+from+`"`, `"role":"`+to+`"`, 1)
	if edited == string(payload) {
		t.Fatalf("role %q not found in payload %s", from, payload)
	}
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(edited))
	return strings.Join(parts, ".")
}

func TestCodec_RejectsTampering(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	token, err := codec.Encode(mustIdentity(t, aliceID, "User"), clock.Now(), clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	t.Run("role escalated", func(t *testing.T) {
		forged := replaceRole(t, token, "User", "Admin")
		if _, err := codec.Decode(forged); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("Decode() error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("any bit flipped", func(t *testing.T) {
		parts := strings.Split(token, ".")
		for seg := range parts {
			raw, err := base64.RawURLEncoding.DecodeString(parts[seg])
			if err != nil {
				t.Fatalf("segment %d: %v", seg, err)
			}
			for bit := 0; bit < len(raw)*8; bit++ {
				flipped := append([]byte(nil), raw...)
				flipped[bit/8] ^= 1 << (bit % 8)

				forged := append([]string(nil), parts...)
				forged[seg] = base64.RawURLEncoding.EncodeToString(flipped)
				claims, err := codec.Decode(strings.Join(forged, "."))
				if err == nil {
					t.Fatalf("segment %d bit %d flipped: accepted with %+v", seg, bit, claims.Identity)
				}
				if !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("segment %d bit %d flipped: error = %v", seg, bit, err)
				}
			}
		}
	})

	t.Run("tampered and expired", func(t *testing.T) {
		forged := replaceRole(t, token, "User", "Admin")
		clock.Advance(2 * time.Hour)
		defer clock.Advance(-2 * time.Hour)
		if _, err := codec.Decode(forged); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("Decode() error = %v, want ErrInvalidSignature", err)
		}
	})
}

func TestCodec_RejectsForeignTokens(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	now := clock.Now()

	claims := jwt.MapClaims{
		"sub": aliceID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}

	otherKey := []byte("fedcba9876543210fedcba9876543210")
	wrongKey, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(otherKey)
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testKey))
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"different key", wrongKey},
		{"HS512", wrongAlg},
		{"alg none", noneAlg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decode(tt.token); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("Decode() error = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestCodec_MalformedPayloads(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	now := clock.Now()

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testKey))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{"not a token", "definitely-not-a-jwt"},
		{"two segments", "abc.def"},
		{"empty", ""},
		{"missing exp", sign(jwt.MapClaims{"sub": aliceID, "iat": now.Unix()})},
		{"missing iat", sign(jwt.MapClaims{"sub": aliceID, "exp": now.Add(time.Hour).Unix()})},
		{"non-uuid subject", sign(jwt.MapClaims{"sub": "alice", "iat": now.Unix(), "exp": now.Add(time.Hour).Unix()})},
		{"missing subject", sign(jwt.MapClaims{"iat": now.Unix(), "exp": now.Add(time.Hour).Unix()})},
		{"empty role segment", sign(jwt.MapClaims{"sub": aliceID, "role": "Admin,,User", "iat": now.Unix(), "exp": now.Add(time.Hour).Unix()})},
		{"role not a string", sign(jwt.MapClaims{"sub": aliceID, "role": 7, "iat": now.Unix(), "exp": now.Add(time.Hour).Unix()})},
		{"issued in the future", sign(jwt.MapClaims{"sub": aliceID, "iat": now.Add(time.Hour).Unix(), "exp": now.Add(2 * time.Hour).Unix()})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := codec.Decode(tt.token); !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("Decode() error = %v, want ErrMalformedPayload", err)
			}
		})
	}
}

func TestCodec_AbsentRoleClaimIsEmptySet(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	now := clock.Now()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": aliceID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if claims.Identity.Roles == nil || len(claims.Identity.Roles) != 0 {
		t.Errorf("Roles = %#v, want empty non-nil", claims.Identity.Roles)
	}
}

func TestCodec_Issuer(t *testing.T) {
	clock := newFakeClock()
	issuerA, _ := NewCodec(testKey, CodecConfig{Issuer: "tokenauth-a", Now: clock.Now})
	issuerB, _ := NewCodec(testKey, CodecConfig{Issuer: "tokenauth-b", Now: clock.Now})
	open := newTestCodec(t, clock)

	token, err := issuerA.Encode(mustIdentity(t, aliceID), clock.Now(), clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	claims, err := issuerA.Decode(token)
	if err != nil || claims.Issuer != "tokenauth-a" {
		t.Fatalf("Decode() = %+v, %v", claims, err)
	}
	if _, err := issuerB.Decode(token); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("foreign issuer error = %v, want ErrMalformedPayload", err)
	}
	if _, err := open.Decode(token); err != nil {
		t.Errorf("codec without issuer should accept any iss, got %v", err)
	}
}
