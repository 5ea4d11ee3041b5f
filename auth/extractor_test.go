package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"BEARER   abc  ", "abc", true},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
		{"abc.def.ghi", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := BearerToken(tt.header)
			if got != tt.want || ok != tt.ok {
				t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractor_Extract(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	extractor := NewExtractor(codec, ExtractorConfig{})

	token, err := codec.Encode(mustIdentity(t, aliceID, "User", "Admin"), clock.Now(), clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	session, err := extractor.Extract(context.Background(), token)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if session.UserID != aliceID || !session.HasRole("Admin") || !session.HasRole("User") {
		t.Errorf("session = %+v", session)
	}
	if !session.ExpiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Errorf("ExpiresAt = %s", session.ExpiresAt)
	}

	for name, presented := range map[string]string{
		"empty":     "",
		"blank":     "   ",
		"garbage":   "not-a-token",
		"tampered":  replaceRole(t, token, "User,Admin", "Admin"),
		"truncated": token[:len(token)-4],
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := extractor.Extract(context.Background(), presented); !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("Extract() error = %v, want ErrUnauthenticated", err)
			}
		})
	}

	t.Run("expired", func(t *testing.T) {
		clock.Advance(time.Hour)
		defer clock.Advance(-time.Hour)
		if _, err := extractor.Extract(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("Extract() error = %v, want ErrUnauthenticated", err)
		}
	})
}

func TestExtractor_ExtractRequest(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	extractor := NewExtractor(codec, ExtractorConfig{})

	token, _ := codec.Encode(mustIdentity(t, bobID, "User"), clock.Now(), clock.Now().Add(time.Hour))

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set(AuthorizationHeader, "Bearer "+token)
	session, err := extractor.ExtractRequest(req)
	if err != nil || session.UserID != bobID {
		t.Fatalf("ExtractRequest() = %+v, %v", session, err)
	}

	req = httptest.NewRequest("GET", "/api/me", nil)
	if _, err := extractor.ExtractRequest(req); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("missing header error = %v, want ErrUnauthenticated", err)
	}

	req.Header.Set(AuthorizationHeader, "Token "+token)
	if _, err := extractor.ExtractRequest(req); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("wrong scheme error = %v, want ErrUnauthenticated", err)
	}
}
