package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/tokenauth/auth"
	"github.com/jonwraymond/tokenauth/credentials"
	"github.com/jonwraymond/tokenauth/health"
	"github.com/jonwraymond/tokenauth/resilience"
)

const (
	adminID = "3b241101-e2bb-4255-8caf-4136c566a962"
	userID  = "6fa459ea-ee8a-3ca4-894e-db77e160355e"
)

var testKey = auth.SigningKey("0123456789abcdef0123456789abcdef")

var errStoreDown = errors.New("connection refused")

// testRepo accepts admin/secret and user/secret. The username "broken"
// simulates a failing store.
func testRepo(ctx context.Context, username, password string) (*auth.Identity, error) {
	switch {
	case username == "broken":
		return nil, errStoreDown
	case username == "admin" && password == "secret":
		return &auth.Identity{UserID: adminID, Roles: []string{"User", "Admin"}}, nil
	case username == "user" && password == "secret":
		return &auth.Identity{UserID: userID, Roles: []string{"User"}}, nil
	}
	return nil, nil
}

type fixture struct {
	handler *chi.Mux
	codec   *auth.Codec
	reg     *prometheus.Registry
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	codec, err := auth.NewCodec(testKey, auth.CodecConfig{})
	if err != nil {
		t.Fatal(err)
	}
	issuer, err := auth.NewIssuer(codec, auth.CredentialRepositoryFunc(testRepo), auth.IssuerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	guard := auth.NewGuard(auth.NewExtractor(codec, auth.ExtractorConfig{}), auth.GuardConfig{})

	agg := health.NewAggregator(health.AggregatorConfig{})
	agg.Register(health.NewSigningChecker(codec))

	reg := prometheus.NewRegistry()
	cfg := Config{
		Issuer:     issuer,
		Guard:      guard,
		Health:     agg,
		Registerer: reg,
		Gatherer:   reg,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	h, err := NewRouter(cfg)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return &fixture{handler: h, codec: codec, reg: reg}
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func (f *fixture) token(t *testing.T, username string) string {
	t.Helper()
	rec := f.do(formRequest("password", username, "secret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("token for %s = %d %s", username, rec.Code, rec.Body.String())
	}
	var resp TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.AccessToken
}

func formRequest(grant, username, password string) *http.Request {
	form := url.Values{"grant_type": {grant}, "username": {username}, "password": {password}}
	r := httptest.NewRequest(http.MethodPost, DefaultTokenPath, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func bearer(path, token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestNewRouter_RequiresIssuerAndGuard(t *testing.T) {
	if _, err := NewRouter(Config{}); err == nil {
		t.Fatal("NewRouter() expected error without issuer and guard")
	}
}

func TestHello(t *testing.T) {
	f := newFixture(t)
	adminTok := f.token(t, "admin")
	userTok := f.token(t, "user")

	tests := []struct {
		name     string
		token    string
		wantCode int
		wantDesc string
	}{
		{"admin", adminTok, http.StatusOK, ""},
		{"missing role", userTok, http.StatusUnauthorized, auth.MessageRoleDenied},
		{"no token", "", http.StatusUnauthorized, auth.MessageNotAuthenticated},
		{"garbage", "not-a-token", http.StatusUnauthorized, auth.MessageNotAuthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(bearer("/api/hello", tt.token))
			if rec.Code != tt.wantCode {
				t.Fatalf("/api/hello = %d %s, want %d", rec.Code, rec.Body.String(), tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				var got []string
				if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
					t.Fatal(err)
				}
				if len(got) != 2 || got[0] != "value1" || got[1] != "value2" {
					t.Errorf("body = %v", got)
				}
				return
			}
			if rec.Header().Get("WWW-Authenticate") != auth.BearerScheme {
				t.Errorf("WWW-Authenticate = %q", rec.Header().Get("WWW-Authenticate"))
			}
			var body auth.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.ErrorDescription != tt.wantDesc {
				t.Errorf("error_description = %q, want %q", body.ErrorDescription, tt.wantDesc)
			}
		})
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	rec := f.do(bearer("/api/me", f.token(t, "user")))
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/me = %d %s", rec.Code, rec.Body.String())
	}
	var got MeResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.UserID != userID || len(got.Roles) != 1 || got.Roles[0] != "User" {
		t.Errorf("me = %+v", got)
	}
	exp, err := time.Parse(time.RFC3339, got.ExpiresAt)
	if err != nil {
		t.Fatalf("expires_at = %q: %v", got.ExpiresAt, err)
	}
	if d := time.Until(exp); d < auth.DefaultTokenLifetime-time.Minute || d > auth.DefaultTokenLifetime {
		t.Errorf("expires in %s, want about %s", d, auth.DefaultTokenLifetime)
	}

	if rec := f.do(bearer("/api/me", "")); rec.Code != http.StatusUnauthorized {
		t.Errorf("/api/me without token = %d", rec.Code)
	}
}

func TestExpiredToken(t *testing.T) {
	f := newFixture(t)
	id := auth.Identity{UserID: adminID, Roles: []string{"Admin"}}
	issued := time.Now().Add(-2 * time.Hour)
	tok, err := f.codec.Encode(id, issued, issued.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if rec := f.do(bearer("/api/hello", tok)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token = %d, want 401", rec.Code)
	}
}

func TestHealthMounted(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/healthz", "/readyz", "/health", "/health/signing"} {
		rec := f.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.token(t, "admin")
	f.do(bearer("/api/hello", ""))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`tokenauth_http_requests_total{method="POST",route="/oauth/token",status="200"} 1`,
		`tokenauth_http_requests_total{method="GET",route="/api/hello",status="401"} 1`,
		"tokenauth_http_request_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestSampleRepository_RoleGates(t *testing.T) {
	codec, err := auth.NewCodec(testKey, auth.CodecConfig{})
	if err != nil {
		t.Fatal(err)
	}
	issuer, err := auth.NewIssuer(codec, credentials.NewSample(), auth.IssuerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	guard := auth.NewGuard(auth.NewExtractor(codec, auth.ExtractorConfig{}), auth.GuardConfig{})
	reg := prometheus.NewRegistry()
	mux, err := NewRouter(Config{Issuer: issuer, Guard: guard, Registerer: reg, Gatherer: reg})
	if err != nil {
		t.Fatal(err)
	}
	mux.With(guard.Require(auth.Role("SuperAdmin"))).Get("/api/super", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "unreachable")
	})
	f := &fixture{handler: mux, codec: codec, reg: reg}

	rec := f.do(formRequest("password", "alice", "alice"))
	if rec.Code != http.StatusOK {
		t.Fatalf("token for alice = %d %s", rec.Code, rec.Body.String())
	}
	var resp TokenResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	claims, err := codec.Decode(resp.AccessToken)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := claims.Identity.Roles; len(got) != 2 || !claims.Identity.HasRole("User") || !claims.Identity.HasRole("Admin") {
		t.Errorf("roles = %v, want [User Admin]", got)
	}

	if rec := f.do(bearer("/api/hello", resp.AccessToken)); rec.Code != http.StatusOK {
		t.Errorf("/api/hello = %d %s, want 200", rec.Code, rec.Body.String())
	}

	rec = f.do(bearer("/api/super", resp.AccessToken))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("/api/super = %d, want 401", rec.Code)
	}
	var body auth.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ErrorDescription != auth.MessageRoleDenied {
		t.Errorf("error_description = %q, want %q", body.ErrorDescription, auth.MessageRoleDenied)
	}
}

func TestNewRouter_SharedRegistry(t *testing.T) {
	f := newFixture(t)
	codec := f.codec
	issuer, _ := auth.NewIssuer(codec, auth.CredentialRepositoryFunc(testRepo), auth.IssuerConfig{})
	guard := auth.NewGuard(auth.NewExtractor(codec, auth.ExtractorConfig{}), auth.GuardConfig{})
	if _, err := NewRouter(Config{Issuer: issuer, Guard: guard, Registerer: f.reg, Gatherer: f.reg}); err != nil {
		t.Fatalf("second NewRouter() on one registry error = %v", err)
	}
}

func TestRateLimitedTokenEndpoint(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Rate:  0.5,
		Burst: 2,
		Now:   func() time.Time { return now },
	})
	f := newFixture(t, func(c *Config) { c.RateLimiter = limiter })

	for i := 0; i < 2; i++ {
		if rec := f.do(formRequest("password", "admin", "secret")); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec := f.do(formRequest("password", "admin", "secret"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Errorf("Retry-After = %q, want 2", rec.Header().Get("Retry-After"))
	}

	other := formRequest("password", "admin", "secret")
	other.RemoteAddr = "198.51.100.7:4000"
	if rec := f.do(other); rec.Code != http.StatusOK {
		t.Errorf("other client = %d, want 200", rec.Code)
	}
}

func TestRateLimit_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Rate:  0.5,
		Burst: 2,
		Now:   func() time.Time { return now },
	})
	f := newFixture(t, func(c *Config) { c.RateLimiter = limiter })

	limited := 0
	for i := 0; i < 50; i++ {
		r := formRequest("password", "admin", fmt.Sprintf("guess-%d", i))
		r.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		r.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", i))
		if f.do(r).Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 48 {
		t.Errorf("rate limited %d of 50 guesses from one socket, want 48", limited)
	}
}

func TestRateLimit_TrustedProxy(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Rate:  0.5,
		Burst: 1,
		Now:   func() time.Time { return now },
	})
	trusted, err := ParseTrustedProxies([]string{"192.0.2.0/24"})
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, func(c *Config) {
		c.RateLimiter = limiter
		c.TrustedProxies = trusted
	})

	viaProxy := func(xff string) int {
		r := formRequest("password", "admin", "secret")
		r.RemoteAddr = "192.0.2.1:40000"
		r.Header.Set("X-Forwarded-For", xff)
		return f.do(r).Code
	}

	if code := viaProxy("203.0.113.1"); code != http.StatusOK {
		t.Fatalf("first client = %d", code)
	}
	if code := viaProxy("203.0.113.2"); code != http.StatusOK {
		t.Errorf("second client behind the proxy = %d, want its own bucket", code)
	}
	// A client-supplied leftmost hop does not change the key the proxy appended.
	if code := viaProxy("10.9.9.9, 203.0.113.1"); code != http.StatusTooManyRequests {
		t.Errorf("spoofed prefix = %d, want 429", code)
	}
}
