package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/tokenauth/auth"
	"github.com/jonwraymond/tokenauth/credentials"
	"github.com/jonwraymond/tokenauth/httpapi"
	"github.com/jonwraymond/tokenauth/observe"
	"github.com/jonwraymond/tokenauth/resilience"
	"github.com/jonwraymond/tokenauth/secret"
)

// DefaultSigningKeyRef is used when no signing key is configured.
const DefaultSigningKeyRef = "secretref:env:TOKENAUTH_SIGNING_KEY"

// Config is the tokenauthd configuration file.
type Config struct {
	Server      ServerConfig              `yaml:"server"`
	Token       TokenConfig               `yaml:"token"`
	Credentials CredentialsConfig         `yaml:"credentials"`
	RateLimit   RateLimitConfig           `yaml:"rate_limit"`
	Secrets     map[string]map[string]any `yaml:"secrets"`
	Observe     observe.Config            `yaml:"observe"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TrustedProxies lists proxy addresses or CIDR prefixes whose
	// X-Forwarded-For header identifies the client for rate limiting.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// TokenConfig configures issuance.
type TokenConfig struct {
	// SigningKey is a literal, ${VAR} or secretref value. Never logged.
	SigningKey string        `yaml:"signing_key"`
	Issuer     string        `yaml:"issuer"`
	Lifetime   time.Duration `yaml:"lifetime"`
	Path       string        `yaml:"path"`
}

// CredentialsConfig selects and protects the credential repository.
type CredentialsConfig struct {
	Driver        string         `yaml:"driver"`
	Options       map[string]any `yaml:"options"`
	Timeout       time.Duration  `yaml:"timeout"`
	MaxConcurrent int            `yaml:"max_concurrent"`
	MaxFailures   int            `yaml:"max_failures"`
	ResetTimeout  time.Duration  `yaml:"reset_timeout"`
}

// RateLimitConfig limits token requests per client address.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`
	Burst   int     `yaml:"burst"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Token: TokenConfig{
			SigningKey: DefaultSigningKeyRef,
			Lifetime:   auth.DefaultTokenLifetime,
			Path:       "/oauth/token",
		},
		Credentials: CredentialsConfig{
			Driver:        "sample",
			Timeout:       resilience.DefaultTimeout,
			MaxConcurrent: 10,
			MaxFailures:   5,
			ResetTimeout:  30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    1,
			Burst:   5,
		},
		Observe: observe.Config{
			ServiceName: "tokenauthd",
			Logging: observe.LoggingConfig{
				Enabled: true,
				Level:   "info",
				Format:  "json",
			},
		},
	}
}

// Load loads the given .env files, then reads path over Default.
// An empty path yields the defaults. Missing .env files are an error only
// when named explicitly.
func Load(path string, envFiles ...string) (Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return Config{}, fmt.Errorf("config: load env files: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every section.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Token),
		validation.Field(&c.Credentials),
		validation.Field(&c.RateLimit),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("config: observe: %w", err)
	}
	return nil
}

// Validate implements validation.Validatable.
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
		validation.Field(&s.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.ShutdownTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.TrustedProxies, validation.By(validProxies)),
	)
}

func validProxies(value interface{}) error {
	proxies, _ := value.([]string)
	_, err := httpapi.ParseTrustedProxies(proxies)
	return err
}

// Validate implements validation.Validatable.
func (t TokenConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.SigningKey, validation.Required),
		validation.Field(&t.Lifetime, validation.Required, validation.Min(time.Second)),
		validation.Field(&t.Path, validation.Required),
	)
}

// Validate implements validation.Validatable.
func (c CredentialsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.By(registeredDriver)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxConcurrent, validation.Min(0)),
		validation.Field(&c.MaxFailures, validation.Min(0)),
		validation.Field(&c.ResetTimeout, validation.Min(time.Duration(0))),
	)
}

// Validate implements validation.Validatable.
func (r RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Rate, validation.Required, validation.Min(0.0)),
		validation.Field(&r.Burst, validation.Required, validation.Min(1)),
	)
}

func registeredDriver(value interface{}) error {
	name, _ := value.(string)
	if name == "" || slices.Contains(credentials.DefaultRegistry.List(), name) {
		return nil
	}
	return fmt.Errorf("unknown driver %q", name)
}

// SigningKey resolves the configured signing key through the secret
// providers and checks its length.
func (c Config) SigningKey(ctx context.Context) (auth.SigningKey, error) {
	resolver, err := secret.DefaultRegistry.NewResolver(true, c.Secrets)
	if err != nil {
		return nil, fmt.Errorf("config: secrets: %w", err)
	}
	defer resolver.Close()

	raw, err := resolver.ResolveValue(ctx, c.Token.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("config: signing key: %w", err)
	}
	return auth.NewSigningKey([]byte(raw))
}

// Repository builds the configured credential repository wrapped in
// credentials.Resilient.
func (c Config) Repository(logger observe.Logger) (*credentials.Resilient, error) {
	repo, err := credentials.DefaultRegistry.Create(c.Credentials.Driver, c.Credentials.Options)
	if err != nil {
		return nil, fmt.Errorf("config: credentials: %w", err)
	}
	return credentials.NewResilient(repo, credentials.ResilientConfig{
		Timeout:       c.Credentials.Timeout,
		MaxConcurrent: c.Credentials.MaxConcurrent,
		MaxFailures:   c.Credentials.MaxFailures,
		ResetTimeout:  c.Credentials.ResetTimeout,
		Logger:        logger,
	}), nil
}
