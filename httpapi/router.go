package httpapi

import (
	"errors"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/tokenauth/auth"
	"github.com/jonwraymond/tokenauth/health"
	"github.com/jonwraymond/tokenauth/observe"
	"github.com/jonwraymond/tokenauth/resilience"
)

// DefaultTokenPath is where credentials are exchanged for tokens.
const DefaultTokenPath = "/oauth/token"

// Config wires the HTTP surface to the auth core.
type Config struct {
	// TokenPath is the issuance endpoint.
	// Default: DefaultTokenPath
	TokenPath string

	Issuer *auth.Issuer
	Guard  *auth.Guard

	// Health is mounted at /healthz, /readyz and /health when set.
	Health *health.Aggregator

	// RateLimiter throttles the token endpoint per client address when set.
	RateLimiter *resilience.RateLimiter

	// TrustedProxies are the peers whose X-Forwarded-For header is used to
	// find the client address. Other peers are keyed on their socket address.
	// Default: none
	TrustedProxies []netip.Prefix

	// Logger receives one line per request.
	// Default: observe.NopLogger()
	Logger observe.Logger

	// Registerer receives the HTTP request metrics.
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer

	// Gatherer backs /metrics.
	// Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
}

// NewRouter builds the chi router:
//
//	POST {TokenPath}   credentials -> bearer token
//	GET  /api/hello    role Admin
//	GET  /api/me       any valid token
//	GET  /healthz, /readyz, /health, /health/{name}
//	GET  /metrics
func NewRouter(config Config) (*chi.Mux, error) {
	if config.Issuer == nil || config.Guard == nil {
		return nil, errors.New("httpapi: issuer and guard are required")
	}
	if config.TokenPath == "" {
		config.TokenPath = DefaultTokenPath
	}
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	metrics, err := newHTTPMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(config.Logger))
	r.Use(metrics.middleware)
	r.Use(middleware.Recoverer)

	tokens := &tokenHandler{
		issuer:  config.Issuer,
		limiter: config.RateLimiter,
		trusted: config.TrustedProxies,
		logger:  config.Logger.With(observe.Field{Key: "component", Value: "token_endpoint"}),
	}
	r.Post(config.TokenPath, tokens.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.With(config.Guard.Require(auth.Role("Admin"))).Get("/hello", hello)
		r.With(config.Guard.Require(auth.Authenticated())).Get("/me", me)
	})

	if config.Health != nil {
		health.Mount(r, config.Health)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{}))

	return r, nil
}
