package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/tokenauth/auth"
	"github.com/jonwraymond/tokenauth/config"
	"github.com/jonwraymond/tokenauth/credentials"
	"github.com/jonwraymond/tokenauth/health"
	"github.com/jonwraymond/tokenauth/httpapi"
	"github.com/jonwraymond/tokenauth/observe"
	"github.com/jonwraymond/tokenauth/resilience"
)

// app holds the assembled components of a running tokenauthd.
type app struct {
	cfg      config.Config
	observer observe.Observer
	logger   observe.Logger
	codec    *auth.Codec
	repo     *credentials.Resilient
	issuer   *auth.Issuer
	guard    *auth.Guard
	health   *health.Aggregator
	handler  http.Handler
}

type appOptions struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// newApp wires configuration into the auth core and the HTTP surface.
func newApp(ctx context.Context, cfg config.Config, opts appOptions) (*app, error) {
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	a := &app{cfg: cfg, observer: obs, logger: obs.Logger()}

	if err := a.build(ctx, opts); err != nil {
		_ = obs.Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, opts appOptions) error {
	instr, err := observe.MiddlewareFromObserver(a.observer)
	if err != nil {
		return fmt.Errorf("instruments: %w", err)
	}

	key, err := a.cfg.SigningKey(ctx)
	if err != nil {
		return err
	}
	a.codec, err = auth.NewCodec(key, auth.CodecConfig{Issuer: a.cfg.Token.Issuer})
	if err != nil {
		return err
	}

	a.repo, err = a.cfg.Repository(a.logger)
	if err != nil {
		return err
	}
	if a.cfg.Credentials.Driver == "sample" {
		a.logger.Warn(ctx, "sample credential repository accepts any username equal to its password; do not use in production")
	}

	a.issuer, err = auth.NewIssuer(a.codec, a.repo, auth.IssuerConfig{
		Lifetime:    a.cfg.Token.Lifetime,
		Logger:      a.logger,
		Instruments: instr,
	})
	if err != nil {
		return err
	}
	a.guard = auth.NewGuard(
		auth.NewExtractor(a.codec, auth.ExtractorConfig{Logger: a.logger}),
		auth.GuardConfig{Logger: a.logger, Instruments: instr},
	)

	a.health = health.NewAggregator(health.AggregatorConfig{})
	a.health.Register(health.NewSigningChecker(a.codec))
	a.health.Register(health.NewCircuitChecker("credentials", a.repo.CircuitState))

	var limiter *resilience.RateLimiter
	if a.cfg.RateLimit.Enabled {
		limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:  a.cfg.RateLimit.Rate,
			Burst: a.cfg.RateLimit.Burst,
		})
	}

	trusted, err := httpapi.ParseTrustedProxies(a.cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	a.handler, err = httpapi.NewRouter(httpapi.Config{
		TokenPath:      a.cfg.Token.Path,
		Issuer:         a.issuer,
		Guard:          a.guard,
		Health:         a.health,
		RateLimiter:    limiter,
		TrustedProxies: trusted,
		Logger:         a.logger,
		Registerer:     opts.registerer,
		Gatherer:       opts.gatherer,
	})
	return err
}

// serve runs the HTTP server until ctx is done, then shuts down gracefully.
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      a.handler,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "listening",
			observe.Field{Key: "addr", Value: srv.Addr},
			observe.Field{Key: "token_path", Value: a.cfg.Token.Path},
		)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.logger.Info(shutdownCtx, "shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	return a.observer.Shutdown(ctx)
}
