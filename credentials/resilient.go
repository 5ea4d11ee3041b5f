package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/tokenauth/auth"
	"github.com/jonwraymond/tokenauth/observe"
	"github.com/jonwraymond/tokenauth/resilience"
)

// ResilientConfig configures the protective wrapper around a repository.
type ResilientConfig struct {
	// Timeout bounds each Validate call.
	// Default: resilience.DefaultTimeout
	Timeout time.Duration

	// MaxConcurrent caps simultaneous Validate calls.
	// Default: 10
	MaxConcurrent int

	// MaxFailures opens the circuit after this many consecutive store faults.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// Logger receives circuit state changes.
	Logger observe.Logger
}

// Resilient decorates a repository with a bulkhead, circuit breaker and
// timeout. Rejected credentials are not faults and never trip the circuit.
type Resilient struct {
	next    auth.CredentialRepository
	exec    *resilience.Executor
	breaker *resilience.CircuitBreaker
}

// NewResilient wraps next.
func NewResilient(next auth.CredentialRepository, config ResilientConfig) *Resilient {
	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}
	if config.Timeout <= 0 {
		config.Timeout = resilience.DefaultTimeout
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "credentials",
		MaxFailures:  config.MaxFailures,
		ResetTimeout: config.ResetTimeout,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn(context.Background(), "circuit state changed",
				observe.Field{Key: "circuit", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})

	return &Resilient{
		next:    next,
		breaker: breaker,
		exec: resilience.NewExecutor(
			resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
				MaxConcurrent: config.MaxConcurrent,
				MaxWait:       config.Timeout,
			})),
			resilience.WithCircuitBreaker(breaker),
			resilience.WithTimeout(config.Timeout),
		),
	}
}

// Validate implements auth.CredentialRepository.
func (r *Resilient) Validate(ctx context.Context, username, password string) (*auth.Identity, error) {
	var id *auth.Identity
	err := r.exec.Execute(ctx, func(ctx context.Context) error {
		got, err := r.next.Validate(ctx, username, password)
		if err != nil {
			return err
		}
		id = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// CircuitState reports the breaker state, for health checks.
func (r *Resilient) CircuitState() resilience.State {
	return r.breaker.State()
}
