package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/tokenauth/auth"
	"github.com/jonwraymond/tokenauth/resilience"
)

// probeUserID is the subject of the signing round-trip probe.
const probeUserID = "00000000-0000-4000-8000-000000000000"

// SigningChecker verifies that the codec can sign a token and read it back.
type SigningChecker struct {
	codec *auth.Codec
}

// NewSigningChecker creates a checker over codec.
func NewSigningChecker(codec *auth.Codec) *SigningChecker {
	return &SigningChecker{codec: codec}
}

// Name returns "signing".
func (c *SigningChecker) Name() string { return "signing" }

// Check encodes and decodes a short-lived probe token.
func (c *SigningChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context done", err)
	}
	if c.codec == nil {
		return Unhealthy("no codec configured", ErrCheckFailed)
	}

	id, err := auth.NewIdentity(probeUserID, "probe")
	if err != nil {
		return Unhealthy("probe identity invalid", err)
	}
	now := c.codec.Now()
	token, err := c.codec.Encode(id, now, now.Add(auth.DefaultTokenLifetime))
	if err != nil {
		return Unhealthy("cannot sign tokens", err)
	}
	claims, err := c.codec.Decode(token)
	if err != nil {
		return Unhealthy("cannot verify own tokens", err)
	}
	if !claims.Identity.Equal(id) {
		return Unhealthy("round trip changed identity", ErrCheckFailed)
	}
	return Healthy("tokens sign and verify")
}

// CircuitChecker reports a circuit breaker's state: open is unhealthy,
// half-open is degraded.
type CircuitChecker struct {
	name  string
	state func() resilience.State
}

// NewCircuitChecker creates a checker named name reading state.
func NewCircuitChecker(name string, state func() resilience.State) *CircuitChecker {
	return &CircuitChecker{name: name, state: state}
}

// Name returns the checker name.
func (c *CircuitChecker) Name() string { return c.name }

// Check reads the current breaker state.
func (c *CircuitChecker) Check(context.Context) Result {
	state := c.state()
	details := map[string]any{"circuit": state.String()}
	switch state {
	case resilience.StateOpen:
		return Unhealthy("circuit open", fmt.Errorf("%w: %w", ErrCheckFailed, resilience.ErrCircuitOpen)).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit probing").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}
