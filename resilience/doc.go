// Package resilience protects calls to slow or failing collaborators.
//
// The credential repository is the only blocking dependency of token
// issuance. An Executor wraps it with a bulkhead (bcrypt is CPU-bound), a
// circuit breaker and a timeout:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 8})),
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "credentials"})),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
// RateLimiter is separate: it keeps one token bucket per key and is applied
// at the HTTP edge, per client address.
//
// Nothing in this package retries.
package resilience
