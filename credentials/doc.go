// Package credentials provides auth.CredentialRepository implementations:
// the Sample placeholder rule, a bcrypt-backed Memory table, and Resilient,
// which guards any repository with a bulkhead, circuit breaker and timeout.
// Drivers are looked up by name through a Registry.
package credentials
