// Package observe provides observability primitives for the auth core.
//
// It is a pure instrumentation library: no transport and no I/O beyond
// exporter setup. The issuer and guard run their operations through a
// Middleware, which emits one span (auth.<component>.<name>), the
// auth.op.* metrics and a structured log entry per call.
//
// Logging is backed by zap. Fields whose keys appear in RedactedFields
// (passwords, tokens, signing keys) are replaced with "[REDACTED]".
package observe
