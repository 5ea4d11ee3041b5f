// Package httpapi is the HTTP surface of tokenauthd: a password-grant token
// endpoint, two guarded sample resources, health probes and Prometheus
// metrics, served by a chi router.
//
// Token endpoint errors follow OAuth 2.0: rejected credentials are
// 400 invalid_grant, a failing credential store is 503
// temporarily_unavailable. Guarded resources answer 401 with a Bearer
// challenge, including for a valid token lacking the required role.
package httpapi
