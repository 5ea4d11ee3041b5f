package auth

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/tokenauth/observe"
)

// Authenticate is HTTP middleware that attaches the request's session to the
// context when a valid bearer token is present. It never rejects; pair it
// with InRole inside handlers that make their own role decision.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) != nil {
			next.ServeHTTP(w, r)
			return
		}
		session, err := g.sessionFor(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// Require returns middleware that enforces req before the handler runs.
// Both the authentication and the role gate are evaluated here, so a handler
// behind Require(Role("Admin")) only ever sees Admin sessions.
//
// Usage:
//
//	r.With(guard.Require(auth.Role("Admin"))).Get("/api/hello", hello)
func (g *Guard) Require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			session := SessionFromContext(ctx)
			if session == nil {
				session, _ = g.sessionFor(r)
			}

			d := g.Decide(ctx, session, req)
			if !d.Allowed() {
				authzErr, _ := d.Err().(*AuthzError)
				g.logger.Info(ctx, "request rejected",
					observe.Field{Key: "path", Value: r.URL.Path},
					observe.Field{Key: "requirement", Value: req.String()},
					observe.Field{Key: "state", Value: d.State.String()},
				)
				WriteUnauthorized(w, authzErr.Reason)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, d.Session)))
		})
	}
}

// sessionFor extracts the request's session. A guard without an extractor
// authenticates nobody.
func (g *Guard) sessionFor(r *http.Request) (*Session, error) {
	if g.extractor == nil {
		return nil, ErrUnauthenticated
	}
	return g.extractor.ExtractRequest(r)
}

// ErrorResponse is the JSON body of a rejected request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteUnauthorized writes a 401 with a bearer challenge and a JSON body.
func WriteUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", BearerScheme)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            "unauthorized",
		ErrorDescription: description,
	})
}
