package httpapi

import (
	"net/http"
	"time"

	"github.com/jonwraymond/tokenauth/auth"
)

// MeResponse describes the caller's session.
type MeResponse struct {
	UserID    string   `json:"user_id"`
	Roles     []string `json:"roles"`
	ExpiresAt string   `json:"expires_at"`
}

// hello is the Admin-only sample resource.
func hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{"value1", "value2"})
}

func me(w http.ResponseWriter, r *http.Request) {
	s := auth.SessionFromContext(r.Context())
	if s == nil {
		auth.WriteUnauthorized(w, auth.MessageNotAuthenticated)
		return
	}
	roles := s.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, MeResponse{
		UserID:    s.UserID,
		Roles:     roles,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
