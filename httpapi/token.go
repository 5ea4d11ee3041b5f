package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/jonwraymond/tokenauth/auth"
	"github.com/jonwraymond/tokenauth/observe"
	"github.com/jonwraymond/tokenauth/resilience"
)

// GrantTypePassword is the only supported grant.
const GrantTypePassword = "password"

const maxTokenRequestBytes = 64 << 10

// OAuth error codes written by the token endpoint.
const (
	ErrCodeInvalidRequest         = "invalid_request"
	ErrCodeInvalidGrant           = "invalid_grant"
	ErrCodeUnsupportedGrantType   = "unsupported_grant_type"
	ErrCodeTemporarilyUnavailable = "temporarily_unavailable"
	ErrCodeTooManyRequests        = "too_many_requests"
)

// TokenRequest is the body of a token request, as a form or JSON.
type TokenRequest struct {
	GrantType string `json:"grant_type"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// Validate implements validation.Validatable.
func (r TokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.GrantType, validation.Required),
		validation.Field(&r.Username, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 1024)),
	)
}

// TokenResponse is a successful issuance.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ErrorResponse is an OAuth error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type tokenHandler struct {
	issuer  *auth.Issuer
	limiter *resilience.RateLimiter
	trusted []netip.Prefix
	logger  observe.Logger
}

func (h *tokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if h.limiter != nil {
		if ok, wait := h.limiter.Allow(clientAddr(r, h.trusted)); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:            ErrCodeTooManyRequests,
				ErrorDescription: resilience.ErrRateLimitExceeded.Error(),
			})
			return
		}
	}

	req, err := decodeTokenRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrCodeInvalidRequest, ErrorDescription: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrCodeInvalidRequest, ErrorDescription: err.Error()})
		return
	}
	if req.GrantType != GrantTypePassword {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            ErrCodeUnsupportedGrantType,
			ErrorDescription: "grant_type must be " + GrantTypePassword,
		})
		return
	}

	tok, err := h.issuer.Issue(r.Context(), auth.Credential{Username: req.Username, Password: req.Password})
	switch {
	case errors.Is(err, auth.ErrCredentialStore):
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:            ErrCodeTemporarilyUnavailable,
			ErrorDescription: "credential store unavailable",
		})
		return
	case err != nil:
		h.logger.Debug(r.Context(), "token request rejected", observe.Field{Key: "client", Value: clientAddr(r, h.trusted)})
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            ErrCodeInvalidGrant,
			ErrorDescription: "invalid credentials",
		})
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   int64(tok.ExpiresIn() / time.Second),
	})
}

func decodeTokenRequest(w http.ResponseWriter, r *http.Request) (TokenRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTokenRequestBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return TokenRequest{}, errors.New("malformed JSON body")
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return TokenRequest{}, errors.New("malformed form body")
	}
	return TokenRequest{
		GrantType: r.PostForm.Get("grant_type"),
		Username:  r.PostForm.Get("username"),
		Password:  r.PostForm.Get("password"),
	}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
