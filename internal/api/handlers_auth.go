package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/auth"
)

// AuthHandler groups dbcalm's two OAuth2-flavored flows: the
// client-credentials grant used by the non-interactive backup CLI and
// the authorization-code grant used by the interactive operator login.
type AuthHandler struct {
	svc    *auth.Service
	logger *zap.Logger
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(svc *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger.Named("auth_handler")}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Token handles POST /api/v1/auth/token. It supports two grant types:
// "client_credentials" (machine principals, e.g. the cron-driven backup
// CLI) and "authorization_code" (exchanging a code issued by /auth/authorize).
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		accessToken string
		err         error
	)
	switch req.GrantType {
	case "client_credentials":
		if req.ClientID == "" || req.ClientSecret == "" {
			ErrBadRequest(w, "client_id and client_secret are required")
			return
		}
		accessToken, err = h.svc.ClientCredentials(r.Context(), req.ClientID, req.ClientSecret)
	case "authorization_code":
		if req.Code == "" {
			ErrBadRequest(w, "code is required")
			return
		}
		accessToken, err = h.svc.ExchangeAuthorizationCode(r.Context(), req.Code)
	default:
		ErrBadRequest(w, `grant_type must be "client_credentials" or "authorization_code"`)
		return
	}

	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrAuthCodeExpired) {
			ErrUnauthorized(w)
			return
		}
		h.logger.Error("token issuance failed", zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, tokenResponse{AccessToken: accessToken, TokenType: "Bearer"})
}

type authorizeRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authorizeResponse struct {
	Code string `json:"code"`
}

// Authorize handles POST /api/v1/auth/authorize: verifies a username and
// password and issues a short-lived authorization code to be exchanged
// at /auth/token with grant_type=authorization_code.
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		ErrBadRequest(w, "username and password are required")
		return
	}

	ac, err := h.svc.LoginLocal(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserDisabled) {
			ErrUnauthorized(w)
			return
		}
		h.logger.Error("login failed", zap.String("username", req.Username), zap.Error(err))
		ErrInternal(w)
		return
	}

	Ok(w, authorizeResponse{Code: ac.Code})
}
