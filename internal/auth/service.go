package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

// AuthCodeTTL is how long an authorization code is valid after issuance.
const AuthCodeTTL = 10 * time.Minute

// Service facades login, client-credentials, and authorization-code flows
// behind the JWTManager and the Client/User/AuthCode repositories.
type Service struct {
	users     repository.UserRepository
	clients   repository.ClientRepository
	authCodes repository.AuthCodeRepository
	jwt       *JWTManager
}

// NewService returns a Service.
func NewService(users repository.UserRepository, clients repository.ClientRepository, authCodes repository.AuthCodeRepository, jwt *JWTManager) *Service {
	return &Service{users: users, clients: clients, authCodes: authCodes, jwt: jwt}
}

// JWTManager exposes the underlying manager, e.g. for a JWKS endpoint.
func (s *Service) JWTManager() *JWTManager { return s.jwt }

// LoginLocal verifies a username/password pair and, on success, issues a
// short-lived AuthCode the caller exchanges for a token via
// /auth/token (grant_type=authorization_code).
func (s *Service) LoginLocal(ctx context.Context, username, password string) (*db.AuthCode, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}

	code, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("auth: generating authorization code: %w", err)
	}

	ac := db.AuthCode{
		Code:      code,
		Username:  u.Username,
		Scopes:    []string{"operator"},
		ExpiresAt: time.Now().UTC().Add(AuthCodeTTL).Unix(),
	}
	if err := s.authCodes.Create(ctx, &ac); err != nil {
		return nil, fmt.Errorf("auth: persisting authorization code: %w", err)
	}
	return &ac, nil
}

// ExchangeAuthorizationCode consumes a code issued by LoginLocal and
// returns a signed access token. The code is deleted on consumption; a
// code found expired by the repository's lazy-expiry lookup is reported
// as ErrAuthCodeExpired regardless of which happened.
func (s *Service) ExchangeAuthorizationCode(ctx context.Context, code string) (string, error) {
	ac, err := s.authCodes.GetByCode(ctx, code, time.Now().UTC().Unix())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAuthCodeExpired
		}
		return "", err
	}

	if err := s.authCodes.Delete(ctx, ac.Code); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	return s.jwt.GenerateAccessToken(ac.Username, ac.Scopes)
}

// ClientCredentials verifies a Client id/secret pair and issues an access
// token scoped to the client's configured scopes (the client-credentials
// grant used by the non-interactive backup CLI entry point).
func (s *Service) ClientCredentials(ctx context.Context, clientID, secret string) (string, error) {
	parsedID, err := parseClientID(clientID)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	c, err := s.clients.GetByID(ctx, parsedID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !VerifyPassword(c.Secret, secret) {
		return "", ErrInvalidCredentials
	}

	return s.jwt.GenerateAccessToken(c.ID.String(), c.Scopes)
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
