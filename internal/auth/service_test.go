package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dbcalm/dbcalm/internal/db"
	"github.com/dbcalm/dbcalm/internal/repository"
)

type fakeUsers struct {
	byUsername map[string]db.User
}

func (f *fakeUsers) Create(ctx context.Context, u *db.User) error { return nil }
func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*db.User, error) { return nil, nil }
func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (*db.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}
func (f *fakeUsers) Update(ctx context.Context, u *db.User) error { return nil }
func (f *fakeUsers) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeUsers) List(ctx context.Context) ([]db.User, error) { return nil, nil }

type fakeClients struct {
	byID map[uuid.UUID]db.Client
}

func (f *fakeClients) Create(ctx context.Context, c *db.Client) error { return nil }
func (f *fakeClients) GetByID(ctx context.Context, id uuid.UUID) (*db.Client, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}
func (f *fakeClients) Update(ctx context.Context, c *db.Client) error { return nil }
func (f *fakeClients) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeClients) List(ctx context.Context) ([]db.Client, error) { return nil, nil }

type fakeAuthCodes struct {
	byCode  map[string]db.AuthCode
	deleted []string
}

func (f *fakeAuthCodes) Create(ctx context.Context, ac *db.AuthCode) error {
	if f.byCode == nil {
		f.byCode = map[string]db.AuthCode{}
	}
	f.byCode[ac.Code] = *ac
	return nil
}
func (f *fakeAuthCodes) GetByCode(ctx context.Context, code string, now int64) (*db.AuthCode, error) {
	ac, ok := f.byCode[code]
	if !ok || ac.ExpiresAt <= now {
		return nil, repository.ErrNotFound
	}
	return &ac, nil
}
func (f *fakeAuthCodes) Delete(ctx context.Context, code string) error {
	f.deleted = append(f.deleted, code)
	delete(f.byCode, code)
	return nil
}
func (f *fakeAuthCodes) DeleteExpired(ctx context.Context, now int64) (int64, error) { return 0, nil }

func newTestService(t *testing.T) (*Service, *fakeUsers, *fakeClients, *fakeAuthCodes) {
	t.Helper()
	m, err := NewJWTManagerGenerated("dbcalm")
	if err != nil {
		t.Fatal(err)
	}
	users := &fakeUsers{byUsername: map[string]db.User{}}
	clients := &fakeClients{byID: map[uuid.UUID]db.Client{}}
	authCodes := &fakeAuthCodes{byCode: map[string]db.AuthCode{}}
	return NewService(users, clients, authCodes, m), users, clients, authCodes
}

func TestLoginLocal_WrongPasswordIsInvalidCredentials(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatal(err)
	}
	users.byUsername["alice"] = db.User{Username: "alice", Password: hash}

	_, err = svc.LoginLocal(context.Background(), "alice", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLocal_SuccessIssuesOperatorScopedAuthCode(t *testing.T) {
	svc, users, _, _ := newTestService(t)
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatal(err)
	}
	users.byUsername["alice"] = db.User{Username: "alice", Password: hash}

	ac, err := svc.LoginLocal(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ac.Scopes) != 1 || ac.Scopes[0] != "operator" {
		t.Errorf("expected a human login to always be scoped to operator, got %v", ac.Scopes)
	}
}

func TestExchangeAuthorizationCode_ConsumesCodeOnce(t *testing.T) {
	svc, _, _, authCodes := newTestService(t)
	authCodes.byCode["code-1"] = db.AuthCode{
		Code:      "code-1",
		Username:  "alice",
		Scopes:    []string{"operator"},
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	}

	token, err := svc.ExchangeAuthorizationCode(context.Background(), "code-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a non-empty access token")
	}

	_, err = svc.ExchangeAuthorizationCode(context.Background(), "code-1")
	if !errors.Is(err, ErrAuthCodeExpired) {
		t.Fatalf("expected a consumed code to be rejected as expired/unknown on reuse, got %v", err)
	}
}

func TestExchangeAuthorizationCode_ExpiredCodeIsRejected(t *testing.T) {
	svc, _, _, authCodes := newTestService(t)
	authCodes.byCode["code-old"] = db.AuthCode{
		Code:      "code-old",
		Username:  "alice",
		Scopes:    []string{"operator"},
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}

	_, err := svc.ExchangeAuthorizationCode(context.Background(), "code-old")
	if !errors.Is(err, ErrAuthCodeExpired) {
		t.Fatalf("expected ErrAuthCodeExpired, got %v", err)
	}
}

func TestClientCredentials_ScopesCarryArbitraryValuesIncludingAdmin(t *testing.T) {
	svc, _, clients, _ := newTestService(t)

	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		t.Fatal(err)
	}
	cl := db.Client{Secret: hash, Scopes: []string{"admin"}}
	cl.ID = id
	clients.byID[id] = cl

	token, err := svc.ClientCredentials(context.Background(), id.String(), "s3cret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := svc.JWTManager().ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claims.Scopes) != 1 || claims.Scopes[0] != "admin" {
		t.Errorf("expected a client-credentials token to carry the client's configured scopes (admin), got %v", claims.Scopes)
	}
}

func TestClientCredentials_UnknownClientIsInvalidCredentials(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	randomID := uuid.New().String()
	_, err := svc.ClientCredentials(context.Background(), randomID, "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for an unknown client, got %v", err)
	}
}

func TestClientCredentials_MalformedIDIsInvalidCredentials(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.ClientCredentials(context.Background(), "not-a-uuid", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for a malformed client id, got %v", err)
	}
}
