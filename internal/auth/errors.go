// Package auth issues and verifies dbcalm's credentials: bcrypt-hashed
// Client/User secrets, short-lived AuthCodes, and RS256 JWTs handed out by
// /auth/token and /auth/authorize.
//
// Grounded on server/internal/auth/jwt.go for the RS256 issuance/
// verification shape (sentinel errors, errors.Is at call sites, per
// auth/errors.go's pattern); bcrypt is used for Client.Secret/User.Password
// instead of the teacher's Argon2id because spec.md is explicit that those
// fields are bcrypt-hashed (see DESIGN.md).
package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserDisabled       = errors.New("auth: user disabled")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenInvalid       = errors.New("auth: token invalid")
	ErrAuthCodeExpired    = errors.New("auth: authorization code expired or unknown")
)
