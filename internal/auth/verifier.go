package auth

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is what a successful credential check yields.
type Identity struct {
	Email string
	Roles []string
}

// CredentialVerifier checks a login attempt. Implementations must not reveal
// which half of the pair was wrong.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (Identity, error)
}

// StaticVerifier accepts exactly one email/password pair.
type StaticVerifier struct {
	email        string
	passwordHash string
	roles        []string
}

func NewStaticVerifier(email, passwordHash string, roles ...string) *StaticVerifier {
	return &StaticVerifier{
		email:        strings.TrimSpace(email),
		passwordHash: passwordHash,
		roles:        roles,
	}
}

func (v *StaticVerifier) Configured() bool {
	return v.email != "" && v.passwordHash != ""
}

func (v *StaticVerifier) Verify(_ context.Context, email, password string) (Identity, error) {
	if !v.Configured() {
		return Identity{}, ErrInvalidCredentials
	}
	if !strings.EqualFold(strings.TrimSpace(email), v.email) {
		return Identity{}, ErrInvalidCredentials
	}
	if !CheckPassword(v.passwordHash, password) {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Email: v.email, Roles: append([]string(nil), v.roles...)}, nil
}
