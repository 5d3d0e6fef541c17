// Package auth provides gateway login checks against bcrypt password hashes.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/rickgao/ledger-notify/internal/config"
)

// ErrInvalidCredentials is returned when the user is unknown or the password is wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator checks user/password pairs. With no users configured, login is not required.
type Authenticator struct {
	users map[string][]byte // name -> bcrypt hash
}

// NewAuthenticator builds an Authenticator from configured users.
func NewAuthenticator(users []config.UserConfig) (*Authenticator, error) {
	a := &Authenticator{users: make(map[string][]byte, len(users))}
	for _, u := range users {
		if u.Name == "" {
			return nil, errors.New("user name is required")
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("user %s: %w", u.Name, err)
		}
		a.users[u.Name] = []byte(u.PasswordHash)
	}
	return a, nil
}

// Required reports whether sessions must log in before using the API.
func (a *Authenticator) Required() bool {
	return a != nil && len(a.users) > 0
}

// Check verifies the password for user.
func (a *Authenticator) Check(user, password string) error {
	if !a.Required() {
		return nil
	}

	hash, ok := a.users[user]
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for gateway.users[].password_hash.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
