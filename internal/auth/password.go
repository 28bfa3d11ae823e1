package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid password")
	ErrEmptyPassword      = errors.New("password must not be empty")
)

// Ensure PasswordAuthenticator implements Authenticator
var _ Authenticator = (*PasswordAuthenticator)(nil)

// PasswordAuthenticator checks a single shared admin passphrase against a
// bcrypt hash.
type PasswordAuthenticator struct {
	hash []byte
}

// NewPasswordAuthenticator creates an authenticator from a bcrypt hash.
func NewPasswordAuthenticator(hash string) (*PasswordAuthenticator, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}
	return &PasswordAuthenticator{hash: []byte(hash)}, nil
}

// NewPlainPasswordAuthenticator hashes password once at startup so the
// plaintext is not kept around.
func NewPlainPasswordAuthenticator(password string) (*PasswordAuthenticator, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &PasswordAuthenticator{hash: []byte(hash)}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Authenticate compares credential with the stored hash.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, credential string) error {
	if credential == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(credential)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
