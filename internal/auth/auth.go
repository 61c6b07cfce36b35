// Package auth provides password checks and JWT issuance for the
// dashboard API.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/sotocloud/sotovision/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator validates store-backed user credentials and issues
// branch-scoped tokens.
type Authenticator struct {
	users      *store.UserRepository
	jwtManager *JWTManager
}

func NewAuthenticator(users *store.UserRepository, jwtManager *JWTManager) *Authenticator {
	return &Authenticator{users: users, jwtManager: jwtManager}
}

// Authenticate validates credentials and returns a JWT token with its
// unix expiry.
func (a *Authenticator) Authenticate(username, password string) (string, int64, error) {
	u, err := a.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", 0, ErrInvalidCredentials
		}
		return "", 0, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", 0, ErrInvalidCredentials
	}

	token, expiresAt, err := a.jwtManager.GenerateToken(u.Username, u.Role, u.BranchID)
	if err != nil {
		return "", 0, err
	}

	return token, expiresAt.Unix(), nil
}

// ValidateToken validates a JWT token
func (a *Authenticator) ValidateToken(token string) (*Claims, error) {
	return a.jwtManager.ValidateToken(token)
}

// HashPassword creates a bcrypt hash of a password (utility function)
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
