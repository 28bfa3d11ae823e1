package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role issued today.
const RoleAdmin = "admin"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("session token required")
)

// JWTManager handles session token generation and validation.
type JWTManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	now           func() time.Time
}

// Claims represents the JWT claims of an admin session.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager with the given secret and token duration.
// secretKey should be a strong random string (e.g., 32 bytes).
func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		now:           time.Now,
	}
}

// Duration returns how long issued tokens stay valid.
func (m *JWTManager) Duration() time.Duration {
	return m.tokenDuration
}

// Generate creates a signed session token for subject with role.
func (m *JWTManager) Generate(subject, role string) (string, error) {
	now := m.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// Validate parses and validates a token, returning the claims if valid.
func (m *JWTManager) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			// Verify the signing method
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
