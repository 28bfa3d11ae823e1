package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordAuthenticator(t *testing.T) {
	ctx := context.Background()

	a, err := NewPlainPasswordAuthenticator("door-secret")
	require.NoError(t, err)

	assert.NoError(t, a.Authenticate(ctx, "door-secret"))
	assert.ErrorIs(t, a.Authenticate(ctx, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, a.Authenticate(ctx, ""), ErrInvalidCredentials)
}

func TestNewPasswordAuthenticatorFromHash(t *testing.T) {
	hash, err := HashPassword("door-secret")
	require.NoError(t, err)

	a, err := NewPasswordAuthenticator(hash)
	require.NoError(t, err)
	assert.NoError(t, a.Authenticate(context.Background(), "door-secret"))

	_, err = NewPasswordAuthenticator("not-a-hash")
	assert.Error(t, err)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, err := m.Generate("admin", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Subject)
}

func TestJWTManagerRejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	token, err := m.Generate("admin", RoleAdmin)
	require.NoError(t, err)

	t.Run("missing", func(t *testing.T) {
		_, err := m.Validate("")
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("plain sentinel cookie", func(t *testing.T) {
		_, err := m.Validate("authenticated")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewJWTManager("other-secret", time.Hour)
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTManager("test-secret", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: RoleAdmin})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Validate(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
