package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerify(t *testing.T) {
	v := NewVerifier(testSecret)

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"user_id": "user_1",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		userID, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user_1", userID)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"user_id": "user_1",
			"exp":     time.Now().Add(-time.Minute).Unix(),
		})
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signToken(t, "another-secret", jwt.MapClaims{
			"user_id": "user_1",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user_id claim", func(t *testing.T) {
		token := signToken(t, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := v.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "user_1"})
		unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = v.Verify(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestUserIDContext(t *testing.T) {
	ctx := withUserID(context.Background(), "user_9")
	id, ok := UserID(ctx)
	require.True(t, ok)
	assert.Equal(t, "user_9", id)

	_, ok = UserID(context.Background())
	assert.False(t, ok)
}
