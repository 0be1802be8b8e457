package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/koolaai/support_api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")

	pair, err := svc.ToJWT(shared.Identity{UserID: "u1", Role: shared.RoleOperator, EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, int64(86400), pair.ExpiresIn)

	identity, err := svc.VerifyJWTToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, shared.RoleOperator, identity.Role)
	assert.True(t, identity.EmailVerified)
}

func TestJWTRejectsWrongSecretAndExpired(t *testing.T) {
	pair, err := NewJWTService("other-secret").ToJWT(shared.Identity{UserID: "u1"})
	require.NoError(t, err)
	_, err = NewJWTService("test-secret").VerifyJWTToken(pair.AccessToken)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &CustomClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = NewJWTService("test-secret").VerifyJWTToken(signed)
	assert.Error(t, err)
}

func TestJWTRequiresUserID(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &CustomClaims{
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewJWTService("test-secret").VerifyJWTToken(signed)
	assert.Error(t, err)
}
