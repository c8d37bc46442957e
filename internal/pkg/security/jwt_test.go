package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(42)
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, uint64(42), claims.UserID)
	require.Greater(t, RemainingTTL(claims), time.Hour)

	sig, err := ExtractSignature(token)
	require.NoError(t, err)
	require.NotEmpty(t, sig)
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	token, err := GenerateToken(7)
	require.NoError(t, err)

	_, err = ValidateToken(token + "x")
	require.Error(t, err)

	_, err = ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	claims := &UserClaims{
		UserID: 9,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			Issuer:    jwtIssuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
	require.NoError(t, err)

	_, err = ValidateToken(token)
	require.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	require.NoError(t, CheckPasswordHash("secret1", hash))
	require.ErrorIs(t, CheckPasswordHash("wrong", hash), ErrPasswordMismatch)

	_, err = HashPassword("")
	require.Error(t, err)
}
