package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestJWT(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService("test-secret", "placement-api", time.Minute, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestParseToken_RoundTrip(t *testing.T) {
	svc := newTestJWT(t)

	token, err := svc.GenerateToken(7, "anna@example.com", "student", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "student", claims.Role)
}

func TestParseToken_Expired(t *testing.T) {
	svc := newTestJWT(t)

	token, err := svc.GenerateToken(7, "anna@example.com", "student", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.True(t, errors.Is(err, ErrTokenExpired))
}

func TestParseToken_WrongSecret(t *testing.T) {
	svc := newTestJWT(t)
	other, err := NewJWTService("another-secret", "placement-api", time.Minute, zap.NewNop())
	require.NoError(t, err)

	token, err := other.GenerateToken(7, "", "student", time.Hour)
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}

func TestParseToken_RejectsNoneAlgorithm(t *testing.T) {
	svc := newTestJWT(t)
	claims := &JWTCustomClaims{UserID: 1, Role: "admin"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.Error(t, err, "Токен без подписи должен отклоняться")
}

func TestWSTicket_NotUsableAsAccessToken(t *testing.T) {
	svc := newTestJWT(t)

	ticket, err := svc.GenerateWSTicket(7, "anna@example.com", "student")
	require.NoError(t, err)

	claims, err := svc.ParseWSTicket(ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)

	_, err = svc.ParseToken(ticket)
	assert.True(t, errors.Is(err, ErrTokenInvalid))

	access, err := svc.GenerateToken(7, "", "student", time.Hour)
	require.NoError(t, err)
	_, err = svc.ParseWSTicket(access)
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}
