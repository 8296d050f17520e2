package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestJWTService(t *testing.T, clock func() time.Time) *JWTService {
	t.Helper()

	svc, err := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		Issuer:         "mediadesk-test",
		AccessTokenTTL: time.Minute,
		Clock:          clock,
	})
	require.NoError(t, err)
	return svc
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestJWTServiceRoundTrip(t *testing.T) {
	svc := newTestJWTService(t, nil)

	token, err := svc.GenerateAccessToken(AccessTokenInput{
		UserID:   "user-1",
		Username: "alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "mediadesk-test", claims.Issuer)
}

func TestJWTServiceGenerateRequiresUserID(t *testing.T) {
	svc := newTestJWTService(t, nil)

	_, err := svc.GenerateAccessToken(AccessTokenInput{})
	require.Error(t, err)
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	base := time.Now()
	clock := base
	svc := newTestJWTService(t, func() time.Time { return clock })

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	clock = base.Add(2 * time.Minute)
	_, err = svc.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTServiceRejectsWrongSecret(t *testing.T) {
	svc := newTestJWTService(t, nil)

	other, err := NewJWTService(JWTConfig{
		Secret: "another-secret",
		Issuer: "mediadesk-test",
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTServiceRejectsWrongIssuer(t *testing.T) {
	issued, err := NewJWTService(JWTConfig{
		Secret: "test-secret",
		Issuer: "someone-else",
	})
	require.NoError(t, err)

	verifier := newTestJWTService(t, nil)

	token, err := issued.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTServiceRejectsEmptyToken(t *testing.T) {
	svc := newTestJWTService(t, nil)

	_, err := svc.ValidateAccessToken("")
	require.Error(t, err)
}
