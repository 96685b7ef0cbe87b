package serv

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAuthenticate_NoSecretAlwaysAnon(t *testing.T) {
	a := NewAuthenticator("", "$.role", "anon")
	role, err := a.Authenticate("")
	require.NoError(t, err)
	require.Equal(t, "anon", string(role))
}

func TestAuthenticate_MissingHeaderFallsBackToAnon(t *testing.T) {
	a := NewAuthenticator("secret", "$.role", "anon")
	role, err := a.Authenticate("")
	require.NoError(t, err)
	require.Equal(t, "anon", string(role))
}

func TestAuthenticate_MissingHeaderRejectedWithoutAnon(t *testing.T) {
	a := NewAuthenticator("secret", "$.role", "")
	_, err := a.Authenticate("")
	require.Error(t, err)
}

func TestAuthenticate_ValidTokenExtractsRole(t *testing.T) {
	a := NewAuthenticator("secret", "$.role", "anon")
	token := signToken(t, "secret", jwt.MapClaims{"role": "editor"})
	role, err := a.Authenticate("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, "editor", string(role))
}

func TestAuthenticate_TokenWithoutRoleClaimFallsBackToAnon(t *testing.T) {
	a := NewAuthenticator("secret", "$.role", "anon")
	token := signToken(t, "secret", jwt.MapClaims{"sub": "123"})
	role, err := a.Authenticate("Bearer " + token)
	require.NoError(t, err)
	require.Equal(t, "anon", string(role))
}

func TestAuthenticate_ExpiredTokenRejected(t *testing.T) {
	a := NewAuthenticator("secret", "$.role", "anon")
	token := signToken(t, "secret", jwt.MapClaims{
		"role": "editor",
		"exp":  time.Now().Add(-1 * time.Hour).Unix(),
	})
	_, err := a.Authenticate("Bearer " + token)
	require.Error(t, err)
}

func TestAuthenticate_WrongSecretRejected(t *testing.T) {
	a := NewAuthenticator("secret", "$.role", "anon")
	token := signToken(t, "other-secret", jwt.MapClaims{"role": "editor"})
	_, err := a.Authenticate("Bearer " + token)
	require.Error(t, err)
}
