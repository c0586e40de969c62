package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-chat-service/pkg/apperr"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, secret string, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func headerWithCookie(value string) http.Header {
	req, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: value})
	return req.Header
}

func validClaims() *Claims {
	return &Claims{
		Username:    "alice",
		DisplayName: "Alice",
		Provider:    "github",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "notify",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestAuthenticate(t *testing.T) {
	a := NewAuthenticator(testSecret, "notify")

	t.Run("valid token yields identity", func(t *testing.T) {
		header := headerWithCookie(mintToken(t, testSecret, validClaims()))

		id, err := a.Authenticate(header)
		require.NoError(t, err)
		assert.Equal(t, "user-1", id.UserID)
		assert.Equal(t, "alice", id.Username)
		assert.Equal(t, "Alice", id.DisplayName)
		assert.Equal(t, "github", id.Provider)
	})

	t.Run("missing cookie", func(t *testing.T) {
		_, err := a.Authenticate(http.Header{})
		assert.Equal(t, apperr.CodeNoToken, apperr.CodeOf(err))
	})

	t.Run("empty cookie value", func(t *testing.T) {
		_, err := a.Authenticate(headerWithCookie(""))
		assert.Equal(t, apperr.CodeNoToken, apperr.CodeOf(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := a.Authenticate(headerWithCookie("not-a-jwt"))
		assert.Equal(t, apperr.CodeInvalidToken, apperr.CodeOf(err))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		header := headerWithCookie(mintToken(t, "other-secret", validClaims()))
		_, err := a.Authenticate(header)
		assert.Equal(t, apperr.CodeInvalidToken, apperr.CodeOf(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := validClaims()
		claims.Issuer = "somebody-else"
		_, err := a.Authenticate(headerWithCookie(mintToken(t, testSecret, claims)))
		assert.Equal(t, apperr.CodeInvalidToken, apperr.CodeOf(err))
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := a.Authenticate(headerWithCookie(mintToken(t, testSecret, claims)))
		assert.Equal(t, apperr.CodeTokenExpired, apperr.CodeOf(err))
	})

	t.Run("missing subject", func(t *testing.T) {
		claims := validClaims()
		claims.Subject = ""
		_, err := a.Authenticate(headerWithCookie(mintToken(t, testSecret, claims)))
		assert.Equal(t, apperr.CodeInvalidClaims, apperr.CodeOf(err))
	})

	t.Run("unexpected signing algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims())
		signed, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = a.Authenticate(headerWithCookie(signed))
		assert.Equal(t, apperr.CodeInvalidToken, apperr.CodeOf(err))
	})
}
