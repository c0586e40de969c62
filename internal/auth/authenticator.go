package auth

import (
	"errors"
	"net/http"

	"dm-chat-service/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the handshake cookie carrying the signed credential.
const CookieName = "auth"

// Identity is the authenticated principal bound to a connection. It is
// derived once from the handshake credential and never changes for the
// lifetime of the connection.
type Identity struct {
	UserID      string
	Username    string
	DisplayName string
	Avatar      string
	Provider    string
}

// Claims is the JWT payload minted by the external auth flow.
type Claims struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
	Provider    string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator verifies handshake credentials. The verifier configuration is
// injected here rather than read off shared server state.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Authenticate extracts the auth cookie from the raw handshake headers,
// verifies signature and expiry, and decodes the payload into an Identity.
// It runs exactly once per connection, before any event handler is attached.
func (a *Authenticator) Authenticate(header http.Header) (*Identity, error) {
	cookie, err := (&http.Request{Header: header}).Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, apperr.New(apperr.CodeNoToken, "no auth cookie provided")
	}

	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.CodeTokenExpired, "credential expired", err)
		}
		return nil, apperr.Wrap(apperr.CodeInvalidToken, "invalid credential", err)
	}
	if !token.Valid {
		return nil, apperr.New(apperr.CodeInvalidToken, "invalid credential")
	}

	if claims.Subject == "" {
		return nil, apperr.New(apperr.CodeInvalidClaims, "credential payload missing subject")
	}

	return &Identity{
		UserID:      claims.Subject,
		Username:    claims.Username,
		DisplayName: claims.DisplayName,
		Avatar:      claims.Avatar,
		Provider:    claims.Provider,
	}, nil
}
