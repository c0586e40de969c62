package handler

import (
	"net/http"

	"dm-chat-service/internal/auth"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Authenticated verifies the auth cookie on REST requests with the same
// verifier the realtime handshake uses.
func Authenticated(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authenticator.Authenticate(c.Request.Header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}
