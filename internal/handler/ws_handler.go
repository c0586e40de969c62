package handler

import (
	"dm-chat-service/internal/auth"
	"dm-chat-service/internal/realtime"

	"github.com/gin-gonic/gin"
)

type WSHandler struct {
	hub           *realtime.Hub
	authenticator *auth.Authenticator
}

func NewWSHandler(hub *realtime.Hub, authenticator *auth.Authenticator) *WSHandler {
	return &WSHandler{hub: hub, authenticator: authenticator}
}

func (h *WSHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket hands the request to the realtime layer. Authentication
// happens after the upgrade so a rejected peer receives an error event over
// the socket before it is closed.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	realtime.ServeWS(h.hub, h.authenticator, c.Writer, c.Request)
}
