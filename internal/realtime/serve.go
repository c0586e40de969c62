package realtime

import (
	"encoding/json"
	"net/http"
	"strings"

	"dm-chat-service/internal/auth"
	"dm-chat-service/pkg/apperr"

	"github.com/gorilla/websocket"
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
}

// originAllowed accepts same-origin requests (no Origin header), anything on
// the configured allow-list, and local development hosts.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if origin == strings.TrimSpace(o) {
			return true
		}
	}
	return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
}

// ServeWS upgrades the HTTP request and admits the connection. The credential
// check runs exactly once, synchronously, before any event handler exists for
// the connection: an unauthenticated peer gets one error event and is closed
// without ever being registered.
func ServeWS(hub *Hub, authenticator *auth.Authenticator, w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("websocket upgrade failed", "error", err)
		return
	}

	identity, err := authenticator.Authenticate(r.Header)
	if err != nil {
		hub.log.Warn("connection rejected", "reason", err.Error())
		rejectConn(conn, err)
		return
	}

	client := newClient(hub, conn, identity)
	hub.registerClient(client)

	hub.log.Info("websocket connection established",
		"clientID", client.id, "userID", identity.UserID)

	go client.writePump()
	go client.readPump()
}

// rejectConn writes a single error event describing the auth failure directly
// to the raw connection, then closes it.
func rejectConn(conn Conn, err error) {
	ev := newErrorEvent(apperr.CodeOf(err), apperr.MessageOf(err))
	if data, merr := json.Marshal(ev); merr == nil {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = conn.Close()
}
