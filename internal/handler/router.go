package handler

import (
	"dm-chat-service/internal/auth"
	"dm-chat-service/internal/realtime"
	"dm-chat-service/internal/store"
	"dm-chat-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// NewRouter assembles the gin engine: the websocket endpoint, the history
// REST glue and health.
func NewRouter(
	hub *realtime.Hub,
	authenticator *auth.Authenticator,
	st store.Store,
	rdb *redis.Client,
	log *logger.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	root := engine.Group("/")
	NewHealthHandler(rdb).RegisterRoutes(root)
	NewWSHandler(hub, authenticator).RegisterRoutes(root)

	api := engine.Group("/api", Authenticated(authenticator))
	NewHistoryHandler(st, log).RegisterRoutes(api)

	return engine
}
