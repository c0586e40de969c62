package handler

import (
	"errors"
	"net/http"
	"strconv"

	"dm-chat-service/internal/store"
	"dm-chat-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 100

// HistoryHandler serves conversation history. Fetching history while online
// doubles as the delivery acknowledgment for messages sent while the reader
// was away: pending inbound messages flip to delivered, without any live
// event for those past messages.
type HistoryHandler struct {
	store store.Store
	log   *logger.Logger
}

func NewHistoryHandler(st store.Store, log *logger.Logger) *HistoryHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &HistoryHandler{store: st, log: log}
}

func (h *HistoryHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/conversations/:id/messages", h.ListMessages)
}

func (h *HistoryHandler) ListMessages(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	conversationID := c.Param("id")
	conv, err := h.store.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.log.Error("failed to load conversation", "conversationID", conversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if !conv.Has(identity.UserID) {
		// Same privacy posture as the realtime mutators: membership failures
		// look identical to missing conversations.
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	if _, err := h.store.MarkDelivered(c.Request.Context(), conv.ID, identity.UserID); err != nil {
		h.log.Error("failed to mark messages delivered",
			"conversationID", conv.ID, "userID", identity.UserID, "error", err)
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	msgs, err := h.store.ListMessages(c.Request.Context(), conv.ID, limit)
	if err != nil {
		h.log.Error("failed to list messages", "conversationID", conv.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
