package realtime

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"dm-chat-service/internal/journal"
	"dm-chat-service/internal/models"
	"dm-chat-service/internal/store"
	"dm-chat-service/pkg/apperr"
)

// reportError converts err into a single error event back to the originating
// connection. Errors never propagate to other connections.
func (h *Hub) reportError(c *Client, err error) {
	c.sendError(apperr.CodeOf(err), apperr.MessageOf(err))
}

func (h *Hub) handleSendMessage(c *Client, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError(apperr.CodeInvalidData, "malformed send_message payload")
		return
	}

	msg, err := h.pipeline.Send(h.ctx, c.Identity(), &payload)
	if err != nil {
		h.reportError(c, err)
		return
	}

	ev, err := NewEvent(EventNewMessage, msg)
	if err != nil {
		h.reportError(c, apperr.Internal("failed to encode message", err))
		return
	}

	// Recipient channel first, then echo to the sender's own channel so
	// multi-device senders receive the authoritative copy with id and
	// timestamp.
	h.sendToUser(msg.ReceiverID, ev)
	h.sendToUser(msg.SenderID, ev)
}

func (h *Hub) handleEditMessage(c *Client, data json.RawMessage) {
	var payload EditMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError(apperr.CodeInvalidData, "malformed edit_message payload")
		return
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" {
		c.sendError(apperr.CodeEmptyMessage, "message content cannot be empty")
		return
	}
	if utf8.RuneCountInString(content) > models.MaxContentLength {
		c.sendError(apperr.CodeMessageTooLong, "message content exceeds maximum length")
		return
	}

	msg, err := h.loadOwnedMessage(c, payload.MessageID, ownerSender)
	if err != nil {
		h.reportError(c, err)
		return
	}

	// Unchanged content is an idempotent success: no mutation, no broadcast.
	if msg.Content == content {
		return
	}

	editedAt := h.pipeline.now().UTC()
	if err := h.store.UpdateContent(h.ctx, msg.ID, content, editedAt); err != nil {
		h.reportError(c, h.storeError("failed to edit message", err))
		return
	}

	msg.Content = content
	msg.EditedAt = &editedAt

	ev, err := NewEvent(EventMessageEdited, &MessageEditedPayload{
		MessageID:      msg.ID,
		Content:        content,
		EditedAt:       editedAt,
		ConversationID: msg.ConversationID,
	})
	if err != nil {
		h.reportError(c, apperr.Internal("failed to encode edit", err))
		return
	}

	h.sendToUser(msg.ReceiverID, ev)
	h.sendToUser(msg.SenderID, ev)
	h.journal.Record(journal.KindEdited, msg)
}

func (h *Hub) handleDeleteMessage(c *Client, data json.RawMessage) {
	var payload DeleteMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError(apperr.CodeInvalidData, "malformed delete_message payload")
		return
	}

	msg, err := h.loadMessage(c, payload.MessageID)
	if err != nil {
		h.reportError(c, err)
		return
	}
	if msg.SenderID != c.UserID() {
		h.reportError(c, apperr.NotFound("message not found"))
		return
	}

	// Deleting an already-deleted message succeeds without a second broadcast.
	if msg.Status == models.StatusDeleted {
		return
	}

	if err := h.store.UpdateStatus(h.ctx, msg.ID, models.StatusDeleted); err != nil {
		h.reportError(c, h.storeError("failed to delete message", err))
		return
	}

	msg.Status = models.StatusDeleted

	ev, err := NewEvent(EventMessageDeleted, &MessageDeletedPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	})
	if err != nil {
		h.reportError(c, apperr.Internal("failed to encode delete", err))
		return
	}

	h.sendToUser(msg.ReceiverID, ev)
	h.sendToUser(msg.SenderID, ev)
	h.journal.Record(journal.KindDeleted, msg)
}

func (h *Hub) handleMarkRead(c *Client, data json.RawMessage) {
	var payload MarkReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError(apperr.CodeInvalidData, "malformed mark_message_read payload")
		return
	}

	msg, err := h.loadOwnedMessage(c, payload.MessageID, ownerReceiver)
	if err != nil {
		h.reportError(c, err)
		return
	}

	// Marking an already-read message is an idempotent success.
	if msg.Status == models.StatusRead {
		return
	}

	if err := h.store.UpdateStatus(h.ctx, msg.ID, models.StatusRead); err != nil {
		h.reportError(c, h.storeError("failed to mark message read", err))
		return
	}

	msg.Status = models.StatusRead

	ev, err := NewEvent(EventMessageRead, &MessageReadPayload{MessageID: msg.ID})
	if err != nil {
		h.reportError(c, apperr.Internal("failed to encode read receipt", err))
		return
	}

	// Receipt display only needs the sender, so this is a unicast to the
	// sender's identity channel rather than a global broadcast.
	h.sendToUser(msg.SenderID, ev)
	h.journal.Record(journal.KindRead, msg)
}

func (h *Hub) handleUpdateStatus(c *Client, data json.RawMessage) {
	var payload UpdateStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError(apperr.CodeInvalidData, "malformed update_status payload")
		return
	}

	status := models.UserStatus(payload.Status)
	if !status.IsValid() {
		c.sendError(apperr.CodeInvalidStatus, "status must be online or offline")
		return
	}

	ev, err := NewEvent(EventUserStatusChanged, &StatusChangedPayload{
		UserID: c.UserID(),
		Status: string(status),
	})
	if err != nil {
		h.reportError(c, apperr.Internal("failed to encode status change", err))
		return
	}

	// User-asserted status goes to every other connection, including the
	// user's own other devices. It is independent of the presence registry's
	// connection-derived fact.
	h.broadcastExceptClient(c, ev)
}

func (h *Hub) handleTyping(c *Client, data json.RawMessage, isTyping bool) {
	var payload TypingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError(apperr.CodeInvalidData, "malformed typing payload")
		return
	}

	receiverID := strings.TrimSpace(payload.ReceiverID)
	if receiverID == "" || receiverID == c.UserID() {
		c.sendError(apperr.CodeInvalidReceiver, "receiver id is required")
		return
	}

	ev, err := NewEvent(EventUserTyping, &TypingStatePayload{
		UserID:   c.UserID(),
		IsTyping: isTyping,
	})
	if err != nil {
		h.reportError(c, apperr.Internal("failed to encode typing state", err))
		return
	}

	// Unicast to the target's identity channel only. An offline target is not
	// an error; the signal is ephemeral and simply not delivered.
	h.sendToUser(receiverID, ev)
}

type messageOwner int

const (
	ownerSender messageOwner = iota
	ownerReceiver
)

// loadOwnedMessage fetches a message and checks that the acting identity owns
// the requested mutation. Authorization failures and missing or deleted
// messages all surface as not-found so existence is never leaked.
func (h *Hub) loadOwnedMessage(c *Client, messageID string, owner messageOwner) (*models.Message, error) {
	msg, err := h.loadMessage(c, messageID)
	if err != nil {
		return nil, err
	}

	switch owner {
	case ownerSender:
		if msg.SenderID != c.UserID() {
			return nil, apperr.NotFound("message not found")
		}
	case ownerReceiver:
		if msg.ReceiverID != c.UserID() {
			return nil, apperr.NotFound("message not found")
		}
	}

	if msg.Status == models.StatusDeleted {
		return nil, apperr.NotFound("message not found")
	}
	return msg, nil
}

func (h *Hub) loadMessage(c *Client, messageID string) (*models.Message, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, apperr.New(apperr.CodeInvalidData, "message id is required")
	}
	msg, err := h.store.GetMessage(h.ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("message not found")
		}
		return nil, apperr.Internal("failed to load message", err)
	}
	// Handlers mutate the loaded message to build broadcasts; the store may
	// hand out shared instances, so they get their own copy.
	return msg.Clone(), nil
}

func (h *Hub) storeError(msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("message not found")
	}
	return apperr.Internal(msg, err)
}
