package realtime

import (
	"encoding/json"
	"time"

	"dm-chat-service/pkg/apperr"
)

// EventType identifies a realtime event on the wire.
type EventType string

// Client -> server events.
const (
	EventSendMessage     EventType = "send_message"
	EventEditMessage     EventType = "edit_message"
	EventDeleteMessage   EventType = "delete_message"
	EventMarkMessageRead EventType = "mark_message_read"
	EventUpdateStatus    EventType = "update_status"
	EventStartTyping     EventType = "start_typing"
	EventStopTyping      EventType = "stop_typing"
)

// Server -> client events.
const (
	EventNewMessage        EventType = "new_message"
	EventMessageEdited     EventType = "message_edited"
	EventMessageDeleted    EventType = "message_deleted"
	EventMessageRead       EventType = "message_read"
	EventUserStatusChanged EventType = "user_status_changed"
	EventUserTyping        EventType = "user_typing"
	EventError             EventType = "error"
)

// Event is the wire envelope for both directions.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent wraps payload in an envelope. Payloads are plain structs, so a
// marshal failure here is a programming error surfaced to the caller.
func NewEvent(t EventType, payload interface{}) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Type: t, Data: data}, nil
}

// Inbound payloads.

type SendMessagePayload struct {
	Content    string `json:"content"`
	ReceiverID string `json:"receiverId"`
}

type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

type DeleteMessagePayload struct {
	MessageID string `json:"messageId"`
}

type MarkReadPayload struct {
	MessageID string `json:"messageId"`
}

type UpdateStatusPayload struct {
	Status string `json:"status"`
}

type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
}

// Outbound payloads. new_message carries the full models.Message record.

type MessageEditedPayload struct {
	MessageID      string    `json:"messageId"`
	Content        string    `json:"content"`
	EditedAt       time.Time `json:"editedAt"`
	ConversationID string    `json:"conversationId"`
}

type MessageDeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type MessageReadPayload struct {
	MessageID string `json:"messageId"`
}

type StatusChangedPayload struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

type TypingStatePayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func newErrorEvent(code apperr.Code, message string) *Event {
	ev, _ := NewEvent(EventError, &ErrorPayload{Message: message, Code: code.String()})
	return ev
}
