package models

import "time"

// MessageStatus tracks the delivery lifecycle of a message. Transitions move
// forward only: sent -> delivered -> read, and any non-deleted state -> deleted.
// Deleted is terminal for mutation; edits never change status.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusDeleted   MessageStatus = "deleted"
)

func (s MessageStatus) IsValid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusDeleted:
		return true
	default:
		return false
	}
}

// MaxContentLength bounds message content after trimming surrounding whitespace.
const MaxContentLength = 2000

// Message is the realtime-relevant subset of a chat message. The relational
// store owns the durable row; the realtime core only holds an in-flight copy
// for broadcast.
type Message struct {
	ID             string        `gorm:"primaryKey;size:32" json:"id"`
	ConversationID string        `gorm:"index;not null" json:"conversationId"`
	SenderID       string        `gorm:"index;not null" json:"senderId"`
	ReceiverID     string        `gorm:"index;not null" json:"receiverId"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	Status         MessageStatus `gorm:"size:16;not null;default:sent" json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	EditedAt       *time.Time    `json:"editedAt,omitempty"`
}

// Clone returns a copy safe to hand to another goroutine.
func (m *Message) Clone() *Message {
	cp := *m
	if m.EditedAt != nil {
		t := *m.EditedAt
		cp.EditedAt = &t
	}
	return &cp
}
