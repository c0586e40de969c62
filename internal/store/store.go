package store

import (
	"context"
	"errors"
	"time"

	"dm-chat-service/internal/models"
)

// ErrNotFound is returned when a referenced message, conversation or user
// does not exist.
var ErrNotFound = errors.New("record not found")

// MessageStore is the persistence collaborator for messages. The realtime
// core owns none of its internals; it only hands messages off and applies
// lifecycle mutations keyed by id.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	// GetMessage may return an instance shared with the store's internals;
	// callers must not mutate the result.
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	UpdateContent(ctx context.Context, id, content string, editedAt time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.MessageStatus) error
	// ListMessages returns a conversation's messages ordered by id ascending.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
	// MarkDelivered upgrades every sent message addressed to receiverID in the
	// conversation and returns the affected message ids. Used when a recipient
	// fetches history while online.
	MarkDelivered(ctx context.Context, conversationID, receiverID string) ([]string, error)
}

// ConversationStore resolves the two-party thread a message belongs to.
type ConversationStore interface {
	// ResolveConversation finds or creates the conversation between two users.
	ResolveConversation(ctx context.Context, a, b string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
}

// UserLookup resolves sender/recipient metadata.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Store aggregates the collaborator interfaces the realtime core consumes.
type Store interface {
	MessageStore
	ConversationStore
	UserLookup
}
