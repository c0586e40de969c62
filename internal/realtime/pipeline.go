package realtime

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"dm-chat-service/internal/auth"
	"dm-chat-service/internal/journal"
	"dm-chat-service/internal/models"
	"dm-chat-service/internal/store"
	"dm-chat-service/pkg/apperr"
	"dm-chat-service/pkg/logger"

	"github.com/rs/xid"
)

// PresenceQuery is the slice of the presence registry the pipeline consults
// to decide sent-vs-delivered.
type PresenceQuery interface {
	IsOnline(userID string) bool
}

// Pipeline validates, timestamps and persists a chat message, computing its
// initial delivery status. Persistence is synchronous: a message that could
// not be handed off to the store is never broadcast.
type Pipeline struct {
	store    store.Store
	presence PresenceQuery
	journal  journal.Journal
	log      *logger.Logger

	// Injection points for tests.
	now   func() time.Time
	newID func() string
}

func NewPipeline(st store.Store, pq PresenceQuery, j journal.Journal, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	if j == nil {
		j = journal.Nop{}
	}
	return &Pipeline{
		store:    st,
		presence: pq,
		journal:  j,
		log:      log,
		now:      time.Now,
		newID:    func() string { return xid.New().String() },
	}
}

// Send runs the full delivery pipeline for one message. On success the
// returned message carries its assigned id, creation time, conversation and
// computed status. Validation failures return an AppError and mutate nothing.
func (p *Pipeline) Send(ctx context.Context, sender *auth.Identity, payload *SendMessagePayload) (*models.Message, error) {
	content := strings.TrimSpace(payload.Content)
	if content == "" {
		return nil, apperr.New(apperr.CodeEmptyMessage, "message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > models.MaxContentLength {
		return nil, apperr.New(apperr.CodeMessageTooLong, "message content exceeds maximum length")
	}

	receiverID := strings.TrimSpace(payload.ReceiverID)
	if receiverID == "" {
		return nil, apperr.New(apperr.CodeInvalidReceiver, "receiver id is required")
	}
	if receiverID == sender.UserID {
		return nil, apperr.New(apperr.CodeSelfMessage, "cannot send a message to yourself")
	}

	if _, err := p.store.GetUser(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.CodeInvalidReceiver, "receiver does not exist")
		}
		return nil, apperr.Internal("failed to resolve receiver", err)
	}

	conv, err := p.store.ResolveConversation(ctx, sender.UserID, receiverID)
	if err != nil {
		return nil, apperr.Internal("failed to resolve conversation", err)
	}

	msg := &models.Message{
		ID:             p.newID(),
		ConversationID: conv.ID,
		SenderID:       sender.UserID,
		ReceiverID:     conv.Other(sender.UserID),
		Content:        content,
		Status:         models.StatusSent,
		CreatedAt:      p.now().UTC(),
	}

	// Optimistic delivery upgrade: a live recipient connection at send time
	// means imminent delivery. Best effort, not a delivery guarantee.
	if p.presence.IsOnline(receiverID) {
		msg.Status = models.StatusDelivered
	}

	if err := p.store.CreateMessage(ctx, msg); err != nil {
		p.log.Error("failed to persist message",
			"messageID", msg.ID, "senderID", msg.SenderID, "error", err)
		return nil, apperr.Internal("failed to persist message", err)
	}

	p.journal.Record(journal.KindSent, msg)
	return msg, nil
}
