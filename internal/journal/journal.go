package journal

import (
	"context"
	"encoding/json"
	"time"

	"dm-chat-service/internal/models"
	"dm-chat-service/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Lifecycle event kinds recorded on the journal topic.
const (
	KindSent    = "message.sent"
	KindEdited  = "message.edited"
	KindDeleted = "message.deleted"
	KindRead    = "message.read"
)

// Journal records message lifecycle transitions on an audit stream. Recording
// is best effort: the realtime path never blocks or fails on journal errors.
type Journal interface {
	Record(kind string, msg *models.Message)
	Close() error
}

type record struct {
	Kind           string               `json:"kind"`
	MessageID      string               `json:"messageId"`
	ConversationID string               `json:"conversationId"`
	SenderID       string               `json:"senderId"`
	ReceiverID     string               `json:"receiverId"`
	Status         models.MessageStatus `json:"status"`
	Timestamp      int64                `json:"timestamp"`
}

// KafkaJournal writes lifecycle records to a Kafka topic keyed by message id
// so all transitions of one message land on the same partition.
type KafkaJournal struct {
	writer *kafka.Writer
	log    *logger.Logger
}

func NewKafkaJournal(brokers []string, topic string, log *logger.Logger) *KafkaJournal {
	if log == nil {
		log = logger.NewNop()
	}
	return &KafkaJournal{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
		log: log,
	}
}

func (j *KafkaJournal) Record(kind string, msg *models.Message) {
	payload, err := json.Marshal(&record{
		Kind:           kind,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Status:         msg.Status,
		Timestamp:      time.Now().Unix(),
	})
	if err != nil {
		j.log.Error("failed to marshal journal record", "kind", kind, "messageID", msg.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := j.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.ID),
		Value: payload,
	}); err != nil {
		j.log.Error("failed to write journal record", "kind", kind, "messageID", msg.ID, "error", err)
	}
}

func (j *KafkaJournal) Close() error {
	return j.writer.Close()
}

// Nop discards every record. Used when the journal is disabled and in tests.
type Nop struct{}

func (Nop) Record(string, *models.Message) {}
func (Nop) Close() error                   { return nil }
