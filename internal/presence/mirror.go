package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dm-chat-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	onlineUsersKey    = "online_users"
	statusChannel     = "user_status"
	onlineStatusTTL   = 5 * time.Minute
	offlineStatusTTL  = 24 * time.Hour
	statusKeyTemplate = "user:%s:status"
)

// RedisMirror mirrors presence transitions into Redis so other instances and
// the REST layer can observe who is online, and publishes status updates on a
// pub/sub channel.
type RedisMirror struct {
	client *redis.Client
	origin string
}

// NewRedisMirror builds a mirror that stamps published updates with origin,
// the hub instance id, so the publishing instance can ignore its own echoes.
func NewRedisMirror(client *redis.Client, origin string) *RedisMirror {
	return &RedisMirror{client: client, origin: origin}
}

func (m *RedisMirror) SetOnline(ctx context.Context, userID string) error {
	pipe := m.client.Pipeline()
	pipe.SAdd(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, fmt.Sprintf(statusKeyTemplate, userID), map[string]interface{}{
		"status":    string(models.UserOnline),
		"last_seen": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf(statusKeyTemplate, userID), onlineStatusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return m.publish(ctx, userID, models.UserOnline)
}

func (m *RedisMirror) SetOffline(ctx context.Context, userID string) error {
	pipe := m.client.Pipeline()
	pipe.SRem(ctx, onlineUsersKey, userID)
	pipe.HSet(ctx, fmt.Sprintf(statusKeyTemplate, userID), map[string]interface{}{
		"status":    string(models.UserOffline),
		"last_seen": time.Now().Unix(),
	})
	pipe.Expire(ctx, fmt.Sprintf(statusKeyTemplate, userID), offlineStatusTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return m.publish(ctx, userID, models.UserOffline)
}

func (m *RedisMirror) publish(ctx context.Context, userID string, status models.UserStatus) error {
	payload, err := json.Marshal(&models.StatusUpdate{
		UserID:    userID,
		Status:    status,
		Origin:    m.origin,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return m.client.Publish(ctx, statusChannel, payload).Err()
}

// OnlineUsers returns the mirrored set of online user ids.
func (m *RedisMirror) OnlineUsers(ctx context.Context) ([]string, error) {
	return m.client.SMembers(ctx, onlineUsersKey).Result()
}

// Subscribe streams status updates published by any instance. The channel is
// closed when ctx is cancelled.
func (m *RedisMirror) Subscribe(ctx context.Context) <-chan *models.StatusUpdate {
	pubsub := m.client.Subscribe(ctx, statusChannel)
	ch := make(chan *models.StatusUpdate)

	go func() {
		defer close(ch)
		defer pubsub.Close()
		for {
			select {
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var update models.StatusUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					continue
				}
				select {
				case ch <- &update:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}
