package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"dm-chat-service/internal/auth"
	"dm-chat-service/internal/models"
	"dm-chat-service/internal/presence"
	"dm-chat-service/internal/store"
	"dm-chat-service/pkg/logger"
)

// mockConn implements the Conn interface for testing.
type mockConn struct {
	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, nil, errors.New("connection closed")
	}
	return 1, nil, errors.New("no data")
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	m.writes = append(m.writes, data)
	return nil
}

func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetPongHandler(func(string) error) {}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// fakeStore is an in-memory implementation of the persistence collaborator.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]*models.User
	convs      map[string]*models.Conversation
	msgs       map[string]*models.Message
	failCreate bool
}

func newFakeStore(userIDs ...string) *fakeStore {
	s := &fakeStore{
		users: make(map[string]*models.User),
		convs: make(map[string]*models.Conversation),
		msgs:  make(map[string]*models.Message),
	}
	for _, id := range userIDs {
		s.users[id] = &models.User{ID: id, Username: id}
	}
	return s
}

func (s *fakeStore) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		return errors.New("store unavailable")
	}
	s.msgs[msg.ID] = msg.Clone()
	return nil
}

// GetMessage hands back the stored instance, exercising the contract that
// callers must not mutate what the store returns.
func (s *fakeStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return msg, nil
}

func (s *fakeStore) UpdateContent(_ context.Context, id, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		return store.ErrNotFound
	}
	msg.Content = content
	msg.EditedAt = &editedAt
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id string, status models.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		return store.ErrNotFound
	}
	msg.Status = status
	return nil
}

func (s *fakeStore) ListMessages(_ context.Context, conversationID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.msgs {
		if msg.ConversationID == conversationID {
			out = append(out, *msg.Clone())
		}
	}
	return out, nil
}

func (s *fakeStore) MarkDelivered(_ context.Context, conversationID, receiverID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, msg := range s.msgs {
		if msg.ConversationID == conversationID && msg.ReceiverID == receiverID && msg.Status == models.StatusSent {
			msg.Status = models.StatusDelivered
			ids = append(ids, msg.ID)
		}
	}
	return ids, nil
}

func (s *fakeStore) ResolveConversation(_ context.Context, a, b string) (*models.Conversation, error) {
	p1, p2 := a, b
	if p2 < p1 {
		p1, p2 = p2, p1
	}
	key := p1 + ":" + p2

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[key]; ok {
		return conv, nil
	}
	conv := &models.Conversation{ID: "conv-" + key, P1: p1, P2: p2}
	s.convs[key] = conv
	return conv, nil
}

func (s *fakeStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.ID == id {
			return conv, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (s *fakeStore) message(t *testing.T, id string) *models.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		t.Fatalf("message %s not in store", id)
	}
	return msg.Clone()
}

// newTestHub builds a hub with an in-memory registry and no journal or feed.
func newTestHub(st store.Store) *Hub {
	return NewHub(HubOptions{
		Registry: presence.NewRegistry(nil, nil),
		Store:    st,
		Logger:   logger.NewNop(),
	})
}

// connect registers a client for userID without running the socket pumps, so
// tests can inspect queued events directly on the send channel.
func connect(h *Hub, userID string) *Client {
	c := newClient(h, &mockConn{}, &auth.Identity{UserID: userID, Username: userID})
	h.registerClient(c)
	return c
}

func dispatchEvent(t *testing.T, h *Hub, c *Client, typ EventType, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	raw, err := json.Marshal(&Event{Type: typ, Data: data})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	h.dispatch(c, raw)
}

// recvEvent pops the next queued event for c, failing if none is pending.
func recvEvent(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case data := <-c.send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return &ev
	default:
		t.Fatal("expected a queued event, got none")
		return nil
	}
}

func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("expected no event, got %s", data)
	default:
	}
}

func decodePayload(t *testing.T, ev *Event, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(ev.Data, out); err != nil {
		t.Fatalf("decode %s payload: %v", ev.Type, err)
	}
}

func expectError(t *testing.T, c *Client, code string) {
	t.Helper()
	ev := recvEvent(t, c)
	if ev.Type != EventError {
		t.Fatalf("expected error event, got %s", ev.Type)
	}
	var payload ErrorPayload
	decodePayload(t, ev, &payload)
	if payload.Code != code {
		t.Fatalf("expected error code %s, got %s", code, payload.Code)
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}
