package realtime

import (
	"sync"
	"testing"

	"dm-chat-service/pkg/apperr"
)

// Teardown must never race queued sends into a panic: other connections keep
// broadcasting to a user while one of their connections is being dropped.
func TestSendDuringUnregisterDoesNotPanic(t *testing.T) {
	st := newFakeStore("alice", "bob")
	h := newTestHub(st)

	ev, err := NewEvent(EventUserTyping, &TypingStatePayload{UserID: "bob", IsTyping: true})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}

	for i := 0; i < 200; i++ {
		c := connect(h, "alice")

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_ = c.SendEvent(ev)
				}
			}()
		}
		h.unregisterClient(c)
		wg.Wait()
	}
}

func TestSendEventAfterCloseReturnsDisconnected(t *testing.T) {
	st := newFakeStore("alice")
	h := newTestHub(st)
	c := connect(h, "alice")

	h.unregisterClient(c)

	ev, err := NewEvent(EventUserTyping, &TypingStatePayload{UserID: "bob", IsTyping: true})
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	if err := c.SendEvent(ev); err != ErrClientDisconnected {
		t.Fatalf("expected ErrClientDisconnected, got %v", err)
	}
}

func TestTerminalErrorClosesClient(t *testing.T) {
	st := newFakeStore("alice", "bob")
	h := newTestHub(st)

	alice := connect(h, "alice")
	drain(alice)

	alice.sendError(apperr.CodeTokenExpired, "credential expired")
	if !alice.isClosed() {
		t.Fatal("terminal error code must end the session")
	}
	// The error event is queued ahead of the close so it can still be flushed.
	expectError(t, alice, apperr.CodeTokenExpired.String())

	bob := connect(h, "bob")
	drain(bob)
	bob.sendError(apperr.CodeEmptyMessage, "message content cannot be empty")
	if bob.isClosed() {
		t.Fatal("validation errors must leave the connection open")
	}
}
