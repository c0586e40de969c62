package models

import "testing"

func TestConversationMembership(t *testing.T) {
	c := &Conversation{ID: "conv-1", P1: "alice", P2: "bob"}

	if got := c.Other("alice"); got != "bob" {
		t.Fatalf("Other(alice) = %s, want bob", got)
	}
	if got := c.Other("bob"); got != "alice" {
		t.Fatalf("Other(bob) = %s, want alice", got)
	}

	if !c.Has("alice") || !c.Has("bob") {
		t.Fatal("participants must be members")
	}
	if c.Has("carol") {
		t.Fatal("non-participant must not be a member")
	}
}

func TestUserStatusIsValid(t *testing.T) {
	if !UserOnline.IsValid() || !UserOffline.IsValid() {
		t.Fatal("online and offline are the only valid literals")
	}
	if UserStatus("away").IsValid() {
		t.Fatal("unknown literal must be invalid")
	}
}
