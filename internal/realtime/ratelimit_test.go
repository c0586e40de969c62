package realtime

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3, 100*time.Millisecond)

	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if rl.allow() {
		t.Fatal("fourth request in the window should be refused")
	}

	time.Sleep(120 * time.Millisecond)
	if !rl.allow() {
		t.Fatal("window expiry should reset the counter")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0, time.Second)
	for i := 0; i < 1000; i++ {
		if !rl.allow() {
			t.Fatal("zero limit must never refuse")
		}
	}
}
