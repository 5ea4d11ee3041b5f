package auth

import (
	"sync"
	"testing"
	"time"
)

const (
	aliceID = "3b241101-e2bb-4255-8caf-4136c566a962"
	bobID   = "6fa459ea-ee8a-3ca4-894e-db77e160355e"
)

var testKey = SigningKey("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(testKey, CodecConfig{Now: clock.Now})
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

func mustIdentity(t *testing.T, userID string, roles ...string) Identity {
	t.Helper()
	id, err := NewIdentity(userID, roles...)
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	return id
}
