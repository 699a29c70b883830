package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedWindowRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewFixedWindowLimiter(2, 5*time.Second)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, retry := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 4*time.Second, retry)

	// other keys have their own window
	ok, _ = rl.Allow("5.6.7.8")
	assert.True(t, ok)

	now = now.Add(4 * time.Second)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)
}

func TestFixedWindowRateLimiter_Evict(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewFixedWindowLimiter(1, time.Second)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	now = now.Add(500 * time.Millisecond)
	rl.Allow("b")

	now = now.Add(600 * time.Millisecond)
	rl.evict()

	assert.NotContains(t, rl.clients, "a")
	assert.Contains(t, rl.clients, "b")
}
