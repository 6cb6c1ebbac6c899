package translate

import (
	"sync"
	"time"
)

// DefaultCooldown is how long a rate-limited backend is skipped before the
// router dispatches to it again.
const DefaultCooldown = 60 * time.Second

// cooldownTracker records per-backend rate-limit cooldowns. A backend with
// an active cooldown must not be dispatched to until the window expires.
type cooldownTracker struct {
	mu       sync.Mutex
	until    map[string]time.Time
	duration time.Duration
	now      func() time.Time
}

func newCooldownTracker(duration time.Duration) *cooldownTracker {
	if duration <= 0 {
		duration = DefaultCooldown
	}
	return &cooldownTracker{
		until:    make(map[string]time.Time),
		duration: duration,
		now:      time.Now,
	}
}

// trip starts (or restarts) the cooldown window for a backend.
func (c *cooldownTracker) trip(name string) {
	c.mu.Lock()
	c.until[name] = c.now().Add(c.duration)
	c.mu.Unlock()
}

// active reports whether the backend is still inside its cooldown window.
func (c *cooldownTracker) active(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := c.until[name]
	if !ok {
		return false
	}
	if c.now().Before(deadline) {
		return true
	}
	delete(c.until, name)
	return false
}

// remaining returns the time left in the backend's cooldown window, or zero.
func (c *cooldownTracker) remaining(name string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := c.until[name]
	if !ok {
		return 0
	}
	left := deadline.Sub(c.now())
	if left < 0 {
		return 0
	}
	return left
}
