package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const blockedUntilKey = "blocked_until"

// CooldownTracker tracks a temporary publish suspension triggered by a
// platform-side block. While active it refuses every publish regardless of
// the rate limiter; it expires lazily and survives restarts.
type CooldownTracker struct {
	store *Store

	mu           sync.Mutex
	blockedUntil time.Time
}

// NewCooldownTracker loads any persisted cooldown and returns a tracker
func NewCooldownTracker(store *Store) (*CooldownTracker, error) {
	c := &CooldownTracker{store: store}

	raw, err := store.getState(blockedUntilKey)
	if err != nil {
		return nil, fmt.Errorf("loading cooldown state: %w", err)
	}
	if raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			logrus.Warnf("Discarding unparseable cooldown %q: %v", raw, err)
		} else {
			c.blockedUntil = t
		}
	}
	return c, nil
}

// IsBlocked reports whether publishing is currently suspended
func (c *CooldownTracker) IsBlocked(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Before(c.blockedUntil)
}

// TriggerBlock suspends all publishing until now + duration
func (c *CooldownTracker) TriggerBlock(now time.Time, duration time.Duration) {
	until := now.Add(duration)

	c.mu.Lock()
	c.blockedUntil = until
	c.mu.Unlock()

	logrus.Warnf("Publishing suspended until %s", until.Format(time.RFC3339))

	if err := c.store.setState(blockedUntilKey, until.UTC().Format(time.RFC3339)); err != nil {
		logrus.Errorf("Failed to persist cooldown: %v", err)
	}
}

// BlockedUntil returns the suspension deadline, zero if none was ever set
func (c *CooldownTracker) BlockedUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blockedUntil
}
