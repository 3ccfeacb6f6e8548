package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const lastPublishKey = "last_publish_at"

// RateLimiter enforces the minimum gap between any two publishes, independent
// of which item is being published. The last publish time is persisted on
// every update so the gap survives restarts.
type RateLimiter struct {
	store  *Store
	minGap time.Duration

	mu            sync.Mutex
	lastPublishAt time.Time
}

// NewRateLimiter loads the persisted last publish time and returns a limiter
func NewRateLimiter(store *Store, minGap time.Duration) (*RateLimiter, error) {
	r := &RateLimiter{store: store, minGap: minGap}

	raw, err := store.getState(lastPublishKey)
	if err != nil {
		return nil, fmt.Errorf("loading rate limit state: %w", err)
	}
	if raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			logrus.Warnf("Discarding unparseable last publish time %q: %v", raw, err)
		} else {
			r.lastPublishAt = t
		}
	}
	return r, nil
}

// CanPublishNow reports whether the minimum gap has elapsed since the last
// confirmed publish (always true if nothing has been published yet)
func (r *RateLimiter) CanPublishNow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastPublishAt.IsZero() {
		return true
	}
	return now.Sub(r.lastPublishAt) >= r.minGap
}

// RecordPublish marks a confirmed publish at now. Must be called only after
// the platform confirmed success, never on a failure path.
func (r *RateLimiter) RecordPublish(now time.Time) {
	r.mu.Lock()
	r.lastPublishAt = now
	r.mu.Unlock()

	if err := r.store.setState(lastPublishKey, now.UTC().Format(time.RFC3339)); err != nil {
		logrus.Errorf("Failed to persist last publish time: %v", err)
	}
}

// LastPublishAt returns the last confirmed publish time, zero if none
func (r *RateLimiter) LastPublishAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPublishAt
}
