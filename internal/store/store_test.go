package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestDedupStore_HasAndCommit(t *testing.T) {
	s, _ := openTestStore(t)
	dedup := NewDedupStore(s)

	link := "https://example.com/news/1"
	publishedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, dedup.Has(link))

	require.NoError(t, dedup.Commit(link, publishedAt))
	assert.True(t, dedup.Has(link))
	assert.Equal(t, 1, dedup.Count())

	// Committing twice is a no-op
	require.NoError(t, dedup.Commit(link, publishedAt.Add(time.Minute)))
	assert.Equal(t, 1, dedup.Count())
}

func TestDedupStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewDedupStore(s).Commit("https://example.com/a", time.Now()))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	assert.True(t, NewDedupStore(s2).Has("https://example.com/a"))
	assert.False(t, NewDedupStore(s2).Has("https://example.com/b"))
}

func TestRateLimiter_Gap(t *testing.T) {
	s, _ := openTestStore(t)
	limiter, err := NewRateLimiter(s, 15*time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Never published: always clear
	assert.True(t, limiter.CanPublishNow(now))

	limiter.RecordPublish(now)

	assert.False(t, limiter.CanPublishNow(now))
	assert.False(t, limiter.CanPublishNow(now.Add(14*time.Minute)))
	assert.True(t, limiter.CanPublishNow(now.Add(15*time.Minute)))
	assert.True(t, limiter.CanPublishNow(now.Add(2*time.Hour)))
}

func TestRateLimiter_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	limiter, err := NewRateLimiter(s, 15*time.Minute)
	require.NoError(t, err)
	limiter.RecordPublish(now)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	reloaded, err := NewRateLimiter(s2, 15*time.Minute)
	require.NoError(t, err)

	assert.False(t, reloaded.CanPublishNow(now.Add(5*time.Minute)))
	assert.True(t, reloaded.CanPublishNow(now.Add(16*time.Minute)))
}

func TestCooldownTracker_BlockAndLazyExpiry(t *testing.T) {
	s, _ := openTestStore(t)
	cooldown, err := NewCooldownTracker(s)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, cooldown.IsBlocked(now))

	cooldown.TriggerBlock(now, time.Hour)

	assert.True(t, cooldown.IsBlocked(now))
	assert.True(t, cooldown.IsBlocked(now.Add(59*time.Minute)))
	assert.False(t, cooldown.IsBlocked(now.Add(time.Hour)))
}

func TestCooldownTracker_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	cooldown, err := NewCooldownTracker(s)
	require.NoError(t, err)
	cooldown.TriggerBlock(now, time.Hour)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	reloaded, err := NewCooldownTracker(s2)
	require.NoError(t, err)

	assert.True(t, reloaded.IsBlocked(now.Add(30*time.Minute)))
	assert.False(t, reloaded.IsBlocked(now.Add(2*time.Hour)))
}
