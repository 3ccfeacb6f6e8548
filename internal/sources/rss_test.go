package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendscope/trendscope-bot/internal/config"
	"github.com/trendscope/trendscope-bot/internal/models"
)

func rssFeed(items string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title>%s</channel></rss>`, items)
}

func rssItem(title, link string, published time.Time) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link>
<description>Some description for %s</description>
<pubDate>%s</pubDate></item>`, title, link, title, published.Format(time.RFC1123Z))
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSSSource_Fetch(t *testing.T) {
	now := time.Now()
	server := serveFeed(t, rssFeed(
		rssItem("First story", "https://example.com/a?utm_source=rss", now.Add(-1*time.Hour))+
			rssItem("Second story", "https://example.com/b/", now.Add(-3*time.Hour)),
	))

	src := NewRSSSource(config.FeedConfig{Name: "test", URL: server.URL, Category: "sports"}, 24*time.Hour)
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Feed order preserved
	assert.Equal(t, "First story", items[0].Title)
	assert.Equal(t, "Second story", items[1].Title)

	// Canonical links are normalized
	assert.Equal(t, "https://example.com/a", items[0].CanonicalLink)
	assert.Equal(t, "https://example.com/b", items[1].CanonicalLink)

	assert.Equal(t, "test", items[0].SourceName)
	assert.Equal(t, models.CategorySports, items[0].Category)
	assert.NotEmpty(t, items[0].Summary)

	// Fresher, earlier-positioned item scores higher
	assert.Greater(t, items[0].TrendScore, items[1].TrendScore)
}

func TestRSSSource_SkipsStaleItems(t *testing.T) {
	now := time.Now()
	server := serveFeed(t, rssFeed(
		rssItem("Fresh", "https://example.com/fresh", now.Add(-time.Hour))+
			rssItem("Stale", "https://example.com/stale", now.Add(-48*time.Hour)),
	))

	src := NewRSSSource(config.FeedConfig{Name: "test", URL: server.URL}, 24*time.Hour)
	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Fresh", items[0].Title)
}

func TestRSSSource_FetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	src := NewRSSSource(config.FeedConfig{Name: "broken", URL: server.URL}, 24*time.Hour)
	_, err := src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestFetchAll_BadFeedIsolated(t *testing.T) {
	now := time.Now()
	good := serveFeed(t, rssFeed(rssItem("Only story", "https://example.com/x", now)))
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(bad.Close)

	srcs := []Source{
		NewRSSSource(config.FeedConfig{Name: "bad", URL: bad.URL}, 24*time.Hour),
		NewRSSSource(config.FeedConfig{Name: "good", URL: good.URL}, 24*time.Hour),
	}

	items := FetchAll(context.Background(), srcs)
	require.Len(t, items, 1)
	assert.Equal(t, "Only story", items[0].Title)
}

func TestFetchAll_PreservesSourceOrder(t *testing.T) {
	now := time.Now()
	first := serveFeed(t, rssFeed(rssItem("A1", "https://example.com/a1", now)+rssItem("A2", "https://example.com/a2", now)))
	second := serveFeed(t, rssFeed(rssItem("B1", "https://example.com/b1", now)))

	srcs := []Source{
		NewRSSSource(config.FeedConfig{Name: "first", URL: first.URL}, 24*time.Hour),
		NewRSSSource(config.FeedConfig{Name: "second", URL: second.URL}, 24*time.Hour),
	}

	items := FetchAll(context.Background(), srcs)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"A1", "A2", "B1"}, []string{items[0].Title, items[1].Title, items[2].Title})
}

func TestCanonicalLink(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain", input: "https://example.com/a", expected: "https://example.com/a"},
		{name: "trailing slash", input: "https://example.com/a/", expected: "https://example.com/a"},
		{name: "fragment", input: "https://example.com/a#section", expected: "https://example.com/a"},
		{name: "utm params", input: "https://example.com/a?utm_source=x&utm_medium=y", expected: "https://example.com/a"},
		{name: "tracking after real params", input: "https://example.com/a?id=3&utm_source=x", expected: "https://example.com/a?id=3"},
		{name: "tracking before real params", input: "https://example.com/a?utm_source=x&page=2", expected: "https://example.com/a?page=2"},
		{name: "whitespace", input: "  https://example.com/a  ", expected: "https://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, canonicalLink(tt.input))
		})
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "tags removed", input: "<p>Hello <b>world</b></p>", expected: "Hello world"},
		{name: "entities decoded", input: "Rock &amp; roll &quot;live&quot;", expected: `Rock & roll "live"`},
		{name: "whitespace collapsed", input: "a\n\n  b\tc", expected: "a b c"},
		{name: "plain text untouched", input: "plain text", expected: "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripHTML(tt.input))
		})
	}
}

func TestTrendScore(t *testing.T) {
	now := time.Now()

	// Top of feed, fresh: max score
	assert.Equal(t, 100, trendScore(0, now.Add(-30*time.Minute), now))

	// Position pushes the score down
	assert.Greater(t, trendScore(0, now, now), trendScore(5, now, now))

	// Age pushes the score down
	assert.Greater(t, trendScore(0, now.Add(-time.Hour), now), trendScore(0, now.Add(-10*time.Hour), now))

	// Never below zero
	assert.GreaterOrEqual(t, trendScore(30, now.Add(-20*time.Hour), now), 0)
}
