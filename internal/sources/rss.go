package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/trendscope/trendscope-bot/internal/config"
	"github.com/trendscope/trendscope-bot/internal/models"
)

// RSSSource pulls candidate items from a single RSS/Atom feed
type RSSSource struct {
	name     string
	url      string
	category models.Category
	maxAge   time.Duration
	parser   *gofeed.Parser
}

// NewRSSSource creates a source for one feed config
func NewRSSSource(feed config.FeedConfig, maxAge time.Duration) *RSSSource {
	parser := gofeed.NewParser()
	parser.UserAgent = "TrendScope-Bot/1.0"
	return &RSSSource{
		name:     feed.Name,
		url:      feed.URL,
		category: models.ParseCategory(feed.Category),
		maxAge:   maxAge,
		parser:   parser,
	}
}

func (r *RSSSource) Name() string {
	return r.name
}

func (r *RSSSource) IsEnabled() bool {
	return r.url != ""
}

func (r *RSSSource) Fetch(ctx context.Context) ([]models.CandidateItem, error) {
	feed, err := r.parser.ParseURLWithContext(r.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching feed %s: %w", r.name, err)
	}

	now := time.Now()
	cutoff := now.Add(-r.maxAge)

	items := make([]models.CandidateItem, 0, len(feed.Items))
	for pos, item := range feed.Items {
		if item.Link == "" || item.Title == "" {
			continue
		}

		published := now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		if published.Before(cutoff) {
			continue
		}

		items = append(items, models.CandidateItem{
			ID:            itemID(item.Link),
			Title:         strings.TrimSpace(item.Title),
			Summary:       summarize(item),
			CanonicalLink: canonicalLink(item.Link),
			ImageURL:      itemImage(item),
			SourceName:    r.name,
			Category:      r.category,
			TrendScore:    trendScore(pos, published, now),
			PublishedAt:   published,
		})
	}

	logrus.Debugf("Feed %s returned %d usable items", r.name, len(items))
	return items, nil
}

// FetchAll merges candidates from every enabled source, preserving
// source-then-feed order. A failing source is logged and skipped so one bad
// feed never fails the whole fetch.
func FetchAll(ctx context.Context, srcs []Source) []models.CandidateItem {
	var all []models.CandidateItem
	for _, src := range srcs {
		if !src.IsEnabled() {
			continue
		}
		items, err := src.Fetch(ctx)
		if err != nil {
			logrus.Errorf("Error fetching from %s: %v", src.Name(), err)
			continue
		}
		all = append(all, items...)
	}
	return all
}

func itemID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:8])
}

// canonicalLink strips tracking query parameters and fragments so the same
// article discovered via different share links dedupes to one identity
func canonicalLink(link string) string {
	link = strings.TrimSpace(link)

	u, err := url.Parse(link)
	if err != nil {
		if i := strings.IndexByte(link, '#'); i >= 0 {
			link = link[:i]
		}
		return strings.TrimRight(link, "/")
	}

	u.Fragment = ""
	query := u.Query()
	for key := range query {
		if strings.HasPrefix(key, "utm_") {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

func summarize(item *gofeed.Item) string {
	desc := item.Description
	if desc == "" {
		desc = item.Content
	}
	return truncate(stripHTML(desc), 300)
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

// trendScore ranks an item 0-100 by feed position and recency. Feeds put
// their hottest stories first, so position dominates.
func trendScore(pos int, published, now time.Time) int {
	score := 100 - pos*5
	if score < 10 {
		score = 10
	}

	age := now.Sub(published)
	switch {
	case age > 12*time.Hour:
		score -= 30
	case age > 6*time.Hour:
		score -= 15
	case age > 2*time.Hour:
		score -= 5
	}

	if score < 0 {
		score = 0
	}
	return score
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n-3])) + "..."
}
