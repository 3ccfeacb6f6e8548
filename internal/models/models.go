package models

import (
	"strings"
	"time"
)

// Category classifies a candidate item by feed topic
type Category string

const (
	CategorySports   Category = "sports"
	CategoryBusiness Category = "business"
	CategoryTech     Category = "tech"
	CategoryPolitics Category = "politics"
	CategoryGeneral  Category = "general"
)

// ParseCategory maps a config string to a known category, defaulting to general
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySports:
		return CategorySports
	case CategoryBusiness:
		return CategoryBusiness
	case CategoryTech:
		return CategoryTech
	case CategoryPolitics:
		return CategoryPolitics
	default:
		return CategoryGeneral
	}
}

// CandidateItem is one piece of content discovered during a fetch cycle.
// Items live only for the duration of the cycle; the canonical link is the
// sole identity used for deduplication.
type CandidateItem struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	CanonicalLink string    `json:"canonical_link"`
	ImageURL      string    `json:"image_url"`
	SourceName    string    `json:"source_name"`
	Category      Category  `json:"category"`
	TrendScore    int       `json:"trend_score"` // 0-100
	PublishedAt   time.Time `json:"published_at"`
}

// TransformedPost is the structured output of the content transformer.
// All three fields are guaranteed non-empty by the transformer contract.
type TransformedPost struct {
	Headline     string `json:"headline"`
	BodyFacts    string `json:"body_facts"`
	ShortCaption string `json:"short_caption"`
}

// PublishResult records one confirmed publish for reporting
type PublishResult struct {
	CanonicalLink string    `json:"canonical_link"`
	PostID        string    `json:"post_id"`
	PublishedAt   time.Time `json:"published_at"`
}

// Alert is an out-of-band notification for the operator
type Alert struct {
	Severity  string    `json:"severity"` // "info", "warning", "critical"
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
