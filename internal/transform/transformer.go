package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trendscope/trendscope-bot/internal/models"
)

const (
	fallbackHeadline = "TRENDING NEWS UPDATE"
	fallbackBody     = "Stay tuned for updates"
	captionSuffix    = " | Follow for more"

	maxHeadlineWords = 8
	maxBodyChars     = 220
)

const promptTemplate = `Act as a viral news editor for an Indian audience.

Return ONLY JSON:
{
  "headline": "MAX 8 words punchy hook",
  "body_facts": "2-4 short lines with the key facts",
  "short_caption": "1-line caption with an emoji punch"
}

Context:
%s`

// Transformer converts raw item text into a structured post via an ordered
// chain of AI providers with automatic fallback. Transform is a total
// function: it never fails and every output field is non-empty.
type Transformer struct {
	providers []Provider
}

// NewTransformer builds the chain in fallback order. Disabled providers
// (missing API key) are dropped up front.
func NewTransformer(providers ...Provider) *Transformer {
	enabled := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p.IsEnabled() {
			enabled = append(enabled, p)
		} else {
			logrus.Debugf("AI provider %s disabled, skipping", p.Name())
		}
	}
	return &Transformer{providers: enabled}
}

// Transform runs the provider chain over rawText. Each provider's output goes
// through the same normalizer; the first usable result wins. If every
// provider fails, the deterministic fallback is used, so the caller always
// gets a complete post.
func (t *Transformer) Transform(ctx context.Context, rawText string) models.TransformedPost {
	prompt := fmt.Sprintf(promptTemplate, rawText)
	defaults := deterministicPost(rawText)

	for _, provider := range t.providers {
		raw, err := provider.Generate(ctx, prompt)
		if err != nil {
			logrus.Warnf("AI provider %s failed, trying next: %v", provider.Name(), err)
			continue
		}

		post, ok := normalize(raw, defaults)
		if !ok {
			logrus.Warnf("AI provider %s returned unusable output, trying next", provider.Name())
			continue
		}

		logrus.Debugf("Transformed via %s", provider.Name())
		return post
	}

	return defaults
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// normalize extracts the first {...} block from raw model output, parses it,
// and fills any missing or empty field from the deterministic defaults.
// Returns ok=false only when no JSON object can be parsed at all.
func normalize(raw string, defaults models.TransformedPost) (models.TransformedPost, bool) {
	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return models.TransformedPost{}, false
	}

	var parsed struct {
		Headline     string `json:"headline"`
		BodyFacts    string `json:"body_facts"`
		ShortCaption string `json:"short_caption"`
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return models.TransformedPost{}, false
	}

	post := models.TransformedPost{
		Headline:     strings.TrimSpace(parsed.Headline),
		BodyFacts:    strings.TrimSpace(parsed.BodyFacts),
		ShortCaption: strings.TrimSpace(parsed.ShortCaption),
	}

	// Partial-success merging: keep whatever the model got right
	if post.Headline == "" {
		post.Headline = defaults.Headline
	}
	if post.BodyFacts == "" {
		post.BodyFacts = defaults.BodyFacts
	}
	if post.ShortCaption == "" {
		post.ShortCaption = post.Headline + captionSuffix
	}

	return post, true
}

// deterministicPost derives a complete post from the raw text alone
func deterministicPost(rawText string) models.TransformedPost {
	words := strings.Fields(rawText)

	headline := fallbackHeadline
	if len(words) > 0 {
		n := len(words)
		if n > maxHeadlineWords {
			n = maxHeadlineWords
		}
		headline = strings.ToUpper(strings.Join(words[:n], " "))
	}

	body := fallbackBody
	if trimmed := strings.TrimSpace(rawText); trimmed != "" {
		body = truncate(trimmed, maxBodyChars)
	}

	return models.TransformedPost{
		Headline:     headline,
		BodyFacts:    body,
		ShortCaption: headline + captionSuffix,
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n-3])) + "..."
}
