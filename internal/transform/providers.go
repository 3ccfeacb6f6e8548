package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Provider is one AI backend in the fallback chain. Generate returns the raw
// model text for a prompt; the transformer owns parsing and normalization.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
	IsEnabled() bool
}

func newClient() *resty.Client {
	return resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", "TrendScope-Bot/1.0")
}

// GeminiProvider calls the Google Generative Language REST API
type GeminiProvider struct {
	apiKey string
	model  string
	client *resty.Client
}

// NewGeminiProvider creates the Gemini provider
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
		model:  "gemini-2.0-flash",
		client: newClient(),
	}
}

func (g *GeminiProvider) Name() string    { return "gemini" }
func (g *GeminiProvider) IsEnabled() bool { return g.apiKey != "" }

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		Post(fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", g.model))

	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode())
	}

	var parsed geminiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("gemini response unmarshal: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

// chatCompletionProvider covers the OpenAI-compatible chat completion APIs
// (Groq and OpenRouter share the wire format)
type chatCompletionProvider struct {
	name     string
	apiKey   string
	model    string
	endpoint string
	client   *resty.Client
}

// NewGroqProvider creates the Groq provider
func NewGroqProvider(apiKey string) Provider {
	return &chatCompletionProvider{
		name:     "groq",
		apiKey:   apiKey,
		model:    "llama-3.1-70b-versatile",
		endpoint: "https://api.groq.com/openai/v1/chat/completions",
		client:   newClient(),
	}
}

// NewOpenRouterProvider creates the OpenRouter provider
func NewOpenRouterProvider(apiKey string) Provider {
	return &chatCompletionProvider{
		name:     "openrouter",
		apiKey:   apiKey,
		model:    "openai/gpt-4o-mini",
		endpoint: "https://openrouter.ai/api/v1/chat/completions",
		client:   newClient(),
	}
}

func (p *chatCompletionProvider) Name() string    { return p.name }
func (p *chatCompletionProvider) IsEnabled() bool { return p.apiKey != "" }

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *chatCompletionProvider) Generate(ctx context.Context, prompt string) (string, error) {
	body := map[string]interface{}{
		"model":       p.model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": 0.6,
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(p.apiKey).
		SetBody(body).
		Post(p.endpoint)

	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", p.name, err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("%s returned status %d", p.name, resp.StatusCode())
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("%s response unmarshal: %w", p.name, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s returned no choices", p.name)
	}
	return parsed.Choices[0].Message.Content, nil
}
