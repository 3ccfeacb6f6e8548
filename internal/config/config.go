package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FeedConfig describes one RSS feed to poll
type FeedConfig struct {
	Name     string
	URL      string
	Category string
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	PublishInterval time.Duration
	TimeZone        string

	// Publish pacing
	MinPublishGap    time.Duration
	CooldownDuration time.Duration
	SettleDelay      time.Duration
	QuietHoursStart  int // hour of day, local to TimeZone
	QuietHoursEnd    int

	// Feeds to poll
	Feeds      []FeedConfig
	MaxItemAge time.Duration

	// Durable state
	DatabasePath string

	// AI provider keys (any subset may be set)
	GeminiAPIKey     string
	GroqAPIKey       string
	OpenRouterAPIKey string

	// Image rendering
	OutputDir string
	FontPath  string
	BrandName string

	// Cloudinary upload
	CloudinaryCloud  string
	CloudinaryPreset string

	// Instagram Graph API
	InstagramUserID      string
	InstagramAccessToken string

	// Operator alerts
	TelegramBotToken string
	TelegramChatID   string
	AlertEmail       string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		PublishInterval: getDurationEnv("PUBLISH_INTERVAL", 5*time.Minute),
		TimeZone:        getEnv("TIMEZONE", "Asia/Kolkata"),

		MinPublishGap:    getDurationEnv("MIN_PUBLISH_GAP", 15*time.Minute),
		CooldownDuration: getDurationEnv("COOLDOWN_DURATION", 60*time.Minute),
		SettleDelay:      getDurationEnv("SETTLE_DELAY", 30*time.Second),
		QuietHoursStart:  getIntEnv("QUIET_HOURS_START", 1),
		QuietHoursEnd:    getIntEnv("QUIET_HOURS_END", 6),

		Feeds:      parseFeeds(getSliceEnv("FEEDS", defaultFeeds())),
		MaxItemAge: getDurationEnv("MAX_ITEM_AGE", 24*time.Hour),

		DatabasePath: getEnv("DATABASE_PATH", "trendscope.db"),

		GeminiAPIKey:     getEnv("GOOGLE_API_KEY", ""),
		GroqAPIKey:       getEnv("GROQ_API_KEY", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),

		OutputDir: getEnv("OUTPUT_DIR", "images/output"),
		FontPath:  getEnv("FONT_PATH", ""),
		BrandName: getEnv("BRAND_NAME", "TrendScope"),

		CloudinaryCloud:  getEnv("CLOUDINARY_CLOUD", ""),
		CloudinaryPreset: getEnv("CLOUDINARY_PRESET", ""),

		InstagramUserID:      getEnv("IG_USER_ID", ""),
		InstagramAccessToken: getEnv("IG_ACCESS_TOKEN", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertEmail:       getEnv("ALERT_EMAIL", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getIntEnv("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.InstagramUserID == "" || c.InstagramAccessToken == "" {
		return fmt.Errorf("IG_USER_ID and IG_ACCESS_TOKEN are required")
	}

	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed must be configured via FEEDS")
	}

	if c.QuietHoursStart < 0 || c.QuietHoursStart > 23 || c.QuietHoursEnd < 0 || c.QuietHoursEnd > 23 {
		return fmt.Errorf("quiet hours must be within 0-23")
	}

	if c.MinPublishGap <= 0 {
		return fmt.Errorf("MIN_PUBLISH_GAP must be positive")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}

	if c.AlertEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when ALERT_EMAIL is set")
		}
	}

	return nil
}

// parseFeeds parses "name|url|category" triples
func parseFeeds(entries []string) []FeedConfig {
	var feeds []FeedConfig
	for _, entry := range entries {
		parts := strings.SplitN(strings.TrimSpace(entry), "|", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		feed := FeedConfig{Name: parts[0], URL: parts[1]}
		if len(parts) == 3 {
			feed.Category = parts[2]
		}
		feeds = append(feeds, feed)
	}
	return feeds
}

func defaultFeeds() []string {
	return []string{
		"bbc-sport|https://feeds.bbci.co.uk/sport/rss.xml|sports",
		"ndtv-sports|https://sports.ndtv.com/rss/all|sports",
		"toi-top|https://timesofindia.indiatimes.com/rssfeedstopstories.cms|general",
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
