package notify

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/trendscope/trendscope-bot/internal/config"
	"github.com/trendscope/trendscope-bot/internal/models"
)

// Notifier delivers operator-facing alerts (cooldown entered, integrity
// failures). Delivery failures are the caller's to log, never fatal.
type Notifier interface {
	SendAlert(alert *models.Alert) error
}

// Noop drops alerts; used when no channel is configured
type Noop struct{}

func (Noop) SendAlert(*models.Alert) error { return nil }

// Service sends alerts via whichever channels are configured
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

// NewService creates a notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Enabled reports whether any alert channel is configured
func (s *Service) Enabled() bool {
	return (s.config.TelegramBotToken != "" && s.config.TelegramChatID != "") || s.config.AlertEmail != ""
}

// SendAlert delivers the alert to every configured channel
func (s *Service) SendAlert(alert *models.Alert) error {
	var errs []string

	if s.config.TelegramBotToken != "" && s.config.TelegramChatID != "" {
		if err := s.sendTelegram(alert); err != nil {
			logrus.Errorf("Failed to send Telegram alert: %v", err)
			errs = append(errs, fmt.Sprintf("telegram: %v", err))
		}
	}

	if s.config.AlertEmail != "" {
		if err := s.sendEmail(alert); err != nil {
			logrus.Errorf("Failed to send email alert: %v", err)
			errs = append(errs, fmt.Sprintf("email: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("alert delivery errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *Service) sendTelegram(alert *models.Alert) error {
	text := fmt.Sprintf("[%s] %s\n%s", strings.ToUpper(alert.Severity), alert.Title, alert.Message)

	resp, err := s.client.R().
		SetFormData(map[string]string{
			"chat_id": s.config.TelegramChatID,
			"text":    text,
		}).
		Post(fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.config.TelegramBotToken))

	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}

	var parsed telegramResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return fmt.Errorf("telegram response unmarshal: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram API rejected message: %s", parsed.Description)
	}
	return nil
}

func (s *Service) sendEmail(alert *models.Alert) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.AlertEmail)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Severity), alert.Title))
	m.SetBody("text/plain", fmt.Sprintf("%s\n\nAt: %s", alert.Message, alert.CreatedAt.Format(time.RFC3339)))

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("sending alert email: %w", err)
	}
	return nil
}
