package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Instagram rejects publishing with this code/subcode pair when the account
// is temporarily action-blocked
const (
	blockedErrorCode    = 24
	blockedErrorSubcode = 2207051
)

// BlockedError signals a platform-side action block. The orchestrator reacts
// by entering a cooldown; this client only classifies.
type BlockedError struct {
	Phase   string
	Message string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("instagram action blocked during %s: %s", e.Phase, e.Message)
}

// IsBlocked reports whether err carries a platform block signal
func IsBlocked(err error) bool {
	var blocked *BlockedError
	return errors.As(err, &blocked)
}

// InstagramClient publishes photos via the Instagram Graph API using the
// two-phase container protocol. It is a pure protocol client: all state
// (cooldown, dedup, rate limit) lives with the caller.
type InstagramClient struct {
	userID      string
	accessToken string
	baseURL     string
	settleDelay time.Duration
	client      *resty.Client
}

// NewInstagramClient creates a Graph API client for one account.
// settleDelay is the required wait between creating a media container and
// publishing it; the platform needs that time to fetch and process the asset.
func NewInstagramClient(userID, accessToken string, settleDelay time.Duration) *InstagramClient {
	return &InstagramClient{
		userID:      userID,
		accessToken: accessToken,
		baseURL:     "https://graph.facebook.com/v19.0",
		settleDelay: settleDelay,
		client: resty.New().
			SetTimeout(60*time.Second).
			SetHeader("User-Agent", "TrendScope-Bot/1.0"),
	}
}

type graphResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Message      string `json:"message"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// PublishPhoto runs create, settle wait, publish. Returns the published post
// ID. A failed create is never retried here: each create call may allocate a
// new container, so retry is deferred to the next cycle's re-discovery.
func (c *InstagramClient) PublishPhoto(ctx context.Context, imageURL, caption string) (string, error) {
	creationID, err := c.CreateContainer(ctx, imageURL, caption)
	if err != nil {
		return "", err
	}

	logrus.Debugf("Media container %s created, settling for %s", creationID, c.settleDelay)
	if err := c.settle(ctx); err != nil {
		return "", err
	}

	return c.Publish(ctx, creationID)
}

// CreateContainer submits the asset and caption, returning a creation ID
func (c *InstagramClient) CreateContainer(ctx context.Context, imageURL, caption string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"image_url":    imageURL,
			"caption":      caption,
			"access_token": c.accessToken,
		}).
		Post(fmt.Sprintf("%s/%s/media", c.baseURL, c.userID))

	if err != nil {
		return "", fmt.Errorf("instagram create request failed: %w", err)
	}

	return c.parseResponse("create", resp.Body())
}

// Publish submits the creation ID, returning the published post ID
func (c *InstagramClient) Publish(ctx context.Context, creationID string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"creation_id":  creationID,
			"access_token": c.accessToken,
		}).
		Post(fmt.Sprintf("%s/%s/media_publish", c.baseURL, c.userID))

	if err != nil {
		return "", fmt.Errorf("instagram publish request failed: %w", err)
	}

	return c.parseResponse("publish", resp.Body())
}

// settle waits the required pre-publish delay, honoring cancellation
func (c *InstagramClient) settle(ctx context.Context) error {
	timer := time.NewTimer(c.settleDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *InstagramClient) parseResponse(phase string, body []byte) (string, error) {
	var parsed graphResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("instagram %s response unmarshal: %w", phase, err)
	}

	if parsed.Error != nil {
		if parsed.Error.Code == blockedErrorCode && parsed.Error.ErrorSubcode == blockedErrorSubcode {
			return "", &BlockedError{Phase: phase, Message: parsed.Error.Message}
		}
		return "", fmt.Errorf("instagram %s error %d/%d: %s",
			phase, parsed.Error.Code, parsed.Error.ErrorSubcode, parsed.Error.Message)
	}

	if parsed.ID == "" {
		return "", fmt.Errorf("instagram %s returned no id", phase)
	}
	return parsed.ID, nil
}
