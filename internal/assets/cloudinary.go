package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Uploader publishes a rendered asset to public hosting and returns its URL
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// CloudinaryUploader uploads renders to Cloudinary via an unsigned preset
type CloudinaryUploader struct {
	cloudName string
	preset    string
	baseURL   string
	client    *resty.Client
}

// Ensure CloudinaryUploader implements Uploader
var _ Uploader = (*CloudinaryUploader)(nil)

// NewCloudinaryUploader creates an uploader for the given cloud and preset
func NewCloudinaryUploader(cloudName, preset string) *CloudinaryUploader {
	return &CloudinaryUploader{
		cloudName: cloudName,
		preset:    preset,
		baseURL:   "https://api.cloudinary.com",
		client: resty.New().
			SetTimeout(60*time.Second).
			SetHeader("User-Agent", "TrendScope-Bot/1.0"),
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload sends the file and returns its public URL
func (u *CloudinaryUploader) Upload(ctx context.Context, localPath string) (string, error) {
	resp, err := u.client.R().
		SetContext(ctx).
		SetFile("file", localPath).
		SetFormData(map[string]string{"upload_preset": u.preset}).
		Post(fmt.Sprintf("%s/v1_1/%s/image/upload", u.baseURL, u.cloudName))

	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %w", err)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("cloudinary response unmarshal: %w", err)
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("cloudinary returned status %d: %s", resp.StatusCode(), parsed.Error.Message)
	}

	if parsed.SecureURL == "" && parsed.URL == "" {
		return "", fmt.Errorf("cloudinary returned no public URL")
	}
	if parsed.SecureURL != "" {
		return parsed.SecureURL, nil
	}
	return parsed.URL, nil
}
