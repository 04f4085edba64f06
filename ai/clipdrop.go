package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const clipDropBaseURL = "https://clipdrop-api.co"

// ClipDropClient calls the ClipDrop text-to-image REST API. The vendor has no
// Go SDK; the API takes a multipart form with a single "prompt" field and
// returns raw PNG bytes.
type ClipDropClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClipDropClient(apiKey string) *ClipDropClient {
	return &ClipDropClient{
		APIKey:  apiKey,
		BaseURL: clipDropBaseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *ClipDropClient) TextToImage(ctx context.Context, prompt string) ([]byte, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("prompt", prompt); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/text-to-image/v1", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clipdrop request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("clipdrop returned %d: %s", res.StatusCode, string(msg))
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no image data received from clipdrop")
	}

	return data, nil
}
