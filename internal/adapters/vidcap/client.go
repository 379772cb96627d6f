// Package vidcap is a client for the vidcap.xyz captioning API.
package vidcap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches YouTube captions through the vidcap HTTP API.
// Empty caption content is reported as ("", nil): an absent caption is an
// expected outcome, not an error.
type Client struct {
	baseURL string
	apiKey  string
	locale  string
	client  *http.Client
}

func NewClient(baseURL, apiKey, locale string) *Client {
	if baseURL == "" {
		baseURL = "https://vidcap.xyz"
	}
	if locale == "" {
		locale = "ko"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		locale:  locale,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type captionResponse struct {
	Data struct {
		Content string `json:"content"`
	} `json:"data"`
}

// FetchCaption returns the caption text for a video URL in the configured
// locale.
func (c *Client) FetchCaption(ctx context.Context, videoURL string) (string, error) {
	q := url.Values{}
	q.Set("url", videoURL)
	q.Set("locale", c.locale)

	endpoint := fmt.Sprintf("%s/api/v1/youtube/caption?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption API call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption API returned status %d", resp.StatusCode)
	}

	var result captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode caption response: %w", err)
	}

	return result.Data.Content, nil
}
