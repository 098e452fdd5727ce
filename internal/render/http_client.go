package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig configures the HTTP renderer client.
type HTTPConfig struct {
	ServiceURL string        `yaml:"service_url" json:"service_url"`
	AuthToken  string        `yaml:"auth_token" json:"auth_token"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	RetryCount int           `yaml:"retry_count" json:"retry_count"`
	WaitMs     int           `yaml:"wait_ms" json:"wait_ms"`
	Viewport   Viewport      `yaml:"viewport" json:"viewport"`
}

// DefaultHTTPConfig returns sensible defaults for HTTPClient.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:    15 * time.Second,
		RetryCount: 2,
		WaitMs:     500,
		Viewport:   Viewport{Width: 1366, Height: 768},
	}
}

// HTTPClient implements Renderer by POSTing a Request to a configured
// headless-browser rendering service.
type HTTPClient struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPClient constructs an HTTPClient.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Render posts url to the rendering service and returns the resulting
// HTML, retrying transient failures with linear backoff.
func (c *HTTPClient) Render(ctx context.Context, url string) (string, error) {
	payload, err := json.Marshal(Request{
		URL:           url,
		WaitMs:        c.cfg.WaitMs,
		Viewport:      c.cfg.Viewport,
		RemoveScripts: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal render request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		html, err := c.post(ctx, payload)
		if err == nil {
			return html, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("render %s: %w", url, lastErr)
}

func (c *HTTPClient) post(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ServiceURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("render service returned status %d: %s", resp.StatusCode, string(body))
	}

	return parseBody(resp.Header.Get("Content-Type"), body), nil
}

// parseBody accepts either a JSON {"html": "..."} body or a raw HTML
// body, per the renderer wire contract.
func parseBody(contentType string, body []byte) string {
	if strings.Contains(contentType, "application/json") {
		var resp Response
		if err := json.Unmarshal(body, &resp); err == nil && resp.HTML != "" {
			return resp.HTML
		}
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err == nil && resp.HTML != "" {
		return resp.HTML
	}
	return string(body)
}
