// Package history fetches the persisted entropy series from the
// external history store. The store and its retrieval endpoint are
// collaborators; this client only reads.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"alertmesh/pkg/models"
)

// Config configures the history client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client reads the history series over HTTP.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a history client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("history URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Fetch returns the persisted samples in chronological order.
func (c *Client) Fetch(ctx context.Context) ([]models.HistorySample, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("history request failed with status %s", resp.Status)
	}

	var samples []models.HistorySample
	if err := json.NewDecoder(resp.Body).Decode(&samples); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return samples, nil
}
