package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Detection is one flagged file, as reported to the gateway.
type Detection struct {
	MachineID    string  `json:"machineId"`
	FileName     string  `json:"fileName"`
	EntropyScore float64 `json:"entropyScore"`
	HexDump      string  `json:"hexDump,omitempty"`
	Status       string  `json:"status"`
	Timestamp    int64   `json:"timestamp"`
}

// UplinkConfig configures the gateway uplink.
type UplinkConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Uplink posts detections to the ingestion gateway.
type Uplink struct {
	url    string
	secret string
	client *http.Client
}

// NewUplink creates a gateway uplink.
func NewUplink(cfg UplinkConfig) (*Uplink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("uplink URL is empty")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("uplink secret is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Uplink{
		url:    cfg.URL,
		secret: cfg.Secret,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Send posts one detection. The gateway decides what reaches the
// dashboards; the agent never retries.
func (u *Uplink) Send(ctx context.Context, d Detection) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal detection: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", u.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-agent-secret", u.secret)

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("uplink request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("uplink request failed with status %s", resp.Status)
	}
	return nil
}
