// Package totp fetches one-time passcodes from the local TOTP provider.
package totp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
)

// DefaultURL is where the sidecar provider listens in the compose setup.
const DefaultURL = "http://host.docker.internal:8001/totp"

// DefaultTimeout bounds each passcode fetch. The code rotates every 30s, so
// a slow fetch is as bad as a failed one.
const DefaultTimeout = 5 * time.Second

// Code is one passcode response from the provider.
type Code struct {
	TOTP    string `json:"totp"`
	Account string `json:"account,omitempty"`
}

// Client fetches passcodes over HTTP.
type Client struct {
	url    string
	http   *http.Client
	logger ectologger.Logger
}

// NewClient creates a TOTP client. Empty url falls back to DefaultURL.
func NewClient(url string, timeout time.Duration, logger ectologger.Logger) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch retrieves a fresh passcode.
func (c *Client) Fetch(ctx context.Context) (*Code, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create totp request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("totp fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("totp provider returned %d", resp.StatusCode)
	}

	var code Code
	if err := json.NewDecoder(resp.Body).Decode(&code); err != nil {
		return nil, fmt.Errorf("failed to decode totp response: %w", err)
	}
	if code.TOTP == "" {
		return nil, fmt.Errorf("totp provider returned empty passcode")
	}
	return &code, nil
}

// Ping checks provider reachability for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Fetch(ctx)
	return err
}
