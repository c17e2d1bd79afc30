// Package tts implements the idle state machine's TTS Unloader/Loader
// ports against the TTS service's admin protocol: GET /health to
// confirm liveness, POST /admin/unload to release the loaded model.
package tts

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// unloadTimeout bounds a single unload/pre-warm call: upstream admin
// requests get 10 seconds total.
const unloadTimeout = 10 * time.Second

// Client talks to one TTS service's admin surface.
type Client struct {
	baseURL string
	client  *http.Client
}

// New constructs a Client against baseURL (e.g. "http://localhost:8802").
//
// Params:
//   - baseURL: the service's base URL, no trailing slash.
//
// Returns:
//   - *Client: the constructed client.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{Timeout: unloadTimeout}}
}

// Unload implements idle.Unloader: POST /admin/unload, 200 on success.
//
// Params:
//   - ctx: governs the request, bounded by unloadTimeout.
//
// Returns:
//   - error: nil on a 200 response, a transport/status error otherwise.
func (c *Client) Unload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, unloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/unload", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts: unload returned %d", resp.StatusCode)
	}
	return nil
}

// Load implements idle.Loader: the upstream protocol has no dedicated
// load endpoint, so pre-warming means waking the process via the same
// health probe the daemon already polls for liveness.
//
// Params:
//   - ctx: governs the request, bounded by unloadTimeout.
//
// Returns:
//   - error: nil on a 200 health response, a transport/status error otherwise.
func (c *Client) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, unloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts: pre-warm health check returned %d", resp.StatusCode)
	}
	return nil
}
