// Package llm implements the idle state machine's LLM-runtime Unloader
// port against the runtime's management protocol: GET /api/ps to
// list loaded models, then POST /api/generate with keep_alive:0 per
// model to trigger its unload. The runtime is never pre-warmed: it
// loads lazily on first request, so this package has no Loader.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// unloadTimeout bounds the whole unload sequence.
const unloadTimeout = 10 * time.Second

// Client talks to one Ollama-compatible LLM runtime's management API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New constructs a Client against baseURL (e.g. "http://localhost:11434").
//
// Params:
//   - baseURL: the runtime's base URL, no trailing slash.
//
// Returns:
//   - *Client: the constructed client.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{Timeout: unloadTimeout}}
}

// psModel is one entry of GET /api/ps's loaded-model list.
type psModel struct {
	Name string `json:"name"`
}

type psResponse struct {
	Models []psModel `json:"models"`
}

// generateRequest triggers an unload when KeepAlive is the zero duration.
type generateRequest struct {
	Model     string `json:"model"`
	KeepAlive int    `json:"keep_alive"`
}

// Unload implements idle.Unloader: list currently loaded models via
// GET /api/ps, then unload each with POST /api/generate{keep_alive:0}.
// A model that fails to unload does not abort the rest of the list; the
// first error (if any) is returned to the caller for logging.
//
// Params:
//   - ctx: governs the whole unload sequence, bounded by unloadTimeout.
//
// Returns:
//   - error: nil if every model unloaded, the first encountered error otherwise.
func (c *Client) Unload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, unloadTimeout)
	defer cancel()

	models, err := c.loadedModels(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, m := range models {
		if err := c.unloadOne(ctx, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// loadedModels lists the currently loaded model names via GET /api/ps.
//
// Params:
//   - ctx: governs the request.
//
// Returns:
//   - []string: the loaded model names.
//   - error: nil on success, a transport/decode/status error otherwise.
func (c *Client) loadedModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/ps", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm: /api/ps returned %d", resp.StatusCode)
	}

	var ps psResponse
	if err := json.NewDecoder(resp.Body).Decode(&ps); err != nil {
		return nil, fmt.Errorf("llm: decoding /api/ps: %w", err)
	}
	names := make([]string, 0, len(ps.Models))
	for _, m := range ps.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// unloadOne triggers a single model's unload via POST /api/generate with
// keep_alive:0.
//
// Params:
//   - ctx: governs the request.
//   - model: the model name to unload.
//
// Returns:
//   - error: nil on success, a transport/status error otherwise.
func (c *Client) unloadOne(ctx context.Context, model string) error {
	body, err := json.Marshal(generateRequest{Model: model, KeepAlive: 0})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm: unloading %q returned %d", model, resp.StatusCode)
	}
	return nil
}
