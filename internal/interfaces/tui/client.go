// Package tui implements the operator TUI: a read-only
// bubbletea program that polls a running mgmtd's HTTP API every 2
// seconds and renders a service table plus the current energy tier.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// pollInterval is the dashboard refresh cadence.
const pollInterval = 2 * time.Second

// requestTimeout bounds each individual poll so a hung daemon never
// blocks the TUI's tick loop.
const requestTimeout = 3 * time.Second

// serviceView is the subset of supervisor.Status the table renders.
type serviceView struct {
	Spec struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"spec"`
	Runtime struct {
		Status string `json:"status"`
		PID    *int   `json:"pid"`
	} `json:"runtime"`
}

type servicesResponse struct {
	Services []serviceView `json:"services"`
}

// statsView mirrors the idle-tier and active-profile fields of httpapi's
// statsResponse.
type statsView struct {
	IdleTier string `json:"idle_tier"`
	ActiveID string `json:"active_profile_id"`
}

type idleView struct {
	Tier        string  `json:"tier"`
	IdleSeconds float64 `json:"idle_seconds"`
}

type powerCurrentView struct {
	Summary struct {
		AvgServiceCPUPct map[string]float64 `json:"avg_service_cpu_pct"`
	} `json:"summary"`
	Snapshot struct {
		Services map[string]struct {
			CPUPct   float64 `json:"cpu_pct"`
			MemoryMB float64 `json:"memory_mb"`
		} `json:"services"`
	} `json:"snapshot"`
}

// client polls one mgmtd instance's read-only status endpoints.
type client struct {
	baseURL string
	http    *http.Client
}

// newClient constructs a client against addr (host:port, no scheme).
//
// Params:
//   - addr: the daemon's host:port.
//
// Returns:
//   - *client: the constructed client.
func newClient(addr string) *client {
	return &client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// poll fetches every view this TUI renders in one round, returning the
// first error encountered (a single unreachable endpoint fails the
// whole tick rather than rendering a partially stale table).
//
// Params:
//   - ctx: governs every underlying request, bounded per-request by requestTimeout.
//
// Returns:
//   - pollResult: the combined services/idle/power views.
//   - error: nil on success, the first endpoint's error otherwise.
func (c *client) poll(ctx context.Context) (pollResult, error) {
	var result pollResult

	services, err := c.fetchServices(ctx)
	if err != nil {
		return result, err
	}
	result.services = services

	idle, err := c.fetchIdle(ctx)
	if err != nil {
		return result, err
	}
	result.idle = idle

	power, err := c.fetchPowerCurrent(ctx)
	if err != nil {
		return result, err
	}
	result.power = power

	return result, nil
}

type pollResult struct {
	services []serviceView
	idle     idleView
	power    powerCurrentView
}

// fetchServices fetches GET /api/services.
//
// Params:
//   - ctx: governs the request.
//
// Returns:
//   - []serviceView: the current service table.
//   - error: nil on success, a transport/status/decode error otherwise.
func (c *client) fetchServices(ctx context.Context) ([]serviceView, error) {
	var resp servicesResponse
	if err := c.getJSON(ctx, "/api/services", &resp); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// fetchIdle fetches GET /api/idle.
//
// Params:
//   - ctx: governs the request.
//
// Returns:
//   - idleView: the current idle tier and duration.
//   - error: nil on success, a transport/status/decode error otherwise.
func (c *client) fetchIdle(ctx context.Context) (idleView, error) {
	var resp idleView
	err := c.getJSON(ctx, "/api/idle", &resp)
	return resp, err
}

// fetchPowerCurrent fetches GET /api/power/current.
//
// Params:
//   - ctx: governs the request.
//
// Returns:
//   - powerCurrentView: the latest power snapshot and summary.
//   - error: nil on success, a transport/status/decode error otherwise.
func (c *client) fetchPowerCurrent(ctx context.Context) (powerCurrentView, error) {
	var resp powerCurrentView
	err := c.getJSON(ctx, "/api/power/current", &resp)
	return resp, err
}

// getJSON performs a GET against path and decodes its body into out.
//
// Params:
//   - ctx: governs the request, bounded by requestTimeout.
//   - path: the request path relative to baseURL.
//   - out: the destination the response body is unmarshaled into.
//
// Returns:
//   - error: nil on success, a transport/status/decode error otherwise.
func (c *client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tui: %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
