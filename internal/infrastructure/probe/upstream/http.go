// Package upstream implements the HTTP-based upstream prober used by the
// server registry.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultStatusCode is the status a probe expects for a healthy upstream.
const defaultStatusCode = http.StatusOK

// Prober performs HTTP GET probes against upstream URLs.
type Prober struct {
	client *http.Client
}

// New constructs a Prober with the given per-request timeout.
//
// Params:
//   - timeout: the per-request timeout; non-positive values default to 5s.
//
// Returns:
//   - *Prober: the constructed prober.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{client: &http.Client{Timeout: timeout}}
}

// Probe reports whether target answers 200 to a GET.
//
// Params:
//   - ctx: governs the request.
//   - target: the URL to probe.
//
// Returns:
//   - bool: true if target answered 200.
//   - error: nil if the probe completed (even if unhealthy), a request-construction/transport error otherwise.
func (p *Prober) Probe(ctx context.Context, target string) (bool, error) {
	targetURL, err := url.Parse(target)
	if err != nil || (targetURL.Scheme != "http" && targetURL.Scheme != "https") {
		targetURL, err = url.Parse("http://" + strings.TrimPrefix(target, "http://"))
		if err != nil {
			return false, fmt.Errorf("upstream: invalid url %q: %w", target, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL.String(), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("upstream: build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == defaultStatusCode, nil
}
