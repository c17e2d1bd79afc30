//go:build unix

// Package unix implements the supervisor's HealthChecker/PortResolver/
// MemoryUsage ports and the monitor's ServiceProcessProbe port over
// lsof/pgrep/ps and net/http: a service's pid is resolved by listing
// TCP listeners on its declared port, with a pgrep -f pattern table as
// the fallback.
package unix

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
)

// commandRunner abstracts os/exec for testability.
type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// Output runs name with args and returns its combined stdout.
//
// Params:
//   - ctx: governs the subprocess lifetime.
//   - name: the command to run.
//   - args: the command's arguments.
//
// Returns:
//   - []byte: the command's stdout.
//   - error: nil on success, the exec error otherwise.
func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Probe resolves and samples supervised-service processes by their
// listening port, with a pgrep -f fallback when no listener is found.
type Probe struct {
	runner         commandRunner
	client         *http.Client
	ports          map[string]int    // service id -> listening port
	pgrepPatterns  map[string]string // service id -> fallback pgrep -f pattern
}

// New constructs a Probe. ports and pgrepPatterns mirror config's static
// service table; either map may be nil.
//
// Params:
//   - ports: service id -> listening port.
//   - pgrepPatterns: service id -> fallback pgrep -f pattern.
//
// Returns:
//   - *Probe: the constructed probe.
func New(ports map[string]int, pgrepPatterns map[string]string) *Probe {
	return &Probe{
		runner:        execRunner{},
		client:        &http.Client{},
		ports:         ports,
		pgrepPatterns: pgrepPatterns,
	}
}

// SampleService implements monitor.ServiceProcessProbe.
//
// Params:
//   - ctx: governs every underlying subprocess call.
//   - serviceID: the service to sample.
//
// Returns:
//   - resource.ProcessSample: the sampled process metrics.
//   - bool: true if a PID was resolved and sampled.
func (p *Probe) SampleService(ctx context.Context, serviceID string) (resource.ProcessSample, bool) {
	pid, ok := p.resolvePID(ctx, serviceID)
	if !ok {
		return resource.ProcessSample{}, false
	}

	cpuPct, memMB, threads, ok := p.psStats(ctx, pid)
	if !ok {
		return resource.ProcessSample{}, false
	}

	return resource.ProcessSample{
		At:          time.Now(),
		PID:         pid,
		ServiceID:   serviceID,
		CPUPct:      cpuPct,
		MemoryMB:    memMB,
		ThreadCount: threads,
	}, true
}

// resolvePID resolves a service's PID: listening-port lookup first, a
// pgrep -f pattern table fallback second.
//
// Params:
//   - ctx: governs every underlying subprocess call.
//   - serviceID: the service to resolve.
//
// Returns:
//   - int: the resolved PID, valid only if the bool return is true.
//   - bool: true if a PID was resolved.
func (p *Probe) resolvePID(ctx context.Context, serviceID string) (int, bool) {
	if port, ok := p.ports[serviceID]; ok && port != 0 {
		if pid, ok := p.PIDForPort(ctx, port); ok {
			return pid, true
		}
	}
	pattern, ok := p.pgrepPatterns[serviceID]
	if !ok || pattern == "" {
		return 0, false
	}
	out, err := p.runner.Output(ctx, "pgrep", "-f", pattern)
	if err != nil {
		return 0, false
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	pid, err := strconv.Atoi(line)
	if err != nil {
		return 0, false
	}
	return pid, true
}

// PIDForPort implements supervisor.PortResolver by listing TCP listeners
// on port with lsof.
//
// Params:
//   - ctx: governs the subprocess call.
//   - port: the TCP port to query.
//
// Returns:
//   - int: the listening PID, valid only if the bool return is true.
//   - bool: true if a listener was found.
func (p *Probe) PIDForPort(ctx context.Context, port int) (int, bool) {
	out, err := p.runner.Output(ctx, "lsof", "-t", "-i", fmt.Sprintf("TCP:%d", port), "-sTCP:LISTEN")
	if err != nil {
		return 0, false
	}
	line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	pid, err := strconv.Atoi(line)
	if err != nil {
		return 0, false
	}
	return pid, true
}

// KillListenersOnPort implements supervisor.PortResolver, sweeping up
// any process (owned or externally started) still listening on port.
//
// Params:
//   - ctx: governs every underlying subprocess call.
//   - port: the TCP port to sweep.
//
// Returns:
//   - error: always nil; an empty listener set is not an error.
func (p *Probe) KillListenersOnPort(ctx context.Context, port int) error {
	out, err := p.runner.Output(ctx, "lsof", "-t", "-i", fmt.Sprintf("TCP:%d", port), "-sTCP:LISTEN")
	if err != nil {
		return nil // nothing listening
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		_, _ = p.runner.Output(ctx, "kill", "-9", strconv.Itoa(pid))
	}
	return nil
}

// Usage implements supervisor.MemoryUsage over ps.
//
// Params:
//   - ctx: governs the subprocess call.
//   - pid: the process to query.
//
// Returns:
//   - rssKB: resident set size in KiB, valid only if ok is true.
//   - vszKB: virtual size in KiB, valid only if ok is true.
//   - ok: true if pid's memory usage was read successfully.
func (p *Probe) Usage(ctx context.Context, pid int) (rssKB, vszKB int64, ok bool) {
	out, err := p.runner.Output(ctx, "ps", "-o", "rss=,vsz=", "-p", strconv.Itoa(pid))
	if err != nil {
		return 0, 0, false
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return 0, 0, false
	}
	rss, err1 := strconv.ParseInt(fields[0], 10, 64)
	vsz, err2 := strconv.ParseInt(fields[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return rss, vsz, true
}

// psStats reads %CPU, RSS-derived MB, and thread count for pid.
//
// Params:
//   - ctx: governs every underlying subprocess call.
//   - pid: the process to query.
//
// Returns:
//   - cpuPct: CPU usage percent, valid only if ok is true.
//   - memMB: resident memory in MB, valid only if ok is true.
//   - threads: thread count, defaulting to 1 if the nlwp query fails.
//   - ok: true if pid's core stats were read successfully.
func (p *Probe) psStats(ctx context.Context, pid int) (cpuPct, memMB float64, threads int, ok bool) {
	out, err := p.runner.Output(ctx, "ps", "-o", "%cpu=,rss=", "-p", strconv.Itoa(pid))
	if err != nil {
		return 0, 0, 0, false
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return 0, 0, 0, false
	}
	cpu, err1 := strconv.ParseFloat(fields[0], 64)
	rssKB, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, 0, false
	}

	threadCount := 1
	if out, err := p.runner.Output(ctx, "ps", "-o", "nlwp=", "-p", strconv.Itoa(pid)); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(string(out))); err == nil {
			threadCount = n
		}
	}

	return cpu, rssKB / 1024, threadCount, true
}

// Healthy implements supervisor.HealthChecker: a GET against url must
// return 200 within timeout.
//
// Params:
//   - ctx: the parent context the timeout is derived from.
//   - url: the health URL to probe.
//   - timeout: the maximum time to wait for a response.
//
// Returns:
//   - bool: true if url answered 200 within timeout.
func (p *Probe) Healthy(ctx context.Context, url string, timeout time.Duration) bool {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
