package service

import "time"

// Status is the lifecycle state of a supervised service.
type Status string

const (
	// StatusStopped means the service is not running.
	StatusStopped Status = "stopped"
	// StatusStarting means the child has been spawned and its 2s health
	// grace period has not yet elapsed.
	StatusStarting Status = "starting"
	// StatusRunning means the service is serving (owned or externally
	// detected).
	StatusRunning Status = "running"
	// StatusError means the last start/health-check attempt failed.
	StatusError Status = "error"
)

// Runtime is the mutable state tracked per service.
//
// Invariant: PID is non-nil iff Status is running or starting and the
// supervisor owns the process. Status running may also apply to an
// externally-detected service, where Owned is false but PID may still be
// populated from a port-to-PID lookup.
type Runtime struct {
	Status    Status     `json:"status"`
	PID       *int       `json:"pid,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Owned     bool       `json:"-"`
	// restartsInWindow and windowStart back the auto_restart policy:
	// at most 3 restarts per rolling 5 minutes.
	restartsInWindow int
	windowStart       time.Time
}

// NewRuntime returns a freshly stopped runtime record.
//
// Returns:
//   - Runtime: a runtime in StatusStopped with no PID or start time.
func NewRuntime() Runtime {
	return Runtime{Status: StatusStopped}
}

// RestartsInWindow returns the number of auto-restarts recorded within
// the current rolling window, for diagnostics and tests.
//
// Returns:
//   - int: the restart count recorded in the current window.
func (r Runtime) RestartsInWindow() int {
	return r.restartsInWindow
}

// RecordRestart records an auto-restart attempt, resetting the rolling
// window if it has expired, and reports whether this attempt still
// falls within the budget of maxPerWindow restarts per window. A false
// return means the caller should give up rather than spawn again.
//
// Params:
//   - now: the current time.
//   - window: the rolling window's duration.
//   - maxPerWindow: the maximum restarts permitted per window.
//
// Returns:
//   - allowed: true if this restart still falls within the budget.
func (r *Runtime) RecordRestart(now time.Time, window time.Duration, maxPerWindow int) (allowed bool) {
	if r.windowStart.IsZero() || now.Sub(r.windowStart) > window {
		r.windowStart = now
		r.restartsInWindow = 0
	}
	r.restartsInWindow++
	return r.restartsInWindow <= maxPerWindow
}
