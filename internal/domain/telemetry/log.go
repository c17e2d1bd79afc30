// Package telemetry defines the records ingested from mobile clients:
// log entries, metrics snapshots, and the client registry derived from
// them.
package telemetry

import "time"

// Level is a log severity, ordered least to most severe.
type Level string

const (
	LevelDebug    Level = "DEBUG"
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// ValidLevel reports whether s names one of the five defined levels.
//
// Params:
//   - s: the level name to check.
//
// Returns:
//   - bool: true if s is one of the five defined levels.
func ValidLevel(s string) bool {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical:
		return true
	default:
		return false
	}
}

// LogEntry is one submitted log line, tagged with the client that sent
// it and the server's own receipt clock.
type LogEntry struct {
	ID               string         `json:"id"`
	ClientID         string         `json:"client_id"`
	ClientName       string         `json:"client_name,omitempty"`
	WallTimestamp    time.Time      `json:"wall_timestamp"`
	ReceivedAt       time.Time      `json:"received_at"`
	Level            Level          `json:"level"`
	Label            string         `json:"label"`
	Message          string         `json:"message"`
	SourceFile       string         `json:"source_file,omitempty"`
	SourceFunction   string         `json:"source_function,omitempty"`
	SourceLine       int            `json:"source_line,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}
