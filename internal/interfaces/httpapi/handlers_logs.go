package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/ingest"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/telemetry"
)

type logInput struct {
	WallTimestamp  time.Time      `json:"wall_timestamp"`
	Level          string         `json:"level"`
	Label          string         `json:"label"`
	Message        string         `json:"message"`
	SourceFile     string         `json:"source_file,omitempty"`
	SourceFunction string         `json:"source_function,omitempty"`
	SourceLine     int            `json:"source_line,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// handleLogsIngest accepts either a single log object or a {"logs":
// [...]} batch, for both POST /api/logs and the legacy POST /log alias.
func (s *server) handleLogsIngest(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, errBodyRequired)
		return
	}
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var inputs []logInput
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		// A bare top-level array is a batch as-is.
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	} else {
		// An object is either a {"logs": [...]} wrapper or one entry.
		var probe struct {
			Logs json.RawMessage `json:"logs"`
		}
		if err := json.Unmarshal(body, &probe); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if probe.Logs != nil {
			if err := json.Unmarshal(probe.Logs, &inputs); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		} else {
			var single logInput
			if err := json.Unmarshal(body, &single); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			inputs = []logInput{single}
		}
	}

	clientID, clientName := clientIdentityFromHeaders(r)
	converted := make([]ingest.IngestLogInput, 0, len(inputs))
	for _, in := range inputs {
		level := telemetry.Level(strings.ToUpper(in.Level))
		if !telemetry.ValidLevel(string(level)) {
			level = telemetry.LevelInfo
		}
		ts := in.WallTimestamp
		if ts.IsZero() {
			ts = s.Clock.Now()
		}
		converted = append(converted, ingest.IngestLogInput{
			WallTimestamp:  ts,
			Level:          level,
			Label:          in.Label,
			Message:        in.Message,
			SourceFile:     in.SourceFile,
			SourceFunction: in.SourceFunction,
			SourceLine:     in.SourceLine,
			Metadata:       in.Metadata,
		})
	}

	entries := s.Ingest.IngestLogs(r.Context(), ingest.ClientIdentity{ClientID: clientID, ClientName: clientName}, converted)
	s.recordClientActivity()
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleLogsQuery answers GET /logs, filtering the in-memory log buffer
// by search text, client, label, level set, and since-timestamp.
func (s *server) handleLogsQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := ingest.LogQuery{
		Search:   q.Get("search"),
		ClientID: q.Get("client_id"),
		Label:    q.Get("label"),
	}
	if levels := q.Get("level"); levels != "" {
		query.Levels = make(map[telemetry.Level]bool)
		for _, l := range strings.Split(levels, ",") {
			query.Levels[telemetry.Level(strings.ToUpper(strings.TrimSpace(l)))] = true
		}
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			query.Since = t
		}
	}
	query.Limit = atoiDefault(q.Get("limit"), 100)
	query.Offset = atoiDefault(q.Get("offset"), 0)

	writeJSON(w, http.StatusOK, map[string]any{"logs": s.Ingest.QueryLogs(query)})
}

// handleLogsClear answers DELETE /logs, discarding the in-memory log
// buffer and resetting the error/warning counters.
func (s *server) handleLogsClear(w http.ResponseWriter, r *http.Request) {
	s.Ingest.ClearLogs()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// atoiDefault parses s as an int, falling back to def on an empty or
// malformed value.
//
// Params:
//   - s: the string to parse.
//   - def: the fallback value.
//
// Returns:
//   - int: the parsed value, or def.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
