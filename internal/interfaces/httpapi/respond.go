package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/upstream"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/supervisor"
)

// writeJSON encodes body as the response, setting the content type and
// status before writing. A nil body writes no content (used for 204s).
//
// Params:
//   - w: the response writer.
//   - status: the HTTP status code to write.
//   - body: the value to JSON-encode, or nil to write no content.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

var errBodyRequired = errors.New("request body required")
var errClientIDRequired = errors.New("X-Client-ID header required")

// writeError writes err's message as a JSON {"error": ...} body.
//
// Params:
//   - w: the response writer.
//   - status: the HTTP status code to write.
//   - err: the error whose message becomes the body.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// decodeJSON parses the request body into dst, responding 400 on
// failure and returning false so the caller can return immediately. An
// unrecognized field is rejected: this path is for requests whose shape
// is a contract, not a passive record.
//
// Params:
//   - w: the response writer a failure is reported on.
//   - r: the request whose body is decoded.
//   - dst: the destination the body is unmarshaled into.
//
// Returns:
//   - bool: true if dst was populated; false if a 400 was already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, errors.New("request body required"))
		return false
	}
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// decodeJSONRaw parses the request body into dst, tolerating unknown
// top-level fields, and returns the decoded body's own field set as a
// map for the caller to preserve verbatim: a passive record keeps the
// client's raw payload rather than trimming it to the fields the daemon
// understands. Responds 400 and returns (nil, false) on a malformed
// body.
//
// Params:
//   - w: the response writer a failure is reported on.
//   - r: the request whose body is decoded.
//   - dst: the destination the recognized fields are unmarshaled into.
//
// Returns:
//   - map[string]any: the full decoded body, keyed by its own JSON fields.
//   - bool: true on success; false if a 400 was already written.
func decodeJSONRaw(w http.ResponseWriter, r *http.Request, dst any) (map[string]any, bool) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, errors.New("request body required"))
		return nil, false
	}
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return raw, true
}

// clientIdentityFromHeaders reads the X-Client-ID/X-Client-Name pair
// attached to every ingest request.
//
// Params:
//   - r: the request to read headers from.
//
// Returns:
//   - id: the X-Client-ID header value, empty if absent.
//   - name: the X-Client-Name header value, empty if absent.
func clientIdentityFromHeaders(r *http.Request) (id, name string) {
	return r.Header.Get("X-Client-ID"), r.Header.Get("X-Client-Name")
}

// statusForError maps a domain/application error to its HTTP status: 404
// for not-found; 400 for both validation errors and conflicts (already
// running, port occupied, builtin immutable) since a conflict is
// reported as a 400 with an explanatory message, not a 409.
//
// Params:
//   - err: the error to classify.
//
// Returns:
//   - int: the HTTP status code to report.
func statusForError(err error) int {
	switch {
	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, upstream.ErrNotFound),
		errors.Is(err, supervisor.ErrUnknownService):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// writeDomainError writes err with the status statusForError derives
// from it.
//
// Params:
//   - w: the response writer.
//   - err: the domain/application error to report.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}
