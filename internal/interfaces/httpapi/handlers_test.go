package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/ingest"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/profiles"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/servers"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/supervisor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/service"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/interfaces/httpapi"
)

// memProfileStore is an in-memory profiles.Store.
type memProfileStore struct{ saved map[string]profile.Profile }

func (m *memProfileStore) Load(ctx context.Context) (map[string]profile.Profile, error) {
	if m.saved == nil {
		return map[string]profile.Profile{}, nil
	}
	return m.saved, nil
}

func (m *memProfileStore) Save(ctx context.Context, custom map[string]profile.Profile) error {
	m.saved = custom
	return nil
}

type noopProber struct{}

func (noopProber) Probe(ctx context.Context, url string) (bool, error) { return true, nil }

type fakeHandle struct{ pid int }

func (h *fakeHandle) Wait(ctx context.Context) (int, error) { <-ctx.Done(); return 0, ctx.Err() }
func (h *fakeHandle) Exited() (bool, int)                   { return false, 0 }
func (h *fakeHandle) RecentOutput() []byte                  { return nil }
func (h *fakeHandle) Signal(sig string) error                { return nil }
func (h *fakeHandle) PID() int                              { return h.pid }

type fakeExecutor struct{}

func (fakeExecutor) Spawn(ctx context.Context, spec service.Spec) (supervisor.ProcessHandle, error) {
	return &fakeHandle{pid: 4242}, nil
}

// fakeHealth reports every URL healthy/unhealthy per a fixed map.
type fakeHealth struct{ healthy map[string]bool }

func (f fakeHealth) Healthy(ctx context.Context, url string, timeout time.Duration) bool {
	return f.healthy[url]
}

type fakePorts struct{}

func (fakePorts) PIDForPort(ctx context.Context, port int) (int, bool)    { return 0, false }
func (fakePorts) KillListenersOnPort(ctx context.Context, port int) error { return nil }

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	in := ingest.New()
	profSvc := profiles.New(context.Background(), &memProfileStore{}, nil)
	reg := servers.New(noopProber{})
	sv := supervisor.New(
		[]service.Spec{{ID: "vibevoice", DisplayName: "VibeVoice", Port: 9001, HealthURL: "http://127.0.0.1:9001/health"}},
		fakeExecutor{}, fakeHealth{healthy: map[string]bool{"http://127.0.0.1:9001/health": true}}, fakePorts{},
	)

	return httpapi.NewHandler(httpapi.Deps{
		Ingest:     in,
		Profiles:   profSvc,
		Supervisor: sv,
		Servers:    reg,
		Started:    time.Now(),
	})
}

func TestHealth_ReturnsOK(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestCORS_OptionsPreflightReturnsNoContent(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/logs", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// Two clients post a batch of one INFO and one ERROR entry each; 4
// entries total appear via GET /api/logs.
func TestLogsIngestThenQuery_Batch(t *testing.T) {
	h := newTestHandler(t)

	batch := `[{"level":"INFO","label":"a","message":"x"},{"level":"ERROR","label":"b","message":"y"}]`
	for _, clientID := range []string{"c1", "c2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(batch))
		req.Header.Set("X-Client-ID", clientID)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Logs []map[string]any `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Logs, 4)
}

// The {"logs": [...]} wrapper and a single bare object are accepted
// alongside the bare-array batch form.
func TestLogsIngest_WrapperAndSingleObjectForms(t *testing.T) {
	h := newTestHandler(t)

	for _, body := range []string{
		`{"logs":[{"level":"INFO","label":"a","message":"x"},{"level":"WARNING","label":"b","message":"y"}]}`,
		`{"level":"ERROR","label":"c","message":"z"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(body))
		req.Header.Set("X-Client-ID", "c1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Logs []map[string]any `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Logs, 3)
}

func TestLogsQuery_FiltersByLevel(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/logs",
		strings.NewReader(`[{"level":"INFO","label":"a","message":"x"},{"level":"ERROR","label":"b","message":"y"}]`))
	req.Header.Set("X-Client-ID", "c1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs?level=ERROR", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Logs []map[string]any `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Logs, 1)
	assert.Equal(t, "ERROR", body.Logs[0]["level"])
}

func TestLogsClear_ReturnsOKEnvelope(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/logs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestActivity_RejectsUnknownKind(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/activity",
		strings.NewReader(`{"kind":"bogus"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/activity",
		strings.NewReader(`{"service_id":"vibevoice","kind":"request"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Starting a service whose health URL already answers 200 returns 400
// with a message mentioning "already running"; state unchanged.
func TestServiceStart_AlreadyRunningReturns400(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/services/vibevoice/start", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "already running")
}

func TestServiceStart_UnknownServiceReturns404(t *testing.T) {
	h := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/services/nope/start", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfilesCreateThenDelete(t *testing.T) {
	h := newTestHandler(t)

	body := `{"id":"lab","display_name":"Lab","thresholds":{"warm":5,"cool":10,"cold":15,"dormant":20},"enabled":true}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/profiles/lab", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/profiles/balanced", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "deleting a builtin must fail")
}

func TestServersAddListRemove(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/servers",
		strings.NewReader(`{"id":"llm","name":"LLM","url":"http://127.0.0.1:11434"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/servers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Servers []map[string]any `json:"servers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Servers, 1)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/servers/llm", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
