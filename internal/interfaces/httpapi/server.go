// Package httpapi implements the HTTP/WS frontend: a stateless
// translation layer from network requests to the core application
// operations. It owns no state of its own beyond the dependencies wired
// in at construction; every mutating request delegates straight to the
// corresponding service and, on success, that service (or this layer)
// emits the matching broadcast event.
package httpapi

import (
	"net/http"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/aggregator"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/broadcast"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/idle"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/ingest"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/monitor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/profiles"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/servers"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/supervisor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
)

// version is reported by GET /health; set at build time via ldflags in
// cmd/mgmtd.
var version = "dev"

// SetVersion overrides the version string reported by /health. Called
// once from main before serving.
//
// Params:
//   - v: the version string to report.
func SetVersion(v string) { version = v }

// Deps bundles every application service the frontend dispatches to.
// All fields are required except MetricsHandler, which is optional (a
// nil MetricsHandler simply omits the /metrics route).
type Deps struct {
	Ingest     *ingest.Ingest
	Broadcast  *broadcast.Broadcaster
	Profiles   *profiles.Service
	Idle       *idle.Machine
	Aggregator *aggregator.Aggregator
	Monitor    *monitor.Monitor
	Supervisor *supervisor.Supervisor
	Servers    *servers.Registry
	Logger     logging.Logger

	// MetricsHandler, if non-nil, is mounted at GET /metrics.
	MetricsHandler http.Handler

	Clock   shared.Nower
	Started time.Time
}

// server holds the Deps plus the derived start time used for uptime.
type server struct {
	Deps
}

// NewHandler builds the full routed, CORS-wrapped HTTP handler.
//
// Params:
//   - d: the application services the routes dispatch to.
//
// Returns:
//   - http.Handler: the routed, CORS-wrapped handler.
func NewHandler(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = shared.DefaultClock
	}
	s := &server{Deps: d}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	mux.HandleFunc("POST /api/logs", s.handleLogsIngest)
	mux.HandleFunc("POST /log", s.handleLogsIngest)
	mux.HandleFunc("GET /api/logs", s.handleLogsQuery)
	mux.HandleFunc("DELETE /api/logs", s.handleLogsClear)

	mux.HandleFunc("POST /api/metrics", s.handleMetricsIngest)
	mux.HandleFunc("GET /api/metrics", s.handleMetricsQuery)
	mux.HandleFunc("GET /api/metrics/history", s.handleMetricsHistory)

	mux.HandleFunc("GET /api/clients", s.handleClientsList)
	mux.HandleFunc("POST /api/clients/heartbeat", s.handleClientsHeartbeat)

	mux.HandleFunc("GET /api/servers", s.handleServersList)
	mux.HandleFunc("POST /api/servers", s.handleServersAdd)
	mux.HandleFunc("DELETE /api/servers/{id}", s.handleServersRemove)

	mux.HandleFunc("GET /api/services", s.handleServicesList)
	mux.HandleFunc("POST /api/services/{id}/start", s.handleServiceStart)
	mux.HandleFunc("POST /api/services/{id}/stop", s.handleServiceStop)
	mux.HandleFunc("POST /api/services/{id}/restart", s.handleServiceRestart)
	mux.HandleFunc("POST /api/services/start-all", s.handleServicesStartAll)
	mux.HandleFunc("POST /api/services/stop-all", s.handleServicesStopAll)

	mux.HandleFunc("GET /api/profiles", s.handleProfilesList)
	mux.HandleFunc("POST /api/profiles", s.handleProfilesCreate)
	mux.HandleFunc("PUT /api/profiles/{id}", s.handleProfilesUpdate)
	mux.HandleFunc("POST /api/profiles/{id}/duplicate", s.handleProfilesDuplicate)
	mux.HandleFunc("DELETE /api/profiles/{id}", s.handleProfilesDelete)
	mux.HandleFunc("POST /api/profiles/{id}/activate", s.handleProfilesActivate)

	mux.HandleFunc("GET /api/idle", s.handleIdleGet)
	mux.HandleFunc("POST /api/idle/keep-awake", s.handleIdleKeepAwake)
	mux.HandleFunc("POST /api/idle/force/{tier}", s.handleIdleForce)
	mux.HandleFunc("POST /api/activity", s.handleActivity)

	mux.HandleFunc("GET /api/power/current", s.handlePowerCurrent)
	mux.HandleFunc("GET /api/power/history", s.handlePowerHistory)

	mux.HandleFunc("GET /ws", s.handleWS)

	if d.MetricsHandler != nil {
		mux.Handle("GET /metrics", d.MetricsHandler)
	}

	return withCORS(mux)
}

// withCORS wraps next with a wildcard-origin CORS policy covering the
// five methods the REST surface uses and the headers clients attach
// (Content-Type plus the client-identity pair).
//
// Params:
//   - next: the handler to wrap.
//
// Returns:
//   - http.Handler: next, wrapped with CORS headers and OPTIONS preflight handling.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Client-ID, X-Client-Name")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
